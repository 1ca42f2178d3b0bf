// Package analytics reports coarse, privacy-preserving usage counts over
// the audit ledger, adapted from a token-trade surveillance aggregator
// into a tenant/bucket mutation-count report.
package analytics

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/caas/audit-substrate/internal/compliance"
)

// BucketCount is one (tenant, bucket) pair's record count, after
// k-anonymity redaction and differential-privacy noise.
type BucketCount struct {
	TenantID  string  `json:"tenant_id"`
	Bucket    string  `json:"bucket"`
	Count     int     `json:"count"`
	Noised    float64 `json:"noised"`
	WindowHrs int     `json:"window_hours"`
}

// UsageSummary is the report handed back to an operator: per-bucket
// counts that survived k-anonymity redaction, plus how many pairs were
// suppressed and the parameters applied.
type UsageSummary struct {
	Items          []BucketCount `json:"items"`
	RedactedCount  int           `json:"redacted_count"`
	TotalSeen      int           `json:"total_seen"`
	AppliedK       int           `json:"k"`
	AppliedEpsilon float64       `json:"epsilon"`
}

// BucketCountsForTenant counts tenantID's records per bucket within the
// trailing window, the entry point the analytics HTTP handler actually
// uses (scoped to the tenant named in the request path).
func BucketCountsForTenant(ledger *compliance.Ledger, tenantID string, window time.Duration, now time.Time) map[string]int {
	cutoff := now.Add(-window)
	counts := make(map[string]int)
	for _, r := range ledger.AllTenant(tenantID, 0) {
		if !r.Timestamp.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		counts[r.Bucket]++
	}
	return counts
}

// Summarize applies k-anonymity redaction (buckets with fewer than k
// records are dropped entirely) and adds Laplace-distributed noise scaled
// by epsilon to the surviving counts, the same mechanism the teacher's
// token-trade aggregator used, re-keyed to tenant/bucket mutation counts.
func Summarize(tenantID string, counts map[string]int, k int, epsilon float64, seed int64, windowHours int) UsageSummary {
	if k <= 0 {
		k = 1
	}
	if epsilon <= 0 {
		epsilon = 0.7
	}

	var rng *rand.Rand
	if seed == 0 {
		rng = rand.New(rand.NewSource(1))
	} else {
		rng = rand.New(rand.NewSource(seed))
	}

	redacted := 0
	items := make([]BucketCount, 0, len(counts))
	total := 0
	for bucket, count := range counts {
		total += count
		if count < k {
			redacted++
			continue
		}
		noise := laplace(rng, 1/epsilon)
		items = append(items, BucketCount{
			TenantID:  tenantID,
			Bucket:    bucket,
			Count:     count,
			Noised:    float64(count) + noise,
			WindowHrs: windowHours,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Noised > items[j].Noised })

	return UsageSummary{
		Items:          items,
		RedactedCount:  redacted,
		TotalSeen:      total,
		AppliedK:       k,
		AppliedEpsilon: epsilon,
	}
}

// laplace draws a single sample from a zero-centered Laplace distribution
// with the given scale, via inverse-CDF sampling.
func laplace(rng *rand.Rand, scale float64) float64 {
	if scale <= 0 {
		return 0
	}
	u := rng.Float64() - 0.5
	sign := 1.0
	if u < 0 {
		sign = -1.0
	}
	return -scale * sign * math.Log(1-2*math.Abs(u))
}

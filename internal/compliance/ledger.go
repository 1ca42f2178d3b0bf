package compliance

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditRecord is mutable only during the append transaction; thereafter
// frozen. PreviousHash and RecordHash are populated by Ledger.Append.
type AuditRecord struct {
	RecordID         string
	EventID          string
	Timestamp        time.Time
	EventType        EventType
	TenantID         string
	Bucket           string
	ObjectKey        string
	PolicyCommitment string
	Metadata         map[string]interface{}
	PreviousHash     string
	RecordHash       string
}

// canonicalRecordBytes serializes r's fields in the §4.3 fixed order, with
// null for absent optional fields, excluding RecordHash from its own
// preimage.
func canonicalRecordBytes(r AuditRecord) ([]byte, error) {
	var objectKey, policyCommitment interface{}
	if r.ObjectKey != "" {
		objectKey = r.ObjectKey
	}
	if r.PolicyCommitment != "" {
		policyCommitment = r.PolicyCommitment
	}
	var metadata interface{}
	if r.Metadata != nil {
		metadata = r.Metadata
	}
	// Encoded as a flat []interface{} of alternating key/value pairs — the
	// same intermediate shape normalize() produces internally for
	// map[string]interface{} — so the fixed §4.3 field order survives
	// unchanged instead of being re-sorted alphabetically.
	ordered := []interface{}{
		"record_id", r.RecordID,
		"event_id", r.EventID,
		"timestamp", r.Timestamp.UTC().Format(time.RFC3339Nano),
		"event_type", string(r.EventType),
		"tenant_id", r.TenantID,
		"bucket", r.Bucket,
		"object_key", objectKey,
		"policy_commitment", policyCommitment,
		"metadata", metadata,
		"previous_hash", r.PreviousHash,
	}
	return stableJSON(ordered)
}

// Ledger implements CAL: an append-only, hash-chained sequence of
// AuditRecords with periodic Merkle batching. Single writer; an RWMutex
// lets reads proceed concurrently with other reads per §5.
type Ledger struct {
	mu         sync.RWMutex
	records    []AuditRecord
	index      map[string]int // record_id -> position in records
	lastHash   string
	batchSize  int
	trees      []*MerkleTree
	appendedAny bool
}

// NewLedger constructs an empty Ledger. batchSize <= 0 defaults to 100.
func NewLedger(batchSize int) *Ledger {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Ledger{
		index:     make(map[string]int),
		lastHash:  genesisHash,
		batchSize: batchSize,
	}
}

// SetBatchSize changes the batch size. Per §9, this is rejected once any
// record has been appended, since it would create ambiguous batch
// boundaries.
func (l *Ledger) SetBatchSize(n int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.appendedAny {
		return ErrBatchSizeLocked
	}
	if n <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidInput)
	}
	l.batchSize = n
	return nil
}

// Append assigns PreviousHash and RecordHash to record, appends it to the
// ledger, indexes it, and closes a Merkle batch if the new count is a
// multiple of the batch size. It never fails for integrity reasons; it
// only fails on malformed input, in which case no state is mutated. It
// returns the finalized record (record_id, previous_hash and record_hash
// populated); the hex hash named by §4.3's append protocol is its
// RecordHash field.
func (l *Ledger) Append(record AuditRecord) (AuditRecord, error) {
	if record.EventID == "" || record.TenantID == "" || record.Bucket == "" {
		return AuditRecord{}, fmt.Errorf("%w: event_id, tenant_id and bucket are required", ErrInvalidInput)
	}
	if record.RecordID == "" {
		record.RecordID = uuid.NewString()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	record.PreviousHash = l.lastHash
	bodyBytes, err := canonicalRecordBytes(record)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("canonicalize record: %w", err)
	}
	record.RecordHash = sha256Hex(bodyBytes)

	l.records = append(l.records, record)
	l.index[record.RecordID] = len(l.records) - 1
	l.lastHash = record.RecordHash
	l.appendedAny = true

	if len(l.records)%l.batchSize == 0 {
		batch := l.records[len(l.records)-l.batchSize:]
		hashes := make([]string, len(batch))
		for i, r := range batch {
			hashes[i] = r.RecordHash
		}
		l.trees = append(l.trees, buildMerkleTree(hashes))
	}

	return record, nil
}

// Get returns the record stored under recordID.
func (l *Ledger) Get(recordID string) (AuditRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.index[recordID]
	if !ok {
		return AuditRecord{}, ErrNotFound
	}
	return l.records[idx], nil
}

// Latest returns the most recently appended record.
func (l *Ledger) Latest() (AuditRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return AuditRecord{}, ErrNotFound
	}
	return l.records[len(l.records)-1], nil
}

// Count returns the number of appended records.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// AllTenant returns every record for tenantID in append order, optionally
// capped to the most recent limit records (0 means unlimited).
func (l *Ledger) AllTenant(tenantID string, limit int) []AuditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []AuditRecord
	for _, r := range l.records {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// InRange returns every record with Timestamp in [from, to), optionally
// filtered to tenantID (empty means no filter), in append order.
func (l *Ledger) InRange(from, to time.Time, tenantID string) []AuditRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []AuditRecord
	for _, r := range l.records {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		if tenantID != "" && r.TenantID != tenantID {
			continue
		}
		out = append(out, r)
	}
	return out
}

// VerifyChainIntegrity recomputes every record's hash and chain link,
// including the genesis link at index 0. It never mutates state and never
// panics; any mismatch simply yields false.
func (l *Ledger) VerifyChainIntegrity() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	expectedPrev := genesisHash
	for _, r := range l.records {
		if r.PreviousHash != expectedPrev {
			return false
		}
		bodyBytes, err := canonicalRecordBytes(r)
		if err != nil {
			return false
		}
		if sha256Hex(bodyBytes) != r.RecordHash {
			return false
		}
		expectedPrev = r.RecordHash
	}
	return true
}

// GenerateInclusionProof returns the Merkle proof for recordID, or nil if
// the record has not yet been sealed into a closed batch.
func (l *Ledger) GenerateInclusionProof(recordID string) *MerkleProof {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.index[recordID]
	if !ok {
		return nil
	}
	closedCount := (len(l.records) / l.batchSize) * l.batchSize
	if idx >= closedCount {
		return nil
	}
	treeIdx := idx / l.batchSize
	if treeIdx >= len(l.trees) {
		return nil
	}
	withinBatch := idx % l.batchSize
	return l.trees[treeIdx].generateProof(withinBatch)
}

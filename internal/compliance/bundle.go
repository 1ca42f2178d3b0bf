package compliance

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BundleType identifies how a ComplianceProofBundle was assembled.
type BundleType string

const (
	BundleSingle    BundleType = "single"
	BundleBatch     BundleType = "batch"
	BundleTimeRange BundleType = "time_range"
	BundleTenant    BundleType = "tenant"
)

// PolicyCommitmentEntry is an embedded, dereferenced CanonicalPolicy, or —
// when the referenced policy_id could not be resolved against PAC — the
// bare commitment hash recorded verbatim.
type PolicyCommitmentEntry struct {
	PolicyID       string
	CommitmentHash string
	CanonicalForm  []byte // nil when unresolved
	Resolved       bool
}

// ProofBundle is a self-contained artifact verifiable without the live
// ledger.
type ProofBundle struct {
	BundleID           string
	CreatedAt          time.Time
	BundleType         BundleType
	Records            []AuditRecord
	PolicyCommitments  map[string]PolicyCommitmentEntry // commitment_hash -> entry (not keyed by policy_id)
	MerkleProofs       map[string]MerkleProof           // record_id -> proof
	ExternalAnchor     []byte
}

// Verifier implements ZCVI: build operations over a Ledger+Compiler pair,
// and a pure, stateless VerifyBundle.
type Verifier struct {
	Ledger   *Ledger
	Compiler *Compiler
}

// NewVerifier wires ZCVI to the ledger and compiler it builds bundles from.
func NewVerifier(ledger *Ledger, compiler *Compiler) *Verifier {
	return &Verifier{Ledger: ledger, Compiler: compiler}
}

func (v *Verifier) resolvePolicyCommitments(records []AuditRecord) map[string]PolicyCommitmentEntry {
	out := make(map[string]PolicyCommitmentEntry)
	for _, r := range records {
		if r.PolicyCommitment == "" {
			continue
		}
		if _, already := out[r.PolicyCommitment]; already {
			continue
		}
		entry := PolicyCommitmentEntry{CommitmentHash: r.PolicyCommitment}
		// Search every known policy_id for one whose current commitment
		// matches; commitments are content-addressed so this is sound even
		// without an event-to-policy-id link on the record.
		if v.Compiler != nil {
			v.Compiler.mu.RLock()
			for policyID, cp := range v.Compiler.latest {
				if cp.CommitmentHash == r.PolicyCommitment {
					entry.PolicyID = policyID
					entry.CanonicalForm = cp.CanonicalForm
					entry.Resolved = true
					break
				}
			}
			v.Compiler.mu.RUnlock()
		}
		out[r.PolicyCommitment] = entry
	}
	return out
}

func (v *Verifier) proofsFor(records []AuditRecord, include bool) map[string]MerkleProof {
	proofs := make(map[string]MerkleProof)
	if !include {
		return proofs
	}
	for _, r := range records {
		if p := v.Ledger.GenerateInclusionProof(r.RecordID); p != nil {
			proofs[r.RecordID] = *p
		}
	}
	return proofs
}

// CreateSingleRecordBundle builds a bundle around one record, embedding a
// Merkle proof by default.
func (v *Verifier) CreateSingleRecordBundle(recordID string, includeMerkleProof bool) (ProofBundle, error) {
	record, err := v.Ledger.Get(recordID)
	if err != nil {
		return ProofBundle{}, err
	}
	records := []AuditRecord{record}
	return ProofBundle{
		BundleID:          uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		BundleType:        BundleSingle,
		Records:           records,
		PolicyCommitments: v.resolvePolicyCommitments(records),
		MerkleProofs:      v.proofsFor(records, includeMerkleProof),
	}, nil
}

// CreateBatchBundle builds a bundle over recordIDs, preserving input order.
func (v *Verifier) CreateBatchBundle(recordIDs []string) (ProofBundle, error) {
	records := make([]AuditRecord, 0, len(recordIDs))
	for _, id := range recordIDs {
		r, err := v.Ledger.Get(id)
		if err != nil {
			return ProofBundle{}, fmt.Errorf("record %s: %w", id, err)
		}
		records = append(records, r)
	}
	return ProofBundle{
		BundleID:          uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		BundleType:        BundleBatch,
		Records:           records,
		PolicyCommitments: v.resolvePolicyCommitments(records),
		MerkleProofs:      v.proofsFor(records, true),
	}, nil
}

// CreateTimeRangeBundle builds a bundle over records with Timestamp in the
// inclusive-exclusive interval [from, to), optionally filtered by tenantID.
func (v *Verifier) CreateTimeRangeBundle(from, to time.Time, tenantID string) (ProofBundle, error) {
	records := v.Ledger.InRange(from, to, tenantID)
	return ProofBundle{
		BundleID:          uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		BundleType:        BundleTimeRange,
		Records:           records,
		PolicyCommitments: v.resolvePolicyCommitments(records),
		MerkleProofs:      v.proofsFor(records, true),
	}, nil
}

// CreateTenantBundle builds a bundle over every record for tenantID,
// capped to the limit most recent records when limit > 0.
func (v *Verifier) CreateTenantBundle(tenantID string, limit int) (ProofBundle, error) {
	records := v.Ledger.AllTenant(tenantID, limit)
	return ProofBundle{
		BundleID:          uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		BundleType:        BundleTenant,
		Records:           records,
		PolicyCommitments: v.resolvePolicyCommitments(records),
		MerkleProofs:      v.proofsFor(records, true),
	}, nil
}

// VerificationResult is the itemized outcome of VerifyBundle.
type VerificationResult struct {
	Valid              bool
	IntegrityCheck     bool
	ChainVerification  bool
	MerkleVerification bool
	PolicyVerification bool
	Errors             []string
}

// VerifyBundle is pure: it requires no access to the live ledger and never
// mutates anything. It runs the four §4.5 sub-checks and conjuncts them.
func VerifyBundle(bundle ProofBundle) VerificationResult {
	result := VerificationResult{
		IntegrityCheck:     true,
		ChainVerification:  true,
		MerkleVerification: true,
		PolicyVerification: true,
	}

	byID := make(map[string]AuditRecord, len(bundle.Records))
	for _, r := range bundle.Records {
		byID[r.RecordID] = r

		bodyBytes, err := canonicalRecordBytes(r)
		if err != nil || sha256Hex(bodyBytes) != r.RecordHash {
			result.IntegrityCheck = false
			result.Errors = append(result.Errors, fmt.Sprintf("integrity: record %s hash mismatch", r.RecordID))
		}
	}

	// Chain: for every record whose declared predecessor is also embedded
	// in this bundle, the link must hold, and no two distinct records may
	// claim the same predecessor (a fork). Records whose predecessor is
	// not embedded are non-contiguous relative to this bundle and are
	// skipped, per §4.5.
	claimedBy := make(map[string]string) // previous_hash -> first claiming record_id
	for _, r := range bundle.Records {
		if r.PreviousHash == "" || r.PreviousHash == genesisHash {
			continue
		}
		predecessor, found := findByHash(bundle.Records, r.PreviousHash)
		if !found {
			continue
		}
		if predecessor.RecordHash != r.PreviousHash {
			result.ChainVerification = false
			result.Errors = append(result.Errors, fmt.Sprintf("chain: record %s previous_hash does not match embedded predecessor", r.RecordID))
			continue
		}
		if other, ok := claimedBy[r.PreviousHash]; ok && other != r.RecordID {
			result.ChainVerification = false
			result.Errors = append(result.Errors, fmt.Sprintf("chain: records %s and %s both claim predecessor hash %s", other, r.RecordID, r.PreviousHash))
			continue
		}
		claimedBy[r.PreviousHash] = r.RecordID
	}

	for recordID, proof := range bundle.MerkleProofs {
		if !VerifyMerkleProof(proof) {
			result.MerkleVerification = false
			result.Errors = append(result.Errors, fmt.Sprintf("merkle: record %s proof failed", recordID))
			continue
		}
		if rec, ok := byID[recordID]; ok && rec.RecordHash != proof.LeafHash {
			result.MerkleVerification = false
			result.Errors = append(result.Errors, fmt.Sprintf("merkle: record %s leaf mismatch", recordID))
		}
	}

	for _, r := range bundle.Records {
		if r.PolicyCommitment == "" {
			continue
		}
		entry, ok := bundle.PolicyCommitments[r.PolicyCommitment]
		if !ok || !entry.Resolved {
			continue // unresolved commitments are recorded verbatim, not failures
		}
		if sha256Hex(entry.CanonicalForm) != entry.CommitmentHash {
			result.PolicyVerification = false
			result.Errors = append(result.Errors, fmt.Sprintf("policy: commitment %s recompute mismatch", entry.CommitmentHash))
		}
	}

	result.Valid = result.IntegrityCheck && result.ChainVerification && result.MerkleVerification && result.PolicyVerification
	return result
}

func findByHash(records []AuditRecord, hash string) (AuditRecord, bool) {
	for _, r := range records {
		if r.RecordHash == hash {
			return r, true
		}
	}
	return AuditRecord{}, false
}

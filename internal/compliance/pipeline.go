package compliance

import (
	"sync"
)

// Fidelity is the amount of cryptographic material AAP attaches to a
// record for a given event.
type Fidelity string

const (
	FidelityMetadataOnly Fidelity = "metadata_only"
	FidelityChained      Fidelity = "chained"
	FidelityPolicyBound  Fidelity = "policy_bound"
	FidelityMerkleProof  Fidelity = "merkle_proof"
)

// Criticality is the policy-criticality tier used as one of the fidelity
// selection signals.
type Criticality string

const (
	CriticalityLow      Criticality = "low"
	CriticalityMedium   Criticality = "medium"
	CriticalityHigh     Criticality = "high"
	CriticalityCritical Criticality = "critical"
)

// PipelineConfig holds the fidelity selection maps and precedence order:
// per-event override > by_bucket > by_tenant > by_criticality > default.
type PipelineConfig struct {
	mu                sync.RWMutex
	DefaultFidelity   Fidelity
	byTenant          map[string]Fidelity
	byBucket          map[string]Fidelity // keyed "tenant_id/bucket"
	byCriticality     map[Criticality]Fidelity
}

// NewPipelineConfig returns a config with the documented criticality
// defaults (LOW -> METADATA_ONLY, MEDIUM -> CHAINED, HIGH -> POLICY_BOUND,
// CRITICAL -> MERKLE_PROOF) and a CHAINED default fidelity.
func NewPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		DefaultFidelity: FidelityChained,
		byTenant:        make(map[string]Fidelity),
		byBucket:        make(map[string]Fidelity),
		byCriticality: map[Criticality]Fidelity{
			CriticalityLow:      FidelityMetadataOnly,
			CriticalityMedium:   FidelityChained,
			CriticalityHigh:     FidelityPolicyBound,
			CriticalityCritical: FidelityMerkleProof,
		},
	}
}

func bucketKey(tenantID, bucket string) string { return tenantID + "/" + bucket }

// SetTenantFidelity pins a fidelity level for every event from tenantID.
func (c *PipelineConfig) SetTenantFidelity(tenantID string, f Fidelity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTenant[tenantID] = f
}

// SetBucketFidelity pins a fidelity level for a specific tenant/bucket pair.
func (c *PipelineConfig) SetBucketFidelity(tenantID, bucket string, f Fidelity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byBucket[bucketKey(tenantID, bucket)] = f
}

// SetCriticalityFidelity overrides the fidelity mapped to a criticality tier.
func (c *PipelineConfig) SetCriticalityFidelity(crit Criticality, f Fidelity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCriticality[crit] = f
}

// resolve applies the precedence order. override, when non-empty, wins
// outright; otherwise by_bucket > by_tenant > by_criticality > default.
func (c *PipelineConfig) resolve(tenantID, bucket string, criticality Criticality, override Fidelity) Fidelity {
	if override != "" {
		return override
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if f, ok := c.byBucket[bucketKey(tenantID, bucket)]; ok {
		return f
	}
	if f, ok := c.byTenant[tenantID]; ok {
		return f
	}
	if criticality != "" {
		if f, ok := c.byCriticality[criticality]; ok {
			return f
		}
	}
	return c.DefaultFidelity
}

// ProcessedAuditEvent is AAP's output: the selected fidelity, the record
// it produced, and an inclusion proof when one was available.
type ProcessedAuditEvent struct {
	Event            ComplianceEvent
	Fidelity         Fidelity
	Record           AuditRecord
	MerkleProof      *MerkleProof
	PolicyCommitment string
}

// PipelineHandler receives every processed event synchronously.
type PipelineHandler func(ProcessedAuditEvent)

// Pipeline implements AAP: for each event it resolves a fidelity level,
// builds a record with the fields that level calls for, appends it to the
// ledger (every level goes through the same chain), and fans the result
// out to registered handlers.
type Pipeline struct {
	mu       sync.Mutex
	Ledger   *Ledger
	Config   *PipelineConfig
	handlers []PipelineHandler
}

// NewPipeline wires a Pipeline to its ledger, using config if non-nil or a
// fresh default config otherwise.
func NewPipeline(ledger *Ledger, config *PipelineConfig) *Pipeline {
	if config == nil {
		config = NewPipelineConfig()
	}
	return &Pipeline{Ledger: ledger, Config: config}
}

// RegisterHandler adds fn to the set invoked on every processed event.
func (p *Pipeline) RegisterHandler(fn PipelineHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

// ProcessEvent resolves a fidelity level for event, builds the
// corresponding AuditRecord, appends it to the ledger, and — for
// MERKLE_PROOF — attempts to fetch the inclusion proof (nil if the
// containing batch is still open).
func (p *Pipeline) ProcessEvent(event ComplianceEvent, policy *CanonicalPolicy, criticality Criticality, override Fidelity) (ProcessedAuditEvent, error) {
	fidelity := p.Config.resolve(event.TenantID, event.Bucket, criticality, override)

	record := AuditRecord{
		EventID:   event.EventID,
		Timestamp: event.Timestamp,
		EventType: event.EventType,
		TenantID:  event.TenantID,
		Bucket:    event.Bucket,
		ObjectKey: event.ObjectKey,
	}

	metadata := map[string]interface{}{
		"fidelity": string(fidelity),
	}
	if event.Principal != "" {
		metadata["principal"] = event.Principal
	}

	var policyCommitment string
	switch fidelity {
	case FidelityMetadataOnly:
		// no chaining context beyond the ledger's own invariants; no policy
		// commitment, no event metadata echoed into the record.
	case FidelityChained:
		if event.Metadata != nil {
			metadata["event_metadata"] = event.Metadata
		}
	case FidelityPolicyBound, FidelityMerkleProof:
		if event.Metadata != nil {
			metadata["event_metadata"] = event.Metadata
		}
		if policy != nil {
			policyCommitment = policy.CommitmentHash
			record.PolicyCommitment = policyCommitment
		}
		if fidelity == FidelityMerkleProof {
			metadata["supports_merkle_proof"] = true
		}
	}
	record.Metadata = metadata

	appended, err := p.Ledger.Append(record)
	if err != nil {
		return ProcessedAuditEvent{}, err
	}
	record = appended

	var proof *MerkleProof
	if fidelity == FidelityMerkleProof {
		proof = p.Ledger.GenerateInclusionProof(record.RecordID)
	}

	processed := ProcessedAuditEvent{
		Event:            event,
		Fidelity:         fidelity,
		Record:           record,
		MerkleProof:      proof,
		PolicyCommitment: policyCommitment,
	}

	p.mu.Lock()
	handlers := make([]PipelineHandler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()
	for _, h := range handlers {
		func() {
			defer func() { recover() }()
			h(processed)
		}()
	}

	return processed, nil
}

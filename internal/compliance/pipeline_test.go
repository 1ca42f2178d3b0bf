package compliance

import (
	"testing"
	"time"
)

func sampleEvent(tenantID, bucket string) ComplianceEvent {
	return ComplianceEvent{
		EventID:   "evt-test",
		EventType: EventObjectCreate,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Bucket:    bucket,
		Metadata:  map[string]interface{}{"size": float64(1024)},
	}
}

func TestPipelineDefaultFidelityIsChained(t *testing.T) {
	p := NewPipeline(NewLedger(100), nil)
	processed, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), nil, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if processed.Fidelity != FidelityChained {
		t.Fatalf("expected default fidelity CHAINED, got %s", processed.Fidelity)
	}
}

func TestPipelinePrecedenceBucketBeatsTenant(t *testing.T) {
	cfg := NewPipelineConfig()
	cfg.SetTenantFidelity("tenant-a", FidelityMetadataOnly)
	cfg.SetBucketFidelity("tenant-a", "bucket-a", FidelityMerkleProof)
	p := NewPipeline(NewLedger(100), cfg)

	processed, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), nil, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if processed.Fidelity != FidelityMerkleProof {
		t.Fatalf("expected bucket override to win, got %s", processed.Fidelity)
	}
}

func TestPipelinePrecedenceOverrideBeatsEverything(t *testing.T) {
	cfg := NewPipelineConfig()
	cfg.SetBucketFidelity("tenant-a", "bucket-a", FidelityMerkleProof)
	p := NewPipeline(NewLedger(100), cfg)

	processed, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), nil, "", FidelityMetadataOnly)
	if err != nil {
		t.Fatal(err)
	}
	if processed.Fidelity != FidelityMetadataOnly {
		t.Fatalf("expected explicit override to win, got %s", processed.Fidelity)
	}
}

func TestPipelineCriticalityDefaults(t *testing.T) {
	p := NewPipeline(NewLedger(100), nil)
	processed, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), nil, CriticalityCritical, "")
	if err != nil {
		t.Fatal(err)
	}
	if processed.Fidelity != FidelityMerkleProof {
		t.Fatalf("expected CRITICAL -> MERKLE_PROOF, got %s", processed.Fidelity)
	}
}

func TestPipelinePolicyBoundRecordsCommitment(t *testing.T) {
	compiler := NewCompiler()
	cp, err := compiler.Compile(samplePolicy())
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(NewLedger(100), nil)
	processed, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), &cp, CriticalityHigh, "")
	if err != nil {
		t.Fatal(err)
	}
	if processed.Fidelity != FidelityPolicyBound {
		t.Fatalf("expected HIGH -> POLICY_BOUND, got %s", processed.Fidelity)
	}
	if processed.PolicyCommitment != cp.CommitmentHash {
		t.Fatal("expected the record to carry the policy commitment hash")
	}
}

func TestPipelineAllLevelsAppendToTheSameChain(t *testing.T) {
	ledger := NewLedger(100)
	p := NewPipeline(ledger, nil)
	for _, crit := range []Criticality{CriticalityLow, CriticalityMedium, CriticalityHigh, CriticalityCritical} {
		if _, err := p.ProcessEvent(sampleEvent("tenant-a", "bucket-a"), nil, crit, ""); err != nil {
			t.Fatal(err)
		}
	}
	if ledger.Count() != 4 {
		t.Fatalf("expected all 4 fidelity levels to append to the ledger, got %d records", ledger.Count())
	}
	if !ledger.VerifyChainIntegrity() {
		t.Fatal("expected the mixed-fidelity chain to verify")
	}
}

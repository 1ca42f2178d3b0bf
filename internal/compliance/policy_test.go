package compliance

import (
	"math/rand"
	"testing"
	"testing/quick"
)

func samplePolicy() Policy {
	return Policy{
		PolicyID: "policy-1",
		Version:  "1.0",
		Statements: []PolicyStatement{
			{
				Sid:       "stmt-1",
				Effect:    EffectAllow,
				Actions:   []string{"s3:PutObject", "s3:GetObject"},
				Resources: []string{"bucket/b", "bucket/a"},
			},
		},
	}
}

// TestCompileCanonicalizesActionAndResourceOrder mirrors seed scenario S1.
func TestCompileCanonicalizesActionAndResourceOrder(t *testing.T) {
	c := NewCompiler()
	cp, err := c.Compile(samplePolicy())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(cp.CommitmentHash) != 64 {
		t.Fatalf("commitment hash must be 64 hex chars, got %d", len(cp.CommitmentHash))
	}

	reversed := samplePolicy()
	reversed.Statements[0].Actions = []string{"s3:GetObject", "s3:PutObject"}
	reversed.Statements[0].Resources = []string{"bucket/a", "bucket/b"}

	c2 := NewCompiler()
	cp2, err := c2.Compile(reversed)
	if err != nil {
		t.Fatalf("compile reversed: %v", err)
	}
	if cp.CommitmentHash != cp2.CommitmentHash {
		t.Fatalf("commitment hash must be permutation-invariant: %s != %s", cp.CommitmentHash, cp2.CommitmentHash)
	}
}

// TestCompilePermutationInvariantProperty generalizes S1 via testing/quick,
// in the teacher's style (TestAuditChainProperty used testing/quick too).
func TestCompilePermutationInvariantProperty(t *testing.T) {
	f := func(seed int64) bool {
		rng := rand.New(rand.NewSource(seed))
		actions := []string{"s3:GetObject", "s3:PutObject", "s3:DeleteObject", "s3:ListBucket"}
		resources := []string{"bucket/a", "bucket/b", "bucket/c", "bucket/d"}

		base := Policy{
			PolicyID: "policy-quick",
			Version:  "1.0",
			Statements: []PolicyStatement{
				{Sid: "stmt-1", Effect: EffectAllow, Actions: actions, Resources: resources},
			},
		}
		shuffled := Policy{
			PolicyID: "policy-quick",
			Version:  "1.0",
			Statements: []PolicyStatement{
				{Sid: "stmt-1", Effect: EffectAllow, Actions: shuffleStrings(rng, actions), Resources: shuffleStrings(rng, resources)},
			},
		}

		c1, c2 := NewCompiler(), NewCompiler()
		cp1, err1 := c1.Compile(base)
		cp2, err2 := c2.Compile(shuffled)
		if err1 != nil || err2 != nil {
			return false
		}
		return cp1.CommitmentHash == cp2.CommitmentHash
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func shuffleStrings(rng *rand.Rand, in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestCompileRejectsMissingFields(t *testing.T) {
	c := NewCompiler()
	if _, err := c.Compile(Policy{}); err == nil {
		t.Fatal("expected error for empty policy")
	}
}

func TestGetReturnsLatestCompile(t *testing.T) {
	c := NewCompiler()
	p := samplePolicy()
	if _, err := c.Compile(p); err != nil {
		t.Fatal(err)
	}
	p.Name = "updated"
	cp2, err := c.Compile(p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Get(p.PolicyID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CommitmentHash != cp2.CommitmentHash {
		t.Fatal("Get should return the most recent compile")
	}
	versions := c.Versions(p.PolicyID)
	if len(versions) != 2 {
		t.Fatalf("expected 2 version entries, got %d", len(versions))
	}
}

func TestVerifyCommitment(t *testing.T) {
	c := NewCompiler()
	cp, err := c.Compile(samplePolicy())
	if err != nil {
		t.Fatal(err)
	}
	if !c.VerifyCommitment(cp.PolicyID, cp.CommitmentHash) {
		t.Fatal("expected verify_commitment to succeed with the correct hash")
	}
	if c.VerifyCommitment(cp.PolicyID, "deadbeef") {
		t.Fatal("expected verify_commitment to fail with a wrong hash")
	}
	if c.VerifyCommitment("no-such-policy", cp.CommitmentHash) {
		t.Fatal("expected verify_commitment to fail for an unknown policy")
	}
}

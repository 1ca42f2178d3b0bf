package compliance

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// PolicyEffect is either Allow or Deny. PAC never interprets this value;
// it only canonicalizes and commits it.
type PolicyEffect string

const (
	EffectAllow PolicyEffect = "Allow"
	EffectDeny  PolicyEffect = "Deny"
)

// PolicyStatement is one rule within a Policy.
type PolicyStatement struct {
	Sid        string
	Effect     PolicyEffect
	Actions    []string
	Resources  []string
	Principals []string
	Conditions map[string]interface{}
}

// Policy is the caller-supplied, pre-canonicalization input to PAC.
type Policy struct {
	PolicyID   string
	Version    string
	Name       string
	Statements []PolicyStatement
	Metadata   map[string]interface{}
}

func (p Policy) validate() error {
	if p.PolicyID == "" || p.Version == "" || len(p.Statements) == 0 {
		return fmt.Errorf("%w: policy_id, version and at least one statement are required", ErrInvalidInput)
	}
	for _, s := range p.Statements {
		if s.Sid == "" {
			return fmt.Errorf("%w: every statement requires a sid", ErrInvalidInput)
		}
	}
	return nil
}

// CanonicalPolicy is the immutable output of PAC.Compile.
type CanonicalPolicy struct {
	PolicyID       string
	Version        string
	CanonicalForm  []byte
	CommitmentHash string
	CreatedAt      time.Time
	Origin         Policy
}

// Compiler implements PAC: canonicalization, commitment hashing and
// version-history bookkeeping, guarded by its own lock per §5.
type Compiler struct {
	mu       sync.RWMutex
	latest   map[string]CanonicalPolicy            // policy_id -> most recent compile
	versions map[string]map[string]CanonicalPolicy // policy_id -> version -> compile
	order    map[string][]string                   // policy_id -> version strings in compile order
}

// NewCompiler constructs an empty PAC store.
func NewCompiler() *Compiler {
	return &Compiler{
		latest:   make(map[string]CanonicalPolicy),
		versions: make(map[string]map[string]CanonicalPolicy),
		order:    make(map[string][]string),
	}
}

// Compile canonicalizes policy per §4.1's ordering rules, computes its
// commitment hash, and stores the result. A later compile of the same
// policy_id overwrites the "latest" lookup for that id; version history is
// preserved regardless, and a secondary (policy_id, version) lookup keeps
// every historical canonical form reachable (see DESIGN.md Open Questions).
func (c *Compiler) Compile(policy Policy) (CanonicalPolicy, error) {
	if err := policy.validate(); err != nil {
		return CanonicalPolicy{}, err
	}

	ordered := canonicalizePolicy(policy)
	form, err := stableJSON(ordered)
	if err != nil {
		return CanonicalPolicy{}, fmt.Errorf("canonicalize policy: %w", err)
	}

	cp := CanonicalPolicy{
		PolicyID:       policy.PolicyID,
		Version:        policy.Version,
		CanonicalForm:  form,
		CommitmentHash: sha256Hex(form),
		CreatedAt:      time.Now().UTC(),
		Origin:         policy,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest[policy.PolicyID] = cp
	if c.versions[policy.PolicyID] == nil {
		c.versions[policy.PolicyID] = make(map[string]CanonicalPolicy)
	}
	c.versions[policy.PolicyID][policy.Version] = cp
	c.order[policy.PolicyID] = append(c.order[policy.PolicyID], policy.Version)

	return cp, nil
}

// Get returns the most recently compiled CanonicalPolicy for policy_id.
func (c *Compiler) Get(policyID string) (CanonicalPolicy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.latest[policyID]
	if !ok {
		return CanonicalPolicy{}, ErrNotFound
	}
	return cp, nil
}

// GetVersion returns a specific historical compile.
func (c *Compiler) GetVersion(policyID, version string) (CanonicalPolicy, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byVersion, ok := c.versions[policyID]
	if !ok {
		return CanonicalPolicy{}, ErrNotFound
	}
	cp, ok := byVersion[version]
	if !ok {
		return CanonicalPolicy{}, ErrNotFound
	}
	return cp, nil
}

// Versions returns the ordered sequence of version strings compiled for
// policy_id, in compile order (duplicates permitted).
func (c *Compiler) Versions(policyID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.order[policyID]))
	copy(out, c.order[policyID])
	return out
}

// VerifyCommitment reports whether policy_id is stored and its commitment
// hash equals claimedHash.
func (c *Compiler) VerifyCommitment(policyID, claimedHash string) bool {
	cp, err := c.Get(policyID)
	if err != nil {
		return false
	}
	return cp.CommitmentHash == claimedHash
}

// canonicalizePolicy builds the §4.1 nested ordered structure: top-level
// keys PolicyId, Version, Name, Statements; per-statement keys Sid,
// Effect, Actions, Resources, then Principals/Conditions only if non-empty;
// Actions/Resources/Principals sorted ASCII lexicographic; Statements
// sorted by Sid; Conditions keys sorted recursively.
//
// The result is a flat []interface{} of alternating key/value pairs, not a
// map[string]interface{} — normalize()'s map branch re-sorts keys
// alphabetically, which would silently discard the §4.1 fixed field order.
// Encoding the already-ordered pairs directly, the same way
// canonicalRecordBytes does in ledger.go, lets that order survive
// stableJSON unchanged.
func canonicalizePolicy(p Policy) []interface{} {
	statements := make([]PolicyStatement, len(p.Statements))
	copy(statements, p.Statements)
	sort.Slice(statements, func(i, j int) bool { return statements[i].Sid < statements[j].Sid })

	stmtOut := make([]interface{}, 0, len(statements))
	for _, s := range statements {
		entry := []interface{}{
			"Sid", s.Sid,
			"Effect", string(s.Effect),
			"Actions", sortedCopy(s.Actions),
			"Resources", sortedCopy(s.Resources),
		}
		if len(s.Principals) > 0 {
			entry = append(entry, "Principals", sortedCopy(s.Principals))
		}
		if len(s.Conditions) > 0 {
			entry = append(entry, "Conditions", s.Conditions)
		}
		stmtOut = append(stmtOut, entry)
	}

	return []interface{}{
		"PolicyId", p.PolicyID,
		"Version", p.Version,
		"Name", p.Name,
		"Statements", stmtOut,
	}
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

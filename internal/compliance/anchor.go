package compliance

import "context"

// AnchorProvider is the external anchoring collaborator referenced in §6:
// it receives a ledger or batch root and returns an opaque blob to embed
// in a bundle's ExternalAnchor field (e.g. a blockchain transaction ID or
// a timestamp-authority token). The core specifies this hook only — no
// concrete provider ships, per §1's "we specify the hook, not the
// integration."
type AnchorProvider interface {
	// Anchor submits rootHash for external anchoring and returns an opaque
	// blob to be embedded verbatim in a proof bundle.
	Anchor(ctx context.Context, rootHash string) ([]byte, error)
}

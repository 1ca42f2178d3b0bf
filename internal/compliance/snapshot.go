package compliance

import "context"

// Snapshotter is the persistence-adapter collaborator referenced in §6: it
// periodically receives records and trees for durable storage and must
// not mutate them. No concrete adapter ships; persistence to disk or a
// database is explicitly out of scope for the core (§1).
type Snapshotter interface {
	// SnapshotRecords is called periodically with records appended since
	// the last snapshot, in append order. Implementations must treat
	// records as read-only.
	SnapshotRecords(ctx context.Context, records []AuditRecord) error

	// SnapshotTree is called whenever a Merkle batch closes.
	SnapshotTree(ctx context.Context, tree *MerkleTree) error
}

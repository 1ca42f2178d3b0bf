package compliance

import "testing"

// TestMerkleProof mirrors seed scenario S5: batch size 4, proof path length 2.
func TestMerkleProof(t *testing.T) {
	l := NewLedger(4)
	var recordIDs []string
	for i := 0; i < 4; i++ {
		r, err := l.Append(newRecord("evt", "tenant-a", "bucket-a"))
		if err != nil {
			t.Fatal(err)
		}
		recordIDs = append(recordIDs, r.RecordID)
	}

	proof := l.GenerateInclusionProof(recordIDs[2])
	if proof == nil {
		t.Fatal("expected a proof once the batch has closed")
	}
	if len(proof.Path) != 2 {
		t.Fatalf("expected a proof path of length 2 for 4 leaves, got %d", len(proof.Path))
	}
	if !VerifyMerkleProof(*proof) {
		t.Fatal("expected proof to verify")
	}

	tampered := *proof
	tampered.Path = append([]ProofStep(nil), proof.Path...)
	tampered.Path[0].SiblingHash = genesisHash
	if VerifyMerkleProof(tampered) {
		t.Fatal("expected tampered sibling hash to fail verification")
	}

	flipped := *proof
	flipped.Path = append([]ProofStep(nil), proof.Path...)
	if flipped.Path[0].Position == PositionLeft {
		flipped.Path[0].Position = PositionRight
	} else {
		flipped.Path[0].Position = PositionLeft
	}
	if VerifyMerkleProof(flipped) {
		t.Fatal("expected flipped position bit to fail verification (unless siblings happen to be equal)")
	}
}

// TestMerkleCompletenessBoundary mirrors property 8: a proof exists iff
// k < b*floor(count/b).
func TestMerkleCompletenessBoundary(t *testing.T) {
	l := NewLedger(4)
	var recordIDs []string
	for i := 0; i < 6; i++ {
		r, err := l.Append(newRecord("evt", "tenant-a", "bucket-a"))
		if err != nil {
			t.Fatal(err)
		}
		recordIDs = append(recordIDs, r.RecordID)
	}
	// 6 records, batch size 4: only the first 4 are in a closed batch.
	for i, id := range recordIDs {
		proof := l.GenerateInclusionProof(id)
		if i < 4 && proof == nil {
			t.Fatalf("expected record %d to have a proof", i)
		}
		if i >= 4 && proof != nil {
			t.Fatalf("expected record %d (in the open tail batch) to have no proof", i)
		}
	}
}

func TestBuildMerkleTreeOddLeafDuplication(t *testing.T) {
	leaves := []string{"a", "b", "c"}
	tree := buildMerkleTree(leaves)
	expectedLevel1 := []string{sha256HexString("a", "b"), sha256HexString("c", "c")}
	expectedRoot := sha256HexString(expectedLevel1[0], expectedLevel1[1])
	if tree.RootHash != expectedRoot {
		t.Fatalf("expected root %s, got %s", expectedRoot, tree.RootHash)
	}
}

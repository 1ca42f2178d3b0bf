package analytics

import "testing"

func TestSummarizeKAnonRedaction(t *testing.T) {
	counts := map[string]int{"bucket-a": 10, "bucket-b": 3, "bucket-c": 1}
	summary := Summarize("tenant-1", counts, 5, 0.5, 1, 24)
	if summary.RedactedCount != 2 {
		t.Fatalf("expected 2 redacted, got %d", summary.RedactedCount)
	}
	if len(summary.Items) != 1 {
		t.Fatalf("expected 1 surviving item, got %d", len(summary.Items))
	}
	if summary.Items[0].Bucket != "bucket-a" {
		t.Fatalf("expected bucket-a, got %s", summary.Items[0].Bucket)
	}
}

func TestSummarizeAppliesNoise(t *testing.T) {
	counts := map[string]int{"bucket-a": 10}
	summary := Summarize("tenant-1", counts, 1, 0.8, 42, 24)
	if len(summary.Items) != 1 {
		t.Fatalf("expected 1 item")
	}
	if summary.Items[0].Noised == float64(summary.Items[0].Count) {
		t.Fatal("expected Laplace noise to perturb the raw count")
	}
}

func TestSummarizeDefaultsKAndEpsilon(t *testing.T) {
	summary := Summarize("tenant-1", map[string]int{"bucket-a": 1}, 0, 0, 7, 1)
	if summary.AppliedK != 1 {
		t.Fatalf("expected default k=1, got %d", summary.AppliedK)
	}
	if summary.AppliedEpsilon != 0.7 {
		t.Fatalf("expected default epsilon=0.7, got %v", summary.AppliedEpsilon)
	}
}

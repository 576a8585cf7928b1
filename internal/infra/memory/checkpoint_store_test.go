package memory

import (
	"context"
	"testing"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCheckpointStore()

	_ = store.SaveAnswer(ctx, "attempt-1", "q1", "4")
	_ = store.SaveAnswer(ctx, "attempt-1", "q2", "Mars")
	_ = store.ClearAnswer(ctx, "attempt-1", "q2")

	saved, err := store.Load(ctx, "attempt-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(saved) != 1 || saved["q1"] != "4" {
		t.Fatalf("unexpected checkpoint %v", saved)
	}

	_ = store.Delete(ctx, "attempt-1")
	saved, _ = store.Load(ctx, "attempt-1")
	if len(saved) != 0 {
		t.Fatalf("expected checkpoint removed, got %v", saved)
	}
}

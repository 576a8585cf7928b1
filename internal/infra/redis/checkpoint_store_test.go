package redis

import (
	"context"
	"testing"
	"time"
)

func TestCheckpointStoreRoundTrip(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewCheckpointStore(client, time.Hour)
	ctx := context.Background()

	if err := store.SaveAnswer(ctx, "a1", "q1", "4"); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = store.SaveAnswer(ctx, "a1", "q2", "Mars")
	_ = store.SaveAnswer(ctx, "a1", "q1", "5")

	if got := mr.HGet("attempt:a1:answers", "q1"); got != "5" {
		t.Fatalf("expected last write to win, got %q", got)
	}
	if mr.TTL("attempt:a1:answers") != time.Hour {
		t.Fatalf("expected checkpoint ttl")
	}

	if err := store.ClearAnswer(ctx, "a1", "q2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	saved, err := store.Load(ctx, "a1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(saved) != 1 || saved["q1"] != "5" {
		t.Fatalf("unexpected checkpoint %v", saved)
	}

	if err := store.Delete(ctx, "a1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("attempt:a1:answers") {
		t.Fatalf("expected checkpoint removed")
	}
	if saved, _ := store.Load(ctx, "a1"); len(saved) != 0 {
		t.Fatalf("expected empty load after delete, got %v", saved)
	}
}

package redis

import (
	"context"
	"testing"
	"time"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/domain"
)

type noopSubmitter struct{}

func (noopSubmitter) SubmitAttempt(_ context.Context, s domain.Submission) (domain.SubmitResult, error) {
	return domain.SubmitResult{AttemptID: s.AttemptID}, nil
}

func sampleSession(id string) *app.Session {
	now := time.Now()
	return app.NewSession(domain.Attempt{
		AttemptID: id,
		QuizID:    "quiz-1",
		StartedAt: now,
		Deadline:  now.Add(10 * time.Minute),
	}, []domain.Question{{ID: "q1", Options: []string{"a"}}}, noopSubmitter{})
}

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewSessionStore(client, time.Minute, WithOwner("runner-a"))
	session := sampleSession("attempt-1")

	store.Put(session)
	if !mr.Exists("attempt:session:attempt-1") {
		t.Fatalf("expected redis key to be set")
	}
	if owner, _ := mr.Get("attempt:session:attempt-1"); owner != "runner-a" {
		t.Fatalf("expected lease owned by runner-a, got %q", owner)
	}
	if ttl := mr.TTL("attempt:session:attempt-1"); ttl != time.Minute {
		t.Fatalf("expected one lease of ttl, got %v", ttl)
	}
	if got, ok := store.Get("attempt-1"); !ok || got != session {
		t.Fatalf("expected local session")
	}

	store.Delete("attempt-1")
	if mr.Exists("attempt:session:attempt-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("attempt-1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreHostedOnlyForOtherRunners(t *testing.T) {
	_, client := newMiniredis(t)
	ctx := context.Background()
	a := NewSessionStore(client, time.Minute, WithOwner("runner-a"))
	b := NewSessionStore(client, time.Minute, WithOwner("runner-b"))

	a.Put(sampleSession("attempt-2"))
	if hosted, err := a.Hosted(ctx, "attempt-2"); err != nil || hosted {
		t.Fatalf("own lease must not count as hosted elsewhere, got %v %v", hosted, err)
	}
	if hosted, err := b.Hosted(ctx, "attempt-2"); err != nil || !hosted {
		t.Fatalf("expected attempt hosted by runner-a, got %v %v", hosted, err)
	}
	if hosted, err := b.Hosted(ctx, "attempt-unknown"); err != nil || hosted {
		t.Fatalf("expected no lease, got %v %v", hosted, err)
	}

	a.Delete("attempt-2")
	if hosted, _ := b.Hosted(ctx, "attempt-2"); hosted {
		t.Fatalf("expected lease released")
	}
}

func TestSessionStoreRefreshKeepsLeasesAlive(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewSessionStore(client, 30*time.Second)
	store.Put(sampleSession("attempt-3"))

	mr.FastForward(20 * time.Second)
	store.refresh(context.Background())
	if ttl := mr.TTL("attempt:session:attempt-3"); ttl != 30*time.Second {
		t.Fatalf("expected lease renewed, got %v", ttl)
	}

	mr.FastForward(31 * time.Second)
	if mr.Exists("attempt:session:attempt-3") {
		t.Fatalf("expected an unrefreshed lease to expire")
	}
}

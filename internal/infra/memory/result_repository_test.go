package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/domain"
)

type slowResultLoader struct {
	calls int32
	delay time.Duration
}

func (l *slowResultLoader) FetchResult(_ context.Context, attemptID string) (domain.AttemptResult, error) {
	atomic.AddInt32(&l.calls, 1)
	time.Sleep(l.delay)
	graded := time.Now()
	return domain.AttemptResult{AttemptID: attemptID, Score: 7, TotalMarks: 10, SubmissionTime: &graded}, nil
}

// gradingLoader answers ungraded until graded is set.
type gradingLoader struct {
	mu     sync.Mutex
	calls  int
	graded bool
}

func (l *gradingLoader) FetchResult(_ context.Context, attemptID string) (domain.AttemptResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if !l.graded {
		return domain.AttemptResult{AttemptID: attemptID}, nil
	}
	at := time.Date(2024, 11, 22, 9, 30, 0, 0, time.UTC)
	return domain.AttemptResult{AttemptID: attemptID, Score: 3, SubmissionTime: &at}, nil
}

func (l *gradingLoader) grade() {
	l.mu.Lock()
	l.graded = true
	l.mu.Unlock()
}

func TestResultRepositorySharesConcurrentLoads(t *testing.T) {
	loader := &slowResultLoader{delay: 50 * time.Millisecond}
	repo := NewResultRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.GetResult(context.Background(), "attempt-1")
			if err != nil {
				t.Errorf("get result: %v", err)
				return
			}
			if res.Score != 7 {
				t.Errorf("unexpected result %+v", res)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&loader.calls); n != 1 {
		t.Fatalf("expected one backend fetch, got %d", n)
	}
}

func TestResultRepositoryDoesNotCacheUngraded(t *testing.T) {
	loader := &gradingLoader{}
	repo := NewResultRepository(loader, time.Minute)
	ctx := context.Background()

	before, err := repo.GetResult(ctx, "attempt-2")
	if err != nil || before.Graded() {
		t.Fatalf("expected ungraded result, got %+v %v", before, err)
	}

	loader.grade()
	after, err := repo.GetResult(ctx, "attempt-2")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if !after.Graded() || after.Score != 3 {
		t.Fatalf("expected graded result after submit, got %+v", after)
	}

	if _, err := repo.GetResult(ctx, "attempt-2"); err != nil {
		t.Fatalf("get result: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected the graded result cached, got %d fetches", loader.calls)
	}
}

func TestResultRepositoryKeysByCaller(t *testing.T) {
	loader := &gradingLoader{graded: true}
	repo := NewResultRepository(loader, time.Minute)

	alice := auth.NewStore()
	alice.Set(auth.Context{Token: "alice"})
	bob := auth.NewStore()
	bob.Set(auth.Context{Token: "bob"})

	for _, store := range []*auth.Store{alice, bob, alice} {
		if _, err := repo.GetResult(auth.NewContext(context.Background(), store), "attempt-3"); err != nil {
			t.Fatalf("get result: %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("expected one fetch per caller, got %d", loader.calls)
	}
}

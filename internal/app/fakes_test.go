package app_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/clock"
	"quiz-attempt/internal/domain"
)

var errNetwork = errors.New("dial tcp: connection refused")

// fakeBackend counts submit calls and can fail or block them.
type fakeBackend struct {
	mu       sync.Mutex
	started  domain.StartedAttempt
	startErr error
	calls    []domain.Submission
	failures int
	gate     chan struct{}
	entered  chan struct{}
}

func (b *fakeBackend) StartAttempt(_ context.Context, _ string) (domain.StartedAttempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return domain.StartedAttempt{}, b.startErr
	}
	return b.started, nil
}

func (b *fakeBackend) SubmitAttempt(_ context.Context, submission domain.Submission) (domain.SubmitResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, submission)
	fail := b.failures > 0
	if fail {
		b.failures--
	}
	gate, entered := b.gate, b.entered
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if fail {
		return domain.SubmitResult{}, errNetwork
	}
	answered := 0
	for _, r := range submission.Responses {
		if r.Response != "" {
			answered++
		}
	}
	return domain.SubmitResult{Score: answered}, nil
}

func (b *fakeBackend) Calls() []domain.Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.Submission, len(b.calls))
	copy(out, b.calls)
	return out
}

type fakeNow struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeNow() *fakeNow {
	return &fakeNow{now: time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newTestSession builds an un-started session whose clock reads fake time; tests drive Tick.
func newTestSession(backend app.Submitter, fake *fakeNow, duration time.Duration, opts ...app.SessionOption) *app.Session {
	start := fake.Now()
	attempt := domain.Attempt{
		AttemptID:  "attempt-42",
		QuizID:     "quiz-1",
		Title:      "General Knowledge",
		TotalMarks: 3,
		Duration:   duration,
		StartedAt:  start,
		Deadline:   start.Add(duration),
	}
	opts = append(opts, app.WithClockOptions(clock.WithNow(fake.Now)))
	return app.NewSession(attempt, sampleQuestions(), backend, opts...)
}

func startedAttempt(id string, duration time.Duration) domain.StartedAttempt {
	return domain.StartedAttempt{
		AttemptID:  id,
		QuizID:     "quiz-1",
		Title:      "General Knowledge",
		TotalMarks: len(sampleQuestions()),
		Duration:   duration,
		Questions:  sampleQuestions(),
	}
}

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/clock"
	"quiz-attempt/internal/domain"
)

// Backend is the external quiz API as far as attempts are concerned.
type Backend interface {
	StartAttempt(ctx context.Context, quizID string) (domain.StartedAttempt, error)
	Submitter
}

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// HostChecker is implemented by session repositories shared between runners.
type HostChecker interface {
	Hosted(ctx context.Context, attemptID string) (bool, error)
}

// ResultRepository loads finished attempt results (through a cache).
type ResultRepository interface {
	GetResult(ctx context.Context, attemptID string) (domain.AttemptResult, error)
}

// AttemptService starts attempts and owns the live sessions.
type AttemptService struct {
	backend     Backend
	sessions    SessionRepository
	results     ResultRepository
	checkpoints Checkpointer
	validate    *validator.Validate
	log         zerolog.Logger
	now         func() time.Time
	clockOpts   []clock.Option
	submitAfter time.Duration
}

// ServiceOption customizes an AttemptService.
type ServiceOption func(*AttemptService)

// WithServiceLogger sets the logger handed to every session.
func WithServiceLogger(log zerolog.Logger) ServiceOption {
	return func(s *AttemptService) { s.log = log }
}

// WithCheckpoints enables answer checkpoints for every session.
func WithCheckpoints(cp Checkpointer) ServiceOption {
	return func(s *AttemptService) { s.checkpoints = cp }
}

// WithServiceClock replaces time.Now for deadlines and the session clocks.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *AttemptService) {
		s.now = now
		s.clockOpts = append(s.clockOpts, clock.WithNow(now))
	}
}

// WithExpiryTimeout bounds the submit a session makes when its clock runs out.
func WithExpiryTimeout(d time.Duration) ServiceOption {
	return func(s *AttemptService) { s.submitAfter = d }
}

// WithTickInterval overrides the one-second countdown tick.
func WithTickInterval(d time.Duration) ServiceOption {
	return func(s *AttemptService) { s.clockOpts = append(s.clockOpts, clock.WithInterval(d)) }
}

func NewAttemptService(backend Backend, sessions SessionRepository, results ResultRepository, opts ...ServiceOption) *AttemptService {
	s := &AttemptService{
		backend:  backend,
		sessions: sessions,
		results:  results,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start asks the backend for a new attempt and runs its session.
// Any failure here is a StartFailure: no session is registered and nothing ticks.
// Credentials attached to ctx with auth.NewContext are used for the start and
// for every later submit of the session, including the one on expiry.
func (s *AttemptService) Start(ctx context.Context, quizID string) (*Session, error) {
	started, err := s.backend.StartAttempt(ctx, quizID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStartFailed, err)
	}
	if err := s.validate.Struct(started); err != nil {
		return nil, fmt.Errorf("%w: invalid start response: %w", domain.ErrStartFailed, err)
	}

	student := ""
	if store, ok := auth.FromContext(ctx); ok {
		student = store.Current().Subject
	}

	// The backend may hand back an attempt this runner is already hosting.
	if existing, ok := s.sessions.Get(started.AttemptID); ok && !existing.Closed() {
		if existing.Attempt().Student != student {
			return nil, fmt.Errorf("%w: %w", domain.ErrStartFailed, domain.ErrAttemptHosted)
		}
		return existing, nil
	}
	if checker, ok := s.sessions.(HostChecker); ok {
		hosted, err := checker.Hosted(ctx, started.AttemptID)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("attempt_id", started.AttemptID).Msg("hosted check failed")
		case hosted:
			return nil, fmt.Errorf("%w: %w", domain.ErrStartFailed, domain.ErrAttemptHosted)
		}
	}

	now := s.now()
	deadline, err := attemptDeadline(now, started)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStartFailed, err)
	}

	attempt := domain.Attempt{
		AttemptID:  started.AttemptID,
		QuizID:     started.QuizID,
		Title:      started.Title,
		TotalMarks: started.TotalMarks,
		Duration:   started.Duration,
		StartedAt:  now,
		Deadline:   deadline,
		Student:    student,
	}

	opts := []SessionOption{
		WithLogger(s.log),
		WithClockOptions(s.clockOpts...),
		WithSubmittedHook(s.submitted),
		WithExpirySubmitTimeout(s.submitAfter),
		WithExpiryContext(ctx),
	}
	if s.checkpoints != nil {
		opts = append(opts, WithCheckpointer(s.checkpoints))
	}
	session := NewSession(attempt, started.Questions, s.backend, opts...)

	if s.checkpoints != nil {
		saved, err := s.checkpoints.Load(ctx, attempt.AttemptID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attempt.AttemptID).Msg("load checkpoint failed")
		} else if n := session.Restore(saved); n > 0 {
			s.log.Info().Str("attempt_id", attempt.AttemptID).Int("restored", n).Msg("restored checkpointed answers")
		}
	}

	s.sessions.Put(session)
	session.Start()
	s.log.Info().
		Str("attempt_id", attempt.AttemptID).
		Str("quiz_id", attempt.QuizID).
		Time("deadline", deadline).
		Int("questions", len(started.Questions)).
		Msg("attempt started")
	return session, nil
}

// Get returns a live session.
func (s *AttemptService) Get(attemptID string) (*Session, error) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return session, nil
}

// Submit forwards a trigger to a live session.
func (s *AttemptService) Submit(ctx context.Context, attemptID string, trigger domain.Trigger) (domain.SubmitResult, error) {
	session, err := s.Get(attemptID)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	return session.Submit(ctx, trigger)
}

// Abandon tears a session down without submitting it.
func (s *AttemptService) Abandon(_ context.Context, attemptID string) {
	session, ok := s.sessions.Get(attemptID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(attemptID)
}

// Result loads the stored outcome of a finished attempt.
func (s *AttemptService) Result(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	return s.results.GetResult(ctx, attemptID)
}

func (s *AttemptService) submitted(session *Session) {
	s.sessions.Delete(session.ID())
	if s.checkpoints == nil {
		return
	}
	if err := s.checkpoints.Delete(context.Background(), session.ID()); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", session.ID()).Msg("delete checkpoint failed")
	}
}

// attemptDeadline is start+duration, cut short by the quiz window when it closes first.
func attemptDeadline(now time.Time, started domain.StartedAttempt) (time.Time, error) {
	deadline := now.Add(started.Duration)
	if started.WindowStart != nil && started.WindowEnd != nil && !started.WindowEnd.After(*started.WindowStart) {
		return time.Time{}, domain.ErrInvalidWindow
	}
	if started.WindowEnd != nil {
		if !started.WindowEnd.After(now) {
			return time.Time{}, domain.ErrQuizClosed
		}
		if started.WindowEnd.Before(deadline) {
			deadline = *started.WindowEnd
		}
	}
	return deadline, nil
}

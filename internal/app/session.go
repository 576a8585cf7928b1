package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quiz-attempt/internal/clock"
	"quiz-attempt/internal/domain"
)

// Submitter sends a finished attempt to the backend.
type Submitter interface {
	SubmitAttempt(ctx context.Context, submission domain.Submission) (domain.SubmitResult, error)
}

// Checkpointer persists in-progress answers outside the process, best effort.
type Checkpointer interface {
	SaveAnswer(ctx context.Context, attemptID, questionID, value string) error
	ClearAnswer(ctx context.Context, attemptID, questionID string) error
	Load(ctx context.Context, attemptID string) (map[string]string, error)
	Delete(ctx context.Context, attemptID string) error
}

const defaultExpirySubmitTimeout = 30 * time.Second

// Session is one running attempt: the countdown, the answers and the submission guard.
//
// Every transition goes through the session mutex; the backend call runs outside it
// while the state is Submitting, which is what makes the first trigger the only one.
type Session struct {
	attempt    domain.Attempt
	answers    *AnswerStore
	submitter  Submitter
	checkpoint Checkpointer
	clock      *clock.Clock
	log        zerolog.Logger

	clockOpts     []clock.Option
	expiryTimeout time.Duration
	expiryCtx     context.Context
	onSubmitted   func(*Session)

	mu          sync.Mutex
	state       domain.AttemptState
	closed      bool
	submissions int
	result      *domain.SubmitResult
	lastErr     error
	subscribers map[chan domain.SessionEvent]struct{}
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger attaches a logger; the session adds its attempt ID.
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithCheckpointer enables write-through answer checkpoints.
func WithCheckpointer(cp Checkpointer) SessionOption {
	return func(s *Session) { s.checkpoint = cp }
}

// WithClockOptions passes options (fake now, interval) to the attempt clock.
func WithClockOptions(opts ...clock.Option) SessionOption {
	return func(s *Session) { s.clockOpts = append(s.clockOpts, opts...) }
}

// WithExpirySubmitTimeout bounds the backend call made when the clock runs out.
func WithExpirySubmitTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.expiryTimeout = d
		}
	}
}

// WithExpiryContext supplies the values (credentials, request IDs) the expiry
// submit runs with. Cancellation of ctx is not inherited.
func WithExpiryContext(ctx context.Context) SessionOption {
	return func(s *Session) { s.expiryCtx = context.WithoutCancel(ctx) }
}

// WithSubmittedHook runs once the session reaches Submitted.
func WithSubmittedHook(fn func(*Session)) SessionOption {
	return func(s *Session) { s.onSubmitted = fn }
}

// NewSession builds an Active session. The clock does not run until Start.
func NewSession(attempt domain.Attempt, questions []domain.Question, submitter Submitter, opts ...SessionOption) *Session {
	s := &Session{
		attempt:       attempt,
		answers:       NewAnswerStore(questions),
		submitter:     submitter,
		log:           zerolog.Nop(),
		expiryTimeout: defaultExpirySubmitTimeout,
		expiryCtx:     context.Background(),
		state:         domain.StateActive,
		subscribers:   make(map[chan domain.SessionEvent]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("attempt_id", attempt.AttemptID).Logger()

	clockOpts := append([]clock.Option{
		clock.OnTick(s.handleTick),
		clock.OnExpire(s.handleExpiry),
	}, s.clockOpts...)
	s.clock = clock.New(attempt.Deadline, clockOpts...)
	return s
}

// Start runs the countdown.
func (s *Session) Start() {
	s.clock.Start()
}

// ID returns the backend attempt ID.
func (s *Session) ID() string {
	return s.attempt.AttemptID
}

// Attempt returns the attempt metadata.
func (s *Session) Attempt() domain.Attempt {
	return s.attempt
}

// Answers exposes the answer store for reads.
func (s *Session) Answers() *AnswerStore {
	return s.answers
}

// Clock exposes the countdown.
func (s *Session) Clock() *clock.Clock {
	return s.clock
}

// State returns the current lifecycle state.
func (s *Session) State() domain.AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the backend acknowledgement once Submitted.
func (s *Session) Result() (domain.SubmitResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return domain.SubmitResult{}, false
	}
	return *s.result, true
}

// LastError is the most recent submission failure, nil unless Errored.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Submissions counts backend submit calls issued by this session.
func (s *Session) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions
}

// SetAnswer records a selection. Only Active sessions accept it.
func (s *Session) SetAnswer(ctx context.Context, questionID, value string) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if err := s.answers.SetAnswer(questionID, value); err != nil {
		return err
	}
	if s.checkpoint != nil {
		if err := s.checkpoint.SaveAnswer(ctx, s.attempt.AttemptID, questionID, value); err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("checkpoint answer failed")
		}
	}
	return nil
}

// ClearAnswer marks a question unanswered while Active.
func (s *Session) ClearAnswer(ctx context.Context, questionID string) error {
	if err := s.checkMutable(); err != nil {
		return err
	}
	if err := s.answers.ClearAnswer(questionID); err != nil {
		return err
	}
	if s.checkpoint != nil {
		if err := s.checkpoint.ClearAnswer(ctx, s.attempt.AttemptID, questionID); err != nil {
			s.log.Warn().Err(err).Str("question_id", questionID).Msg("checkpoint clear failed")
		}
	}
	return nil
}

// Restore loads checkpointed answers into an Active session.
func (s *Session) Restore(entries map[string]string) int {
	if s.checkMutable() != nil {
		return 0
	}
	return s.answers.Restore(entries)
}

func (s *Session) checkMutable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrAttemptClosed
	}
	if s.state != domain.StateActive {
		return domain.ErrAnswersFrozen
	}
	return nil
}

// Submit moves the attempt to Submitting and sends the frozen payload once.
// A trigger that loses the race gets ErrAlreadySubmitting and causes no backend call.
// A user submit on an Errored session is a retry.
func (s *Session) Submit(ctx context.Context, trigger domain.Trigger) (domain.SubmitResult, error) {
	submission, err := s.begin(trigger)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	s.log.Info().Str("trigger", string(trigger)).Int("answered", s.answers.AnsweredCount()).Msg("submitting attempt")

	result, err := s.submitter.SubmitAttempt(ctx, submission)
	return s.finish(result, err)
}

// Retry re-sends the identical payload after a failed submission.
func (s *Session) Retry(ctx context.Context) (domain.SubmitResult, error) {
	return s.Submit(ctx, domain.TriggerRetry)
}

func (s *Session) begin(trigger domain.Trigger) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.Submission{}, domain.ErrAttemptClosed
	}
	switch s.state {
	case domain.StateActive:
		if trigger == domain.TriggerRetry {
			return domain.Submission{}, domain.ErrNotRetryable
		}
	case domain.StateErrored:
		// Only the student retries; the clock has already had its one shot.
		if trigger == domain.TriggerExpiry {
			return domain.Submission{}, domain.ErrAlreadySubmitting
		}
	default:
		return domain.Submission{}, domain.ErrAlreadySubmitting
	}

	responses := s.answers.Freeze()
	s.state = domain.StateSubmitting
	s.lastErr = nil
	s.submissions++
	s.broadcastLocked(s.eventLocked(domain.EventState))
	return domain.Submission{AttemptID: s.attempt.AttemptID, Responses: responses}, nil
}

func (s *Session) finish(result domain.SubmitResult, err error) (domain.SubmitResult, error) {
	s.mu.Lock()
	if err != nil {
		s.state = domain.StateErrored
		s.lastErr = err
		event := s.eventLocked(domain.EventError)
		event.Error = err.Error()
		event.Retryable = true
		s.broadcastLocked(event)
		s.mu.Unlock()

		s.log.Error().Err(err).Msg("attempt submission failed")
		return domain.SubmitResult{}, fmt.Errorf("%w: %w", domain.ErrSubmitFailed, err)
	}

	if result.AttemptID == "" {
		result.AttemptID = s.attempt.AttemptID
	}
	if result.TotalMarks == 0 {
		result.TotalMarks = s.attempt.TotalMarks
	}
	s.state = domain.StateSubmitted
	s.result = &result
	s.clock.Stop()
	event := s.eventLocked(domain.EventSubmitted)
	event.Result = &result
	event.ResultPath = domain.ResultPath(s.attempt.AttemptID)
	s.broadcastLocked(event)
	hook := s.onSubmitted
	s.mu.Unlock()

	s.log.Info().Int("score", result.Score).Msg("attempt submitted")
	if hook != nil {
		hook(s)
	}
	return result, nil
}

// Close tears the session down. The clock stops, later triggers are no-ops and
// subscriber channels are closed. An abandoned attempt never submits.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	state := s.state
	s.mu.Unlock()

	s.clock.Stop()
	if state != domain.StateSubmitted {
		s.log.Info().Str("state", state.String()).Msg("attempt session closed before submission")
	}
}

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) handleTick(remaining time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	event := s.eventLocked(domain.EventTick)
	event.Remaining = clock.Seconds(remaining)
	s.broadcastLocked(event)
}

func (s *Session) handleExpiry() {
	ctx, cancel := context.WithTimeout(s.expiryCtx, s.expiryTimeout)
	defer cancel()

	s.log.Info().Msg("attempt clock expired")
	if _, err := s.Submit(ctx, domain.TriggerExpiry); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitting) || errors.Is(err, domain.ErrAttemptClosed) {
			s.log.Debug().Err(err).Msg("expiry submit skipped")
		}
	}
}

// Subscribe returns a channel of session events, starting with the current state.
// The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	ch <- s.eventLocked(domain.EventState)
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) eventLocked(typ domain.EventType) domain.SessionEvent {
	return domain.SessionEvent{
		Type:      typ,
		AttemptID: s.attempt.AttemptID,
		State:     s.state,
		Remaining: s.clock.RemainingSeconds(),
	}
}

func (s *Session) broadcastLocked(event domain.SessionEvent) {
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest queued event so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

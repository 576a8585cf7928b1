// Package stub is a small stand-in for the portal backend: it hands out attempts for
// authored quizzes and grades submissions, so the runner can be exercised end to end.
package stub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/domain"
)

// QuizRepository returns authored quizzes (with answer keys).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptStore persists attempts. CompleteAttempt must keep the first grade.
type AttemptStore interface {
	CreateAttempt(ctx context.Context, rec domain.AttemptRecord) error
	GetAttempt(ctx context.Context, attemptID string) (domain.AttemptRecord, error)
	CompleteAttempt(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error)
}

// StartedAttempt is what a student receives when an attempt begins. Answer keys are stripped.
type StartedAttempt struct {
	AttemptID string
	Quiz      domain.Quiz
}

// Service implements start, grade and result lookup.
type Service struct {
	quizzes  QuizRepository
	attempts AttemptStore
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option customizes a Service.
type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(quizzes QuizRepository, attempts AttemptStore, opts ...Option) *Service {
	s := &Service{
		quizzes:  quizzes,
		attempts: attempts,
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartAttempt opens an attempt for student if the quiz window is open.
func (s *Service) StartAttempt(ctx context.Context, quizID, student string) (StartedAttempt, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return StartedAttempt{}, err
	}
	now := s.now()
	if !windowOpen(quiz, now) {
		return StartedAttempt{}, domain.ErrQuizClosed
	}

	rec := domain.AttemptRecord{ID: s.newID(), QuizID: quiz.ID, Student: student, StartTime: now}
	if err := s.attempts.CreateAttempt(ctx, rec); err != nil {
		return StartedAttempt{}, err
	}
	s.log.Info().Str("attempt_id", rec.ID).Str("quiz_id", quiz.ID).Str("student", student).Msg("attempt opened")

	quiz.TotalMarks = totalMarks(quiz)
	return StartedAttempt{AttemptID: rec.ID, Quiz: quiz}, nil
}

// Submit grades an attempt. Repeating a submit returns the first score unchanged.
func (s *Service) Submit(ctx context.Context, attemptID, student string, responses []domain.Response) (domain.AttemptRecord, error) {
	rec, err := s.attemptFor(ctx, attemptID, student)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	if rec.Submitted() {
		s.log.Info().Str("attempt_id", attemptID).Msg("duplicate submit ignored")
		return rec, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, rec.QuizID)
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("load quiz for grading: %w", err)
	}
	submitted := s.now()
	rec.Score = scoreResponses(quiz, responses)
	rec.SubmissionTime = &submitted
	rec.Responses = responses

	stored, err := s.attempts.CompleteAttempt(ctx, rec)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	s.log.Info().Str("attempt_id", attemptID).Int("score", stored.Score).Int("responses", len(responses)).Msg("attempt graded")
	return stored, nil
}

// Result returns a graded or in-progress attempt with its quiz summary.
func (s *Service) Result(ctx context.Context, attemptID, student string) (domain.AttemptRecord, domain.Quiz, error) {
	rec, err := s.attemptFor(ctx, attemptID, student)
	if err != nil {
		return domain.AttemptRecord{}, domain.Quiz{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, rec.QuizID)
	if err != nil {
		return domain.AttemptRecord{}, domain.Quiz{}, err
	}
	quiz.TotalMarks = totalMarks(quiz)
	return rec, quiz, nil
}

// attemptFor hides attempts owned by other students.
func (s *Service) attemptFor(ctx context.Context, attemptID, student string) (domain.AttemptRecord, error) {
	rec, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	if rec.Student != student {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	return rec, nil
}

func windowOpen(quiz domain.Quiz, now time.Time) bool {
	if quiz.StartTime != nil && now.Before(*quiz.StartTime) {
		return false
	}
	if quiz.EndTime != nil && !now.Before(*quiz.EndTime) {
		return false
	}
	return true
}

// IsClientError reports errors that map to a 4xx answer.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrQuizClosed) ||
		errors.Is(err, domain.ErrQuizNotFound) ||
		errors.Is(err, domain.ErrAttemptNotFound)
}

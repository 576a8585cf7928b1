package domain

import "errors"

var (
	// ErrStartFailed is returned when an attempt could not be created; the session never starts.
	ErrStartFailed = errors.New("attempt could not be started")
	// ErrSubmitFailed wraps network or server failures while submitting.
	ErrSubmitFailed = errors.New("attempt submission failed")
	// ErrAlreadySubmitting is returned to the losing trigger when a submission is in flight or done.
	ErrAlreadySubmitting = errors.New("attempt submission already started")
	// ErrAttemptClosed is returned once a session has been torn down.
	ErrAttemptClosed = errors.New("attempt session closed")
	// ErrAnswersFrozen is returned when answers change after submission began.
	ErrAnswersFrozen = errors.New("answers are frozen")
	// ErrNotRetryable is returned by Retry when the last submission did not fail.
	ErrNotRetryable = errors.New("attempt is not in a retryable state")
	// ErrEmptyAnswer rejects blank selections.
	ErrEmptyAnswer = errors.New("answer must not be empty")
	// ErrInvalidWindow rejects clocks whose end does not follow their start.
	ErrInvalidWindow = errors.New("attempt window end must be after start")
	// ErrAttemptNotFound is returned when no live session exists for an attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptHosted means another runner holds the live session for the attempt.
	ErrAttemptHosted = errors.New("attempt is running elsewhere")
	// ErrUnauthorized means the backend rejected the credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is not part of the attempt.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuizClosed is returned by the stub backend outside the quiz window.
	ErrQuizClosed = errors.New("quiz is not open")
)

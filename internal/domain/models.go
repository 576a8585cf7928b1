package domain

import "time"

// Question is what the student sees during an attempt. Correct answers never reach the client.
type Question struct {
	ID      string   `json:"id" validate:"required"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options" validate:"min=1"`
}

// HasOption reports whether value is one of the declared options.
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// Attempt identifies one student's timed pass at a quiz.
type Attempt struct {
	AttemptID  string        `json:"attemptId"`
	QuizID     string        `json:"quizId"`
	Title      string        `json:"title"`
	TotalMarks int           `json:"totalMarks"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"startedAt"`
	Deadline   time.Time     `json:"deadline"`
	// Student is the subject of the credentials the attempt was started with.
	Student    string        `json:"student,omitempty"`
}

// StartedAttempt is the backend's answer to a start request.
type StartedAttempt struct {
	AttemptID  string        `validate:"required"`
	QuizID     string        `validate:"required"`
	Title      string
	TotalMarks int           `validate:"gte=0"`
	Duration   time.Duration `validate:"gt=0"`
	// WindowStart and WindowEnd are the quiz availability window when the backend sends one.
	WindowStart *time.Time
	WindowEnd   *time.Time
	Questions   []Question `validate:"min=1,dive"`
}

// Response is one question/answer pair of a submission payload.
type Response struct {
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
}

// Submission is what a session sends to the backend, unchanged across retries.
type Submission struct {
	AttemptID string     `json:"attemptId"`
	Responses []Response `json:"responses"`
}

// SubmitResult is the backend acknowledgement of a submission.
type SubmitResult struct {
	AttemptID  string `json:"attemptId"`
	Score      int    `json:"score"`
	TotalMarks int    `json:"totalMarks,omitempty"`
}

// AttemptResult is the stored outcome rendered after submission.
type AttemptResult struct {
	AttemptID      string     `json:"attemptId"`
	QuizTitle      string     `json:"quizTitle,omitempty"`
	Score          int        `json:"score"`
	TotalMarks     int        `json:"totalMarks,omitempty"`
	StartTime      *time.Time `json:"startTime,omitempty"`
	SubmissionTime *time.Time `json:"submissionTime,omitempty"`
}

// Graded reports whether the backend has recorded the submission.
func (r AttemptResult) Graded() bool {
	return r.SubmissionTime != nil
}

// ResultPath is the result view a finished attempt navigates to.
func ResultPath(attemptID string) string {
	return "/student/quiz/result/" + attemptID
}

// Option is an answer choice in authored quiz content.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// QuizQuestion is authored content including the answer key. Only the stub backend sees it.
type QuizQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
	Points  int      `json:"points"` // defaults to 1 if zero
}

// Quiz is a timed collection of questions.
type Quiz struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	DurationMinutes int            `json:"durationInMinutes"`
	TotalMarks      int            `json:"totalMarks"`
	StartTime       *time.Time     `json:"startTime,omitempty"`
	EndTime         *time.Time     `json:"endTime,omitempty"`
	Questions       []QuizQuestion `json:"questions"`
}

// AttemptRecord is the stub backend's stored attempt. SubmissionTime is nil until graded.
type AttemptRecord struct {
	ID             string     `json:"id"`
	QuizID         string     `json:"quizId"`
	Student        string     `json:"student"`
	StartTime      time.Time  `json:"startTime"`
	SubmissionTime *time.Time `json:"submissionTime,omitempty"`
	Score          int        `json:"score"`
	Responses      []Response `json:"responses,omitempty"`
}

// Submitted reports whether the attempt has been graded.
func (r AttemptRecord) Submitted() bool {
	return r.SubmissionTime != nil
}

package restapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quiz-attempt/internal/domain"
)

// flexID accepts numeric or string identifiers and writes numeric ones back as numbers,
// which is what the portal backend's integer IDs expect.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = flexID(n.String())
	return nil
}

// MarshalJSON writes canonical decimals ("42", "-7") as numbers. Anything else,
// including "007" and "+5", stays a string so the body is always valid JSON.
func (id flexID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// flexTime reads RFC 3339 or the zone-less LocalDateTime the backend serializes.
type flexTime struct {
	time.Time
}

var localDateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range localDateTimeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

func (t flexTime) ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type startResponse struct {
	AttemptID flexID         `json:"attemptId"`
	Quiz      wireQuiz       `json:"quiz"`
	Questions []wireQuestion `json:"questions"`
}

type wireQuiz struct {
	ID                flexID   `json:"id"`
	Title             string   `json:"title"`
	DurationInMinutes int      `json:"durationInMinutes"`
	TotalMarks        int      `json:"totalMarks"`
	StartTime         flexTime `json:"startTime"`
	EndTime           flexTime `json:"endTime"`
}

type wireQuestion struct {
	ID            flexID            `json:"id"`
	QuestionTitle string            `json:"questionTitle"`
	QuestionText  string            `json:"questionText"`
	Option1       string            `json:"option1"`
	Option2       string            `json:"option2"`
	Option3       string            `json:"option3"`
	Option4       string            `json:"option4"`
	Options       []json.RawMessage `json:"options"`
}

type wireOption struct {
	Text       string `json:"text"`
	OptionText string `json:"optionText"`
	Value      string `json:"value"`
}

func (q wireQuestion) toDomain() (domain.Question, error) {
	prompt := q.QuestionTitle
	if prompt == "" {
		prompt = q.QuestionText
	}
	out := domain.Question{ID: string(q.ID), Prompt: prompt}

	if len(q.Options) > 0 {
		for _, raw := range q.Options {
			value, err := optionValue(raw)
			if err != nil {
				return domain.Question{}, fmt.Errorf("question %s: %w", q.ID, err)
			}
			if value != "" {
				out.Options = append(out.Options, value)
			}
		}
		return out, nil
	}
	for _, opt := range []string{q.Option1, q.Option2, q.Option3, q.Option4} {
		if opt != "" {
			out.Options = append(out.Options, opt)
		}
	}
	return out, nil
}

func optionValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var opt wireOption
	if err := json.Unmarshal(raw, &opt); err != nil {
		return "", fmt.Errorf("option must be a string or object: %w", err)
	}
	for _, v := range []string{opt.Text, opt.OptionText, opt.Value} {
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (r startResponse) toDomain(requestedQuizID string) (domain.StartedAttempt, error) {
	quizID := string(r.Quiz.ID)
	if quizID == "" {
		quizID = requestedQuizID
	}
	started := domain.StartedAttempt{
		AttemptID:   string(r.AttemptID),
		QuizID:      quizID,
		Title:       r.Quiz.Title,
		TotalMarks:  r.Quiz.TotalMarks,
		Duration:    time.Duration(r.Quiz.DurationInMinutes) * time.Minute,
		WindowStart: r.Quiz.StartTime.ptr(),
		WindowEnd:   r.Quiz.EndTime.ptr(),
		Questions:   make([]domain.Question, 0, len(r.Questions)),
	}
	for _, q := range r.Questions {
		question, err := q.toDomain()
		if err != nil {
			return domain.StartedAttempt{}, err
		}
		started.Questions = append(started.Questions, question)
	}
	return started, nil
}

type submitRequest struct {
	AttemptID flexID         `json:"attemptId"`
	Responses []wireResponse `json:"responses"`
}

type wireResponse struct {
	ID       flexID `json:"id"`
	Response string `json:"response"`
}

func newSubmitRequest(s domain.Submission) submitRequest {
	req := submitRequest{AttemptID: flexID(s.AttemptID), Responses: make([]wireResponse, 0, len(s.Responses))}
	for _, r := range s.Responses {
		req.Responses = append(req.Responses, wireResponse{ID: flexID(r.QuestionID), Response: r.Response})
	}
	return req
}

type wireResult struct {
	ID             flexID   `json:"id"`
	AttemptID      flexID   `json:"attemptId"`
	Score          int      `json:"score"`
	TotalMarks     int      `json:"totalMarks"`
	QuizTitle      string   `json:"quizTitle"`
	QuizTotalMarks int      `json:"quizTotalMarks"`
	StartTime      flexTime `json:"startTime"`
	SubmissionTime flexTime `json:"submissionTime"`
	Quiz           *struct {
		Title      string `json:"title"`
		TotalMarks int    `json:"totalMarks"`
	} `json:"quiz"`
}

func (r wireResult) attemptID(fallback string) string {
	switch {
	case r.AttemptID != "":
		return string(r.AttemptID)
	case r.ID != "":
		return string(r.ID)
	default:
		return fallback
	}
}

func (r wireResult) toDomain(fallbackID string) domain.AttemptResult {
	out := domain.AttemptResult{
		AttemptID:      r.attemptID(fallbackID),
		QuizTitle:      r.QuizTitle,
		Score:          r.Score,
		TotalMarks:     r.TotalMarks,
		StartTime:      r.StartTime.ptr(),
		SubmissionTime: r.SubmissionTime.ptr(),
	}
	if out.TotalMarks == 0 {
		out.TotalMarks = r.QuizTotalMarks
	}
	if r.Quiz != nil {
		if out.QuizTitle == "" {
			out.QuizTitle = r.Quiz.Title
		}
		if out.TotalMarks == 0 {
			out.TotalMarks = r.Quiz.TotalMarks
		}
	}
	return out
}

// decodeSubmitResult accepts either a bare integer score or a result object.
func decodeSubmitResult(body []byte, attemptID string) (domain.SubmitResult, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return domain.SubmitResult{AttemptID: attemptID}, nil
	}
	if score, err := strconv.Atoi(trimmed); err == nil {
		return domain.SubmitResult{AttemptID: attemptID, Score: score}, nil
	}
	var res wireResult
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("decode submit response: %w", err)
	}
	full := res.toDomain(attemptID)
	return domain.SubmitResult{AttemptID: full.AttemptID, Score: full.Score, TotalMarks: full.TotalMarks}, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return strings.TrimSpace(string(body))
}

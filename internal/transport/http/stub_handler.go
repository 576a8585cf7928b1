package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/domain"
	"quiz-attempt/internal/stub"
)

// Credential is a dev login accepted by the stub backend.
type Credential struct {
	Email    string
	Password string
	Role     string
}

type ctxKey string

const ctxKeyClaims ctxKey = "claims"

func claimsFrom(ctx context.Context) *auth.Claims {
	if c, ok := ctx.Value(ctxKeyClaims).(*auth.Claims); ok {
		return c
	}
	return &auth.Claims{}
}

// StubHandler serves the portal's student attempt endpoints from a stub.Service.
type StubHandler struct {
	service *stub.Service
	issuer  *auth.Issuer
	users   map[string]Credential
	log     zerolog.Logger
}

func NewStubHandler(service *stub.Service, issuer *auth.Issuer, users []Credential, log zerolog.Logger) *StubHandler {
	byEmail := make(map[string]Credential, len(users))
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u
	}
	return &StubHandler{service: service, issuer: issuer, users: byEmail, log: log.With().Str("component", "stub").Logger()}
}

// Router mounts login and the JWT-protected student routes.
func (h *StubHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, requestLogger(h.log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/api/auth/login", h.login)
	r.Group(func(pr chi.Router) {
		pr.Use(h.requireRole(auth.RoleStudent))
		pr.Post("/api/student/quizzes/{quizId}/attempt", h.startAttempt)
		pr.Post("/api/student/quizzes/attempt/{attemptId}/submit", h.submitAttempt)
		pr.Get("/api/student/attempts/{attemptId}", h.getAttempt)
	})
	return r
}

func (h *StubHandler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	user, ok := h.users[strings.ToLower(req.Email)]
	if !ok || user.Password == "" || user.Password != req.Password {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.issuer.Issue(user.Email, user.Role)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token, "role": user.Role, "email": user.Email})
}

func (h *StubHandler) requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "missing bearer")
				return
			}
			claims, err := h.issuer.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "bad token")
				return
			}
			if claims.Role != role {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
		})
	}
}

type portalQuiz struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	DurationInMinutes int        `json:"durationInMinutes"`
	TotalMarks        int        `json:"totalMarks"`
	StartTime         *time.Time `json:"startTime,omitempty"`
	EndTime           *time.Time `json:"endTime,omitempty"`
}

type portalQuestion struct {
	ID            string   `json:"id"`
	QuestionTitle string   `json:"questionTitle"`
	Option1       string   `json:"option1,omitempty"`
	Option2       string   `json:"option2,omitempty"`
	Option3       string   `json:"option3,omitempty"`
	Option4       string   `json:"option4,omitempty"`
	Options       []string `json:"options,omitempty"`
}

type portalAttempt struct {
	AttemptID string           `json:"attemptId"`
	Quiz      portalQuiz       `json:"quiz"`
	Questions []portalQuestion `json:"questions"`
}

func quizView(q domain.Quiz) portalQuiz {
	return portalQuiz{
		ID:                q.ID,
		Title:             q.Title,
		DurationInMinutes: q.DurationMinutes,
		TotalMarks:        q.TotalMarks,
		StartTime:         q.StartTime,
		EndTime:           q.EndTime,
	}
}

// portalQuestionView drops the answer key. Up to four options use the option1..4 fields.
func portalQuestionView(q domain.QuizQuestion) portalQuestion {
	out := portalQuestion{ID: q.ID, QuestionTitle: q.Prompt}
	texts := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		texts = append(texts, opt.Text)
	}
	if len(texts) > 4 {
		out.Options = texts
		return out
	}
	slots := []*string{&out.Option1, &out.Option2, &out.Option3, &out.Option4}
	for i, text := range texts {
		*slots[i] = text
	}
	return out
}

func (h *StubHandler) startAttempt(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	started, err := h.service.StartAttempt(r.Context(), chi.URLParam(r, "quizId"), claims.Subject)
	if err != nil {
		h.fail(w, err)
		return
	}
	resp := portalAttempt{
		AttemptID: started.AttemptID,
		Quiz:      quizView(started.Quiz),
		Questions: make([]portalQuestion, 0, len(started.Quiz.Questions)),
	}
	for _, q := range started.Quiz.Questions {
		resp.Questions = append(resp.Questions, portalQuestionView(q))
	}
	respondJSON(w, http.StatusOK, resp)
}

// looseID accepts numeric or string IDs in submit bodies.
type looseID string

func (id *looseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = looseID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = looseID(n.String())
	return nil
}

type submitBody struct {
	AttemptID looseID `json:"attemptId"`
	Responses []struct {
		ID       looseID `json:"id"`
		Response string  `json:"response"`
	} `json:"responses"`
}

func (h *StubHandler) submitAttempt(w http.ResponseWriter, r *http.Request) {
	attemptID := chi.URLParam(r, "attemptId")
	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	if body.AttemptID != "" && string(body.AttemptID) != attemptID {
		respondError(w, http.StatusBadRequest, "attemptId does not match path")
		return
	}
	responses := make([]domain.Response, 0, len(body.Responses))
	for _, resp := range body.Responses {
		responses = append(responses, domain.Response{QuestionID: string(resp.ID), Response: resp.Response})
	}

	rec, err := h.service.Submit(r.Context(), attemptID, claimsFrom(r.Context()).Subject, responses)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec.Score)
}

func (h *StubHandler) getAttempt(w http.ResponseWriter, r *http.Request) {
	rec, quiz, err := h.service.Result(r.Context(), chi.URLParam(r, "attemptId"), claimsFrom(r.Context()).Subject)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":             rec.ID,
		"score":          rec.Score,
		"startTime":      rec.StartTime,
		"submissionTime": rec.SubmissionTime,
		"quiz":           quizView(quiz),
	})
}

func (h *StubHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizClosed):
		respondError(w, http.StatusBadRequest, "Quiz is not active")
	case stub.IsClientError(err):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		h.log.Error().Err(err).Msg("stub request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

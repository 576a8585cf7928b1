package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/clock"
	"quiz-attempt/internal/domain"
)

// AttemptAPI is the attempt service as seen by the runner's HTTP surface.
type AttemptAPI interface {
	AttemptRunner
	Get(attemptID string) (*app.Session, error)
	Result(ctx context.Context, attemptID string) (domain.AttemptResult, error)
}

type attemptStatus struct {
	AttemptID     string               `json:"attemptId"`
	State         domain.AttemptState  `json:"state"`
	Remaining     int                  `json:"remaining"`
	RemainingText string               `json:"remainingText"`
	Answered      int                  `json:"answered"`
	Unanswered    int                  `json:"unanswered"`
	Result        *domain.SubmitResult `json:"result,omitempty"`
	LastError     string               `json:"lastError,omitempty"`
}

// NewRunnerRouter serves the attempt socket plus read-only status and result endpoints.
// Every route but /healthz acts for the student whose bearer token came with the request.
func NewRunnerRouter(service AttemptAPI, allowedOrigins []string, log zerolog.Logger) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Group(func(r chi.Router) {
		r.Use(requireCredentials)
		r.Get("/ws", ws.ServeWS)
		r.Route("/api/attempts/{attemptId}", func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				session, err := service.Get(chi.URLParam(r, "attemptId"))
				if err != nil || !ownedBy(r.Context(), session) {
					respondError(w, http.StatusNotFound, domain.ErrAttemptNotFound.Error())
					return
				}
				respondJSON(w, http.StatusOK, statusOf(session))
			})
			r.Get("/result", func(w http.ResponseWriter, r *http.Request) {
				res, err := service.Result(r.Context(), chi.URLParam(r, "attemptId"))
				if err != nil {
					respondError(w, resultStatus(err), err.Error())
					return
				}
				respondJSON(w, http.StatusOK, res)
			})
		})
	})
	return r
}

// bearerToken reads the Authorization header, or the token query parameter for
// browser sockets, which cannot set headers.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// requireCredentials puts a store holding the caller's token on the request context.
// The signature is the backend's to check; only malformed or expired tokens stop here.
func requireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		store, err := auth.StoreForToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "malformed bearer token")
			return
		}
		if store.Current().Expired(time.Now()) {
			respondError(w, http.StatusUnauthorized, "token expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), store)))
	})
}

func ownedBy(ctx context.Context, session *app.Session) bool {
	store, ok := auth.FromContext(ctx)
	return ok && session.Attempt().Student == store.Current().Subject
}

func statusOf(session *app.Session) attemptStatus {
	remaining := session.Clock().RemainingSeconds()
	status := attemptStatus{
		AttemptID:     session.ID(),
		State:         session.State(),
		Remaining:     remaining,
		RemainingText: clock.Format(remaining),
		Answered:      session.Answers().AnsweredCount(),
		Unanswered:    session.Answers().UnansweredCount(),
	}
	if res, ok := session.Result(); ok {
		status.Result = &res
	}
	if err := session.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

func resultStatus(err error) int {
	var coded interface{ StatusCode() int }
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.As(err, &coded) && coded.StatusCode() == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

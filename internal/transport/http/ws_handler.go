package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/app"
	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/clock"
	"quiz-attempt/internal/domain"
)

// AttemptRunner is what the socket needs from the attempt service.
type AttemptRunner interface {
	Start(ctx context.Context, quizID string) (*app.Session, error)
	Abandon(ctx context.Context, attemptID string)
}

type WSHandler struct {
	runner   AttemptRunner
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(runner AttemptRunner, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		runner: runner,
		log:    log.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

type progressPayload struct {
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
}

type questionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

type startedPayload struct {
	AttemptID     string            `json:"attemptId"`
	QuizID        string            `json:"quizId"`
	Title         string            `json:"title"`
	TotalMarks    int               `json:"totalMarks"`
	Duration      int               `json:"durationSeconds"`
	Deadline      time.Time         `json:"deadline"`
	Remaining     int               `json:"remaining"`
	RemainingText string            `json:"remainingText"`
	Questions     []questionView    `json:"questions"`
	Answers       map[string]string `json:"answers"`
}

type signedOutPayload struct {
	Message string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

// ServeWS upgrades the request, starts an attempt for quizId and runs it over the socket
// until the client goes away. The caller's credentials must already be on the request
// context; see requireCredentials.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	ctx := r.Context()
	session, err := h.runner.Start(ctx, quizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID).Msg("attempt start failed")
		_ = conn.WriteJSON(errorMessage(err.Error()))
		return
	}
	log := h.log.With().Str("attempt_id", session.ID()).Logger()

	events, cancel := session.Subscribe()
	defer cancel()

	var identities <-chan auth.Context
	if store, ok := auth.FromContext(ctx); ok {
		updates, stop := store.Subscribe()
		defer stop()
		identities = updates
	}
	defer func() {
		if session.State() != domain.StateSubmitted {
			h.runner.Abandon(context.Background(), session.ID())
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: startedView(session)}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(event.Type), Payload: event}:
				case <-closeSignals:
					return
				}
			case identity, ok := <-identities:
				if !ok {
					identities = nil
					continue
				}
				if identity.Authenticated() {
					continue
				}
				// The backend rejected the token; submits keep failing until the student signs in again.
				select {
				case send <- outboundMessage[any]{Type: "signedOut", Payload: signedOutPayload{Message: "sign in again to submit"}}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.handle(ctx, session, inbound); ok {
			send <- reply
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// handle applies one client message. Submission outcomes arrive as session events,
// so only guard rejections are answered directly.
func (h *WSHandler) handle(ctx context.Context, session *app.Session, inbound inboundMessage) (outboundMessage[any], bool) {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload"), true
		}
		question, ok := session.Answers().Question(payload.QuestionID)
		if !ok {
			return errorMessage(domain.ErrQuestionNotFound.Error()), true
		}
		if !question.HasOption(payload.Value) {
			return errorMessage("value is not one of the question's options"), true
		}
		if err := session.SetAnswer(ctx, payload.QuestionID, payload.Value); err != nil {
			return errorMessage(err.Error()), true
		}
		return progress(session), true
	case "clear":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid clear payload"), true
		}
		if err := session.ClearAnswer(ctx, payload.QuestionID); err != nil {
			return errorMessage(err.Error()), true
		}
		return progress(session), true
	case "submit", "retry":
		trigger := domain.TriggerUser
		if inbound.Type == "retry" {
			trigger = domain.TriggerRetry
		}
		if _, err := session.Submit(ctx, trigger); err != nil && !errors.Is(err, domain.ErrSubmitFailed) {
			return errorMessage(err.Error()), true
		}
		return outboundMessage[any]{}, false
	default:
		return errorMessage("unsupported message type"), true
	}
}

func progress(session *app.Session) outboundMessage[any] {
	answers := session.Answers()
	return outboundMessage[any]{Type: "progress", Payload: progressPayload{
		Answered:   answers.AnsweredCount(),
		Unanswered: answers.UnansweredCount(),
	}}
}

func startedView(session *app.Session) startedPayload {
	attempt := session.Attempt()
	questions := session.Answers().Questions()
	remaining := session.Clock().RemainingSeconds()
	view := startedPayload{
		AttemptID:     attempt.AttemptID,
		QuizID:        attempt.QuizID,
		Title:         attempt.Title,
		TotalMarks:    attempt.TotalMarks,
		Duration:      int(attempt.Duration / time.Second),
		Deadline:      attempt.Deadline,
		Remaining:     remaining,
		RemainingText: clock.Format(remaining),
		Questions:     make([]questionView, 0, len(questions)),
		Answers:       session.Answers().Snapshot(),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, questionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return view
}

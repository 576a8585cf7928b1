package app

import (
	"strings"
	"sync"

	"quiz-attempt/internal/domain"
)

// AnswerStore holds the student's current selection per question.
// Once frozen it rejects every mutation and its payload never changes again.
type AnswerStore struct {
	mu        sync.RWMutex
	questions []domain.Question
	index     map[string]int
	answers   map[string]string
	frozen    []domain.Response
}

// NewAnswerStore builds an empty store for the questions an attempt was given.
func NewAnswerStore(questions []domain.Question) *AnswerStore {
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}
	return &AnswerStore{
		questions: questions,
		index:     index,
		answers:   make(map[string]string, len(questions)),
	}
}

// SetAnswer inserts or overwrites the selection for questionID. Last write wins.
func (s *AnswerStore) SetAnswer(questionID, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.ErrEmptyAnswer
	}
	if _, ok := s.index[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		return domain.ErrAnswersFrozen
	}
	s.answers[questionID] = value
	return nil
}

// ClearAnswer marks questionID unanswered again.
func (s *AnswerStore) ClearAnswer(questionID string) error {
	if _, ok := s.index[questionID]; !ok {
		return domain.ErrQuestionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		return domain.ErrAnswersFrozen
	}
	delete(s.answers, questionID)
	return nil
}

// Answer returns the current selection; ok is false for unanswered questions.
func (s *AnswerStore) Answer(questionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.answers[questionID]
	return value, ok
}

// AnsweredCount is the number of questions with a non-empty selection.
func (s *AnswerStore) AnsweredCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}

// UnansweredCount feeds the "submit with N unanswered" confirmation.
func (s *AnswerStore) UnansweredCount() int {
	return len(s.questions) - s.AnsweredCount()
}

// Questions returns the questions in the order the attempt was given them.
func (s *AnswerStore) Questions() []domain.Question {
	return s.questions
}

// Question looks up one question by ID.
func (s *AnswerStore) Question(questionID string) (domain.Question, bool) {
	i, ok := s.index[questionID]
	if !ok {
		return domain.Question{}, false
	}
	return s.questions[i], true
}

// Payload lists one response per question in question order, with "" for unanswered ones.
// After Freeze it returns the frozen payload.
func (s *AnswerStore) Payload() []domain.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.frozen != nil {
		return cloneResponses(s.frozen)
	}
	return s.payloadLocked()
}

// Freeze makes the store immutable and returns the payload every submission will send.
// Freezing twice returns the first payload.
func (s *AnswerStore) Freeze() []domain.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen == nil {
		s.frozen = s.payloadLocked()
	}
	return cloneResponses(s.frozen)
}

// Frozen reports whether the store still accepts changes.
func (s *AnswerStore) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen != nil
}

// Snapshot copies the answered entries, used for checkpoints.
func (s *AnswerStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// Restore loads previously checkpointed answers, skipping unknown questions and blank values.
func (s *AnswerStore) Restore(entries map[string]string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen != nil {
		return 0
	}
	restored := 0
	for questionID, value := range entries {
		if _, ok := s.index[questionID]; !ok || strings.TrimSpace(value) == "" {
			continue
		}
		s.answers[questionID] = value
		restored++
	}
	return restored
}

func (s *AnswerStore) payloadLocked() []domain.Response {
	out := make([]domain.Response, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, domain.Response{QuestionID: q.ID, Response: s.answers[q.ID]})
	}
	return out
}

func cloneResponses(in []domain.Response) []domain.Response {
	out := make([]domain.Response, len(in))
	copy(out, in)
	return out
}

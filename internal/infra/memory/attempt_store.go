package memory

import (
	"context"
	"sync"

	"quiz-attempt/internal/domain"
)

// AttemptStore keeps stub backend attempts in memory.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]domain.AttemptRecord
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]domain.AttemptRecord)}
}

func (s *AttemptStore) CreateAttempt(_ context.Context, rec domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[rec.ID] = rec
	return nil
}

func (s *AttemptStore) GetAttempt(_ context.Context, attemptID string) (domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.attempts[attemptID]
	if !ok {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	return rec, nil
}

// CompleteAttempt stores the grade unless one is already recorded.
func (s *AttemptStore) CompleteAttempt(_ context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.attempts[rec.ID]
	if !ok {
		return domain.AttemptRecord{}, domain.ErrAttemptNotFound
	}
	if existing.Submitted() {
		return existing, nil
	}
	s.attempts[rec.ID] = rec
	return rec, nil
}

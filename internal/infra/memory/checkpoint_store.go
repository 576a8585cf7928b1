package memory

import (
	"context"
	"sync"
)

// CheckpointStore keeps answer checkpoints in process memory. It survives session
// teardown but not a restart; the Redis store covers that.
type CheckpointStore struct {
	mu      sync.Mutex
	answers map[string]map[string]string
}

func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{answers: make(map[string]map[string]string)}
}

func (s *CheckpointStore) SaveAnswer(_ context.Context, attemptID, questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.answers[attemptID]
	if !ok {
		entries = make(map[string]string)
		s.answers[attemptID] = entries
	}
	entries[questionID] = value
	return nil
}

func (s *CheckpointStore) ClearAnswer(_ context.Context, attemptID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers[attemptID], questionID)
	return nil
}

func (s *CheckpointStore) Load(_ context.Context, attemptID string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.answers[attemptID]))
	for k, v := range s.answers[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (s *CheckpointStore) Delete(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, attemptID)
	return nil
}

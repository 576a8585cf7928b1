package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckpointStore autosaves in-progress answers so a restarted runner can restore them.
// Answers are stored as: HSET attempt:{attemptID}:answers {questionID} {value}
type CheckpointStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCheckpointStore(client *redis.Client, ttl time.Duration) *CheckpointStore {
	return &CheckpointStore{client: client, ttl: ttl}
}

func (s *CheckpointStore) SaveAnswer(ctx context.Context, attemptID, questionID, value string) error {
	key := s.key(attemptID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, questionID, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *CheckpointStore) ClearAnswer(ctx context.Context, attemptID, questionID string) error {
	return s.client.HDel(ctx, s.key(attemptID), questionID).Err()
}

func (s *CheckpointStore) Load(ctx context.Context, attemptID string) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.key(attemptID)).Result()
}

func (s *CheckpointStore) Delete(ctx context.Context, attemptID string) error {
	return s.client.Del(ctx, s.key(attemptID)).Err()
}

func (s *CheckpointStore) key(attemptID string) string {
	return "attempt:" + attemptID + ":answers"
}

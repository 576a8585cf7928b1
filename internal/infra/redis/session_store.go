package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-attempt/internal/app"
)

const (
	defaultLease = 30 * time.Second
	opTimeout    = 2 * time.Second
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions themselves stay in a local map (they own goroutines and channels);
// Redis holds a lease per attempt naming the runner that hosts it. Run keeps the
// leases of local sessions alive, so a crashed runner releases its attempts
// within one lease.
type SessionStore struct {
	client   *redis.Client
	lease    time.Duration
	owner    string
	log      zerolog.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

// SessionStoreOption customizes a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithOwner names this runner in the lease; defaults to a random ID.
func WithOwner(owner string) SessionStoreOption {
	return func(s *SessionStore) {
		if owner != "" {
			s.owner = owner
		}
	}
}

func WithSessionLogger(log zerolog.Logger) SessionStoreOption {
	return func(s *SessionStore) { s.log = log }
}

// NewSessionStore writes leases that expire after lease unless refreshed.
func NewSessionStore(client *redis.Client, lease time.Duration, opts ...SessionStoreOption) *SessionStore {
	if lease <= 0 {
		lease = defaultLease
	}
	s := &SessionStore{
		client:   client,
		lease:    lease,
		owner:    uuid.NewString(),
		log:      zerolog.Nop(),
		sessions: make(map[string]*app.Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SessionStore) Put(session *app.Session) {
	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Set(ctx, s.key(session.ID()), s.owner, s.lease).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", session.ID()).Msg("write session lease failed")
	}
}

func (s *SessionStore) Get(attemptID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[attemptID]
	return session, ok
}

func (s *SessionStore) Delete(attemptID string) {
	s.mu.Lock()
	_, ok := s.sessions[attemptID]
	delete(s.sessions, attemptID)
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := s.client.Del(ctx, s.key(attemptID)).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID).Msg("release session lease failed")
	}
}

// Hosted reports whether another runner holds a live lease for the attempt.
func (s *SessionStore) Hosted(ctx context.Context, attemptID string) (bool, error) {
	owner, err := s.client.Get(ctx, s.key(attemptID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner != s.owner, nil
}

// Run refreshes the leases of local sessions every third of a lease until ctx ends.
func (s *SessionStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.lease / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *SessionStore) refresh(ctx context.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Set(ctx, s.key(id), s.owner, s.lease)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("sessions", len(ids)).Msg("refresh session leases failed")
	}
}

func (s *SessionStore) key(attemptID string) string {
	return "attempt:session:" + attemptID
}

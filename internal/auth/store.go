package auth

import (
	"context"
	"sync"
)

// Store is the single read/write boundary for credentials. Components that need
// the token hold a *Store instead of reading global storage, and learn about
// changes through Subscribe rather than polling.
type Store struct {
	mu          sync.RWMutex
	current     Context
	subscribers map[chan Context]struct{}
}

func NewStore() *Store {
	return &Store{subscribers: make(map[chan Context]struct{})}
}

// Current returns the held identity; the zero Context when signed out.
func (s *Store) Current() Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token is shorthand for Current().Token.
func (s *Store) Token() string {
	return s.Current().Token
}

// SetToken decodes and stores a token, notifying subscribers.
func (s *Store) SetToken(token string) error {
	ctx, err := FromToken(token)
	if err != nil {
		return err
	}
	s.Set(ctx)
	return nil
}

// Set replaces the held identity and notifies subscribers.
func (s *Store) Set(ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ctx
	s.notifyLocked()
}

// Clear signs out, e.g. after the backend answers 401.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.Authenticated() {
		return
	}
	s.current = Context{}
	s.notifyLocked()
}

// Subscribe delivers the current identity and then every change.
// The caller must invoke cancel to avoid leaks.
func (s *Store) Subscribe() (<-chan Context, func()) {
	ch := make(chan Context, 1)

	s.mu.Lock()
	ch <- s.current
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notifyLocked() {
	for ch := range s.subscribers {
		select {
		case ch <- s.current:
		default:
			// Only the latest identity matters.
			select {
			case <-ch:
			default:
			}
			ch <- s.current
		}
	}
}

type storeKey struct{}

// NewContext returns a copy of ctx carrying one caller's credentials.
func NewContext(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeKey{}, s)
}

// FromContext returns the store attached by NewContext.
func FromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok && s != nil
}

// StoreForToken builds a store that already holds token.
func StoreForToken(token string) (*Store, error) {
	s := NewStore()
	if err := s.SetToken(token); err != nil {
		return nil, err
	}
	return s, nil
}

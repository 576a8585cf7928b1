package memory

import (
	"context"
	"time"

	"quiz-attempt/internal/auth"
	"quiz-attempt/internal/domain"
)

// ResultLoader fetches a finished attempt from the backend.
type ResultLoader interface {
	FetchResult(ctx context.Context, attemptID string) (domain.AttemptResult, error)
}

// ResultRepository caches graded attempt results, which never change.
// Ungraded attempts are always fetched again. Entries are kept per caller token.
type ResultRepository struct {
	loader ResultLoader
	cache  *ttlCache[domain.AttemptResult]
}

func NewResultRepository(loader ResultLoader, ttl time.Duration) *ResultRepository {
	cache := newTTLCache[domain.AttemptResult](ttl)
	cache.keep = domain.AttemptResult.Graded
	return &ResultRepository{loader: loader, cache: cache}
}

func (r *ResultRepository) GetResult(ctx context.Context, attemptID string) (domain.AttemptResult, error) {
	return r.cache.get(ctx, resultKey(ctx, attemptID), func(ctx context.Context) (domain.AttemptResult, error) {
		return r.loader.FetchResult(ctx, attemptID)
	})
}

func resultKey(ctx context.Context, attemptID string) string {
	if store, ok := auth.FromContext(ctx); ok {
		return store.Token() + "|" + attemptID
	}
	return "|" + attemptID
}

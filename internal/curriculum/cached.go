package curriculum

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/p-n-ai/teachmate/internal/platform/cache"
)

// Store is the key/value cache CachedSource writes through. Both cache.Cache
// (Redis) and cache.Memory satisfy it.
type Store interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// CachedSource memoizes a Source. Failed loads are never cached so the next
// selection retries the backend.
type CachedSource struct {
	next  Source
	store Store
	ttl   time.Duration
}

// NewCachedSource wraps next with store. A zero ttl caches forever.
func NewCachedSource(next Source, store Store, ttl time.Duration) *CachedSource {
	return &CachedSource{next: next, store: store, ttl: ttl}
}

func (c *CachedSource) Grades(ctx context.Context) ([]Grade, error) {
	return cached(ctx, c, "curriculum:grades", func() ([]Grade, error) {
		return c.next.Grades(ctx)
	})
}

func (c *CachedSource) Subjects(ctx context.Context, gradeID string) ([]Subject, error) {
	return cached(ctx, c, "curriculum:subjects:"+gradeID, func() ([]Subject, error) {
		return c.next.Subjects(ctx, gradeID)
	})
}

func (c *CachedSource) Chapters(ctx context.Context, subjectID, gradeID string) ([]Chapter, error) {
	return cached(ctx, c, "curriculum:chapters:"+subjectID+":"+gradeID, func() ([]Chapter, error) {
		return c.next.Chapters(ctx, subjectID, gradeID)
	})
}

func cached[T any](ctx context.Context, c *CachedSource, key string, load func() ([]T, error)) ([]T, error) {
	var hit []T
	err := c.store.GetJSON(ctx, key, &hit)
	if err == nil {
		return hit, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		slog.Warn("curriculum cache read failed, loading from source", "key", key, "error", err)
	}

	items, err := load()
	if err != nil {
		return nil, err
	}
	if err := c.store.SetJSON(ctx, key, items, c.ttl); err != nil {
		slog.Warn("curriculum cache write failed", "key", key, "error", err)
	}
	return items, nil
}

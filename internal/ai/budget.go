package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Budget tracks daily token usage per teacher. A limit of 0 is unlimited.
type Budget interface {
	Allow(ctx context.Context, teacherID string) (bool, error)
	Record(ctx context.Context, teacherID string, tokens int) error
	Usage(ctx context.Context, teacherID string) (used, limit int64, err error)
}

func budgetKey(teacherID string, day time.Time) string {
	return "ai:tokens:" + teacherID + ":" + day.UTC().Format("2006-01-02")
}

// MemoryBudget keeps counters in process.
type MemoryBudget struct {
	limit int64
	now   func() time.Time

	mu    sync.Mutex
	usage map[string]int64
}

// NewMemoryBudget creates a budget with a daily limit per teacher.
func NewMemoryBudget(limit int64) *MemoryBudget {
	return &MemoryBudget{limit: limit, now: time.Now, usage: make(map[string]int64)}
}

func (b *MemoryBudget) Allow(ctx context.Context, teacherID string) (bool, error) {
	used, limit, err := b.Usage(ctx, teacherID)
	if err != nil {
		return false, err
	}
	return limit == 0 || used < limit, nil
}

func (b *MemoryBudget) Record(_ context.Context, teacherID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage[budgetKey(teacherID, b.now())] += int64(tokens)
	return nil
}

func (b *MemoryBudget) Usage(_ context.Context, teacherID string) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage[budgetKey(teacherID, b.now())], b.limit, nil
}

// Counter is the slice of the cache a RedisBudget needs. cache.Cache
// satisfies it.
type Counter interface {
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	GetInt(ctx context.Context, key string) (int64, error)
}

// RedisBudget shares counters between server instances.
type RedisBudget struct {
	counter Counter
	limit   int64
	now     func() time.Time
}

// NewRedisBudget creates a budget backed by counter.
func NewRedisBudget(counter Counter, limit int64) *RedisBudget {
	return &RedisBudget{counter: counter, limit: limit, now: time.Now}
}

func (b *RedisBudget) Allow(ctx context.Context, teacherID string) (bool, error) {
	if b.limit == 0 {
		return true, nil
	}
	used, _, err := b.Usage(ctx, teacherID)
	if err != nil {
		return false, err
	}
	return used < b.limit, nil
}

func (b *RedisBudget) Record(ctx context.Context, teacherID string, tokens int) error {
	if tokens < 0 {
		return fmt.Errorf("tokens must be non-negative, got %d", tokens)
	}
	if _, err := b.counter.IncrBy(ctx, budgetKey(teacherID, b.now()), int64(tokens)); err != nil {
		return fmt.Errorf("recording token usage: %w", err)
	}
	return nil
}

func (b *RedisBudget) Usage(ctx context.Context, teacherID string) (int64, int64, error) {
	used, err := b.counter.GetInt(ctx, budgetKey(teacherID, b.now()))
	if err != nil {
		return 0, 0, fmt.Errorf("reading token usage: %w", err)
	}
	return used, b.limit, nil
}

package cache

import (
	"context"
	"sync"
	"time"

	"matjar/backoffice/internal/domain"
)

// ActionCache remembers the result of each applied action by its action id so
// retried requests get the first result back instead of applying twice.
type ActionCache interface {
	Get(ctx context.Context, actionID string) (*domain.ActionResult, bool, error)
	Set(ctx context.Context, actionID string, value *domain.ActionResult, ttl time.Duration) error
}

type NoopActionCache struct{}

func (NoopActionCache) Get(_ context.Context, _ string) (*domain.ActionResult, bool, error) {
	return nil, false, nil
}

func (NoopActionCache) Set(_ context.Context, _ string, _ *domain.ActionResult, _ time.Duration) error {
	return nil
}

type memoryEntry struct {
	value   domain.ActionResult
	expires time.Time
}

// MemoryActionCache keeps results in process. Expired entries are dropped on access.
type MemoryActionCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryActionCache() *MemoryActionCache {
	return &MemoryActionCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryActionCache) Get(_ context.Context, actionID string) (*domain.ActionResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[actionID]
	if !ok {
		return nil, false, nil
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		delete(c.entries, actionID)
		return nil, false, nil
	}
	value := entry.value
	return &value, true, nil
}

// Set stores value; a ttl <= 0 keeps it for the life of the process.
func (c *MemoryActionCache) Set(_ context.Context, actionID string, value *domain.ActionResult, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: *value}
	if ttl > 0 {
		entry.expires = c.now().Add(ttl)
	}
	c.entries[actionID] = entry
	return nil
}

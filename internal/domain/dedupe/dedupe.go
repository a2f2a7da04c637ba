// Package dedupe tracks submission ids so a repeated submission is accepted once.
package dedupe

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSize bounds the number of remembered submission ids.
const DefaultMaxSize = 50000

// Deduper records seen submission IDs to ensure at-most-once acceptance.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the submission can be retried, e.g. after the
	// queue rejected it.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps ids in an LRU cache when bounded, evicting the
// oldest recorded id first, or in a plain map when unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	maxSize int
	cache   *lru.Cache[string, struct{}]
	seen    map[string]struct{}
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) (Deduper, error) {
	d := &inMemoryDeduper{
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.maxSize <= 0 {
		d.seen = make(map[string]struct{})
		return d, nil
	}

	cache, err := lru.New[string, struct{}](d.maxSize)
	if err != nil {
		return nil, fmt.Errorf("deduper init: %w", err)
	}
	d.cache = cache
	return d, nil
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cache != nil {
		seen, _ := d.cache.ContainsOrAdd(id, struct{}{})
		return seen
	}
	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cache != nil {
		d.cache.Remove(id)
		return
	}
	delete(d.seen, id)
}

// Size returns the current number of remembered ids.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cache != nil {
		return int64(d.cache.Len())
	}
	return int64(len(d.seen))
}

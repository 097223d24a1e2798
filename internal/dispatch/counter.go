package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter receives one increment per observed op, keyed by collection.
type Counter interface {
	Incr(ctx context.Context, collection string) error
	Flush(ctx context.Context) error
}

// NoopCounter discards increments.
type NoopCounter struct{}

func (NoopCounter) Incr(context.Context, string) error { return nil }
func (NoopCounter) Flush(context.Context) error        { return nil }

// MemoryCounter keeps counts in process memory.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]uint64)}
}

func (m *MemoryCounter) Incr(_ context.Context, collection string) error {
	m.mu.Lock()
	m.counts[collection]++
	m.mu.Unlock()
	return nil
}

func (m *MemoryCounter) Flush(context.Context) error { return nil }

// Get returns the count for one collection.
func (m *MemoryCounter) Get(collection string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[collection]
}

// Snapshot copies the current counts.
func (m *MemoryCounter) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

// Collections lists the observed collections in sorted order.
func (m *MemoryCounter) Collections() []string {
	snap := m.Snapshot()
	out := make([]string, 0, len(snap))
	for k := range snap {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RedisOptions configures a RedisCounter.
type RedisOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// TotalKey, when set, is incremented once per op in addition to the
	// collection key.
	TotalKey string
	// Every is the number of increments buffered before the pipeline is
	// executed. Defaults to 2500.
	Every int
}

// RedisCounter buffers INCR commands in a pipeline and executes it every
// Every increments and on Flush.
type RedisCounter struct {
	mu      sync.Mutex
	pipe    redis.Pipeliner
	opts    RedisOptions
	pending int
}

func NewRedisCounter(client redis.UniversalClient, opts RedisOptions) *RedisCounter {
	if opts.Every <= 0 {
		opts.Every = 2500
	}
	return &RedisCounter{pipe: client.Pipeline(), opts: opts}
}

func (r *RedisCounter) key(name string) string {
	return r.opts.Prefix + strings.TrimSpace(name)
}

func (r *RedisCounter) Incr(ctx context.Context, collection string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipe.Incr(ctx, r.key(collection))
	if r.opts.TotalKey != "" {
		r.pipe.Incr(ctx, r.key(r.opts.TotalKey))
	}
	r.pending++
	if r.pending < r.opts.Every {
		return nil
	}
	return r.execLocked(ctx)
}

func (r *RedisCounter) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == 0 {
		return nil
	}
	return r.execLocked(ctx)
}

// Pending reports buffered, unexecuted increments.
func (r *RedisCounter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *RedisCounter) execLocked(ctx context.Context) error {
	n := r.pending
	r.pending = 0
	if _, err := r.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis exec (%d increments): %w", n, err)
	}
	return nil
}

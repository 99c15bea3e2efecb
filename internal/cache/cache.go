package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/i474232898/agri-evidence-aggregation/internal/evidence"
	"github.com/i474232898/agri-evidence-aggregation/internal/observability"
)

const defaultMaxEntries = 256

// ErrNoTTL is returned by New when a source has no freshness window.
var ErrNoTTL = errors.New("cache ttl must be positive")

// Config sets the freshness window per source and the total entry bound.
type Config struct {
	TTL        map[evidence.SourceName]time.Duration
	MaxEntries int
}

// entry holds a payload with the time it was stored.
type entry struct {
	payload  evidence.SourcePayload
	storedAt time.Time
}

// Cache is a process-lifetime payload cache keyed by (source, identity).
// Entries past their TTL are never served; a failed refresh surfaces as
// unavailability instead of stale data.
type Cache struct {
	mu      sync.Mutex // serializes store against expiry removal
	entries *lru.Cache[string, entry]
	ttl     map[evidence.SourceName]time.Duration
	group   singleflight.Group
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// New creates a Cache. metrics may be nil.
func New(cfg Config, clock clockwork.Clock, metrics *observability.Metrics) (*Cache, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	ttl := make(map[evidence.SourceName]time.Duration, len(cfg.TTL))
	for source, d := range cfg.TTL {
		if d <= 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoTTL, source)
		}
		ttl[source] = d
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{entries: entries, ttl: ttl, clock: clock, metrics: metrics}, nil
}

func key(source evidence.SourceName, id evidence.Identity) string {
	return string(source) + "#" + id.Key()
}

// flight is the shared result of one upstream fetch.
type flight struct {
	payload evidence.SourcePayload
	hit     bool
}

// GetOrFetch returns a fresh cached payload or runs fetch, at most once per
// key at a time. The fetch runs detached from ctx so that a caller giving up
// does not abort work other callers are waiting on; the result still lands
// in the cache.
func (c *Cache) GetOrFetch(ctx context.Context, source evidence.SourceName, id evidence.Identity, fetch evidence.FetchFunc) (evidence.SourcePayload, evidence.FetchOutcome, error) {
	k := key(source, id)
	if p, ok := c.lookup(k, source); ok {
		return p, evidence.FetchCacheHit, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(k, func() (any, error) {
		// Another flight may have stored the key since our lookup.
		if p, ok := c.peek(k, source); ok {
			return flight{payload: p, hit: true}, nil
		}
		p, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		c.store(k, p)
		return flight{payload: p}, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, evidence.FetchUnavailable, evidence.Unavailable(source, res.Err)
		}
		f := res.Val.(flight)
		if f.hit {
			return f.payload, evidence.FetchCacheHit, nil
		}
		return f.payload, evidence.FetchOK, nil
	case <-ctx.Done():
		return nil, evidence.FetchUnavailable, evidence.Unavailable(source, ctx.Err())
	}
}

// lookup is peek plus metrics.
func (c *Cache) lookup(k string, source evidence.SourceName) (evidence.SourcePayload, bool) {
	p, result := c.get(k, source)
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(string(source), result).Inc()
	}
	return p, result == "hit"
}

func (c *Cache) peek(k string, source evidence.SourceName) (evidence.SourcePayload, bool) {
	p, result := c.get(k, source)
	return p, result == "hit"
}

func (c *Cache) get(k string, source evidence.SourceName) (evidence.SourcePayload, string) {
	e, ok := c.entries.Peek(k)
	if !ok {
		return nil, "miss"
	}
	ttl, ok := c.ttl[source]
	if !ok || c.clock.Since(e.storedAt) >= ttl {
		c.removeIfUnchanged(k, e.storedAt)
		return nil, "expired"
	}
	c.entries.Get(k)
	return e.payload, "hit"
}

func (c *Cache) store(k string, p evidence.SourcePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(k, entry{payload: p, storedAt: c.clock.Now()})
}

// removeIfUnchanged evicts k only while it still holds the entry stored at
// storedAt, so a payload added by a concurrent flight survives.
func (c *Cache) removeIfUnchanged(k string, storedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries.Peek(k); ok && cur.storedAt.Equal(storedAt) {
		c.entries.Remove(k)
	}
}

// Len reports the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	return c.entries.Len()
}

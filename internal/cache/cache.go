package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/example/wordquiz/internal/apperr"
	"github.com/example/wordquiz/internal/metrics"
	"github.com/example/wordquiz/pkg/models"
)

// NoExpiration keeps entries until they are overwritten
const NoExpiration time.Duration = gocache.NoExpiration

// Store persists cache entries, implemented by database.CacheRepository
type Store interface {
	LoadAll(ctx context.Context, namespace string) ([]models.CacheRecord, error)
	SaveAll(ctx context.Context, records []models.CacheRecord) error
	Delete(ctx context.Context, namespace string, keys ...string) error
}

// Options configures a Cache
type Options struct {
	// Name is used as the store namespace and as the metrics label
	Name          string
	TTL           time.Duration
	FlushInterval time.Duration
	Store         Store
	Clock         clockwork.Clock
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

type entry[T any] struct {
	value    T
	cachedAt time.Time
}

// Cache memoizes generated content by key. An entry is served while
// cachedAt+TTL is after now; expired entries are dropped on read.
type Cache[T any] struct {
	name          string
	ttl           time.Duration
	flushInterval time.Duration
	store         Store
	clock         clockwork.Clock
	metrics       *metrics.Metrics
	log           *zap.Logger

	items *gocache.Cache
	group singleflight.Group

	flushMu   sync.Mutex
	mu        sync.Mutex
	dirty     map[string]struct{}
	removed   map[string]struct{}
	lastFlush time.Time
}

// New creates an empty cache. Call Load to restore persisted entries.
func New[T any](opts Options) *Cache[T] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TTL == 0 {
		opts.TTL = NoExpiration
	}

	c := &Cache[T]{
		name:          opts.Name,
		ttl:           opts.TTL,
		flushInterval: opts.FlushInterval,
		store:         opts.Store,
		clock:         opts.Clock,
		metrics:       opts.Metrics,
		log:           opts.Logger.With(zap.String("cache", opts.Name)),
		items:         gocache.New(gocache.NoExpiration, 0),
		dirty:         make(map[string]struct{}),
		removed:       make(map[string]struct{}),
		lastFlush:     opts.Clock.Now(),
	}
	c.items.OnEvicted(func(key string, _ interface{}) {
		c.log.Debug("Evicted cache entry", zap.String("key", key))
	})
	return c
}

// Name returns the cache name
func (c *Cache[T]) Name() string {
	return c.name
}

// Len returns the number of entries held in memory, expired ones included
func (c *Cache[T]) Len() int {
	return c.items.ItemCount()
}

func (c *Cache[T]) expired(cachedAt time.Time) bool {
	if c.ttl < 0 {
		return false
	}
	return !cachedAt.Add(c.ttl).After(c.clock.Now())
}

// Get returns the value for key if it is present and not expired
func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T
	raw, ok := c.items.Get(key)
	if !ok {
		return zero, false
	}
	e := raw.(entry[T])
	if c.expired(e.cachedAt) {
		c.items.Delete(key)
		c.mu.Lock()
		delete(c.dirty, key)
		c.removed[key] = struct{}{}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key and flushes to the store when the flush interval has passed
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	c.items.Set(key, entry[T]{value: value, cachedAt: c.clock.Now()}, gocache.NoExpiration)

	c.mu.Lock()
	c.dirty[key] = struct{}{}
	delete(c.removed, key)
	due := c.store != nil && c.flushInterval > 0 && c.clock.Since(c.lastFlush) >= c.flushInterval
	c.mu.Unlock()

	if due {
		// failures are logged by Flush and retried on the next one
		_ = c.Flush(ctx)
	}
}

// GetOrFetch returns the cached value for key or calls fetch to produce it.
// Concurrent misses on the same key share a single fetch. Fetch errors are
// returned and nothing is cached.
func (c *Cache[T]) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		c.metrics.CacheHit(c.name)
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		c.metrics.CacheMiss(c.name)
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Load restores persisted entries. Expired rows are skipped and removed from
// the store on the next flush, malformed rows are logged and skipped.
func (c *Cache[T]) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	records, err := c.store.LoadAll(ctx, c.name)
	if err != nil {
		return fmt.Errorf("failed to load cache %s: %w", c.name, err)
	}

	loaded := 0
	for _, rec := range records {
		if c.expired(rec.CachedAt) {
			c.mu.Lock()
			c.removed[rec.Key] = struct{}{}
			c.mu.Unlock()
			continue
		}
		var value T
		if err := json.Unmarshal([]byte(rec.Payload), &value); err != nil {
			c.log.Warn("Skipping malformed cache entry",
				zap.String("key", rec.Key),
				zap.Error(apperr.DataIntegrity("cannot decode cached payload", err)))
			continue
		}
		c.items.Set(rec.Key, entry[T]{value: value, cachedAt: rec.CachedAt}, gocache.NoExpiration)
		loaded++
	}

	c.mu.Lock()
	c.lastFlush = c.clock.Now()
	c.mu.Unlock()

	c.log.Info("Loaded cache", zap.Int("entries", loaded), zap.Int("stored", len(records)))
	return nil
}

// Flush writes entries changed since the last successful flush. On failure
// the entries stay dirty so the next flush retries them.
func (c *Cache[T]) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	dirty := c.dirty
	removed := c.removed
	c.dirty = make(map[string]struct{})
	c.removed = make(map[string]struct{})
	c.lastFlush = c.clock.Now()
	c.mu.Unlock()

	err := c.write(ctx, dirty, removed)
	c.metrics.CacheFlush(c.name, err)
	if err != nil {
		c.mu.Lock()
		for k := range dirty {
			c.dirty[k] = struct{}{}
		}
		for k := range removed {
			if _, rewritten := c.dirty[k]; !rewritten {
				c.removed[k] = struct{}{}
			}
		}
		c.mu.Unlock()
		c.log.Error("Failed to flush cache", zap.Int("pending", len(dirty)+len(removed)), zap.Error(err))
		return err
	}

	if len(dirty)+len(removed) > 0 {
		c.log.Debug("Flushed cache", zap.Int("saved", len(dirty)), zap.Int("deleted", len(removed)))
	}
	return nil
}

func (c *Cache[T]) write(ctx context.Context, dirty, removed map[string]struct{}) error {
	records := make([]models.CacheRecord, 0, len(dirty))
	for key := range dirty {
		raw, ok := c.items.Get(key)
		if !ok {
			continue
		}
		e := raw.(entry[T])
		payload, err := json.Marshal(e.value)
		if err != nil {
			return apperr.DataIntegrity(fmt.Sprintf("cannot encode cache entry %q", key), err)
		}
		records = append(records, models.CacheRecord{
			Namespace: c.name,
			Key:       key,
			Payload:   string(payload),
			CachedAt:  e.cachedAt,
		})
	}

	if len(records) > 0 {
		if err := c.store.SaveAll(ctx, records); err != nil {
			return err
		}
	}

	if len(removed) > 0 {
		keys := make([]string, 0, len(removed))
		for k := range removed {
			keys = append(keys, k)
		}
		if err := c.store.Delete(ctx, c.name, keys...); err != nil {
			return err
		}
	}
	return nil
}

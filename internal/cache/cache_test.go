package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/example/wordquiz/pkg/models"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]models.CacheRecord
	saves   int
	failing error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]models.CacheRecord)}
}

func (s *memoryStore) LoadAll(_ context.Context, namespace string) ([]models.CacheRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CacheRecord
	for _, r := range s.records {
		if r.Namespace == namespace {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) SaveAll(_ context.Context, records []models.CacheRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	s.saves++
	for _, r := range records {
		s.records[r.Namespace+"/"+r.Key] = r
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, namespace string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing != nil {
		return s.failing
	}
	for _, k := range keys {
		delete(s.records, namespace+"/"+k)
	}
	return nil
}

func (s *memoryStore) has(namespace, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[namespace+"/"+key]
	return ok
}

type definition struct {
	Word       string   `json:"word"`
	Definition string   `json:"definition"`
	Options    []string `json:"options"`
}

func newTestCache(t *testing.T, clock clockwork.Clock, store Store, ttl time.Duration) *Cache[definition] {
	return New[definition](Options{
		Name:          "words",
		TTL:           ttl,
		FlushInterval: 5 * time.Minute,
		Store:         store,
		Clock:         clock,
		Logger:        zaptest.NewLogger(t),
	})
}

func TestGetOrFetch_FetchesOncePerTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, clock, nil, time.Hour)

	var calls int
	fetch := func(context.Context) (definition, error) {
		calls++
		return definition{Word: "abate", Definition: "to lessen"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(ctx, "abate", fetch)
		require.NoError(t, err)
		assert.Equal(t, "to lessen", v.Definition)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(59 * time.Minute)
	_, err := c.GetOrFetch(ctx, "abate", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// cachedAt+TTL == now is already expired
	clock.Advance(time.Minute)
	_, err = c.GetOrFetch(ctx, "abate", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrFetch_ConcurrentMissesShareFetch(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, clockwork.NewFakeClock(), nil, time.Hour)

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (definition, error) {
		calls.Add(1)
		<-release
		return definition{Word: "abbey"}, nil
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrFetch(ctx, "abbey", fetch)
			assert.NoError(t, err)
			assert.Equal(t, "abbey", v.Word)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrFetch_ErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t, clockwork.NewFakeClock(), nil, time.Hour)
	boom := errors.New("provider down")

	_, err := c.GetOrFetch(ctx, "abase", func(context.Context) (definition, error) {
		return definition{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get("abase")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNoExpiration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, clock, nil, NoExpiration)

	c.Set(context.Background(), "math_algebra_linear_easy", definition{Word: "x"})
	clock.Advance(10 * 365 * 24 * time.Hour)

	_, ok := c.Get("math_algebra_linear_easy")
	assert.True(t, ok)
}

func TestLoad_SkipsExpiredAndMalformed(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	store := newMemoryStore()
	require.NoError(t, store.SaveAll(ctx, []models.CacheRecord{
		{Namespace: "words", Key: "fresh", Payload: `{"word":"fresh","definition":"new"}`, CachedAt: clock.Now().Add(-24 * time.Hour)},
		{Namespace: "words", Key: "stale", Payload: `{"word":"stale"}`, CachedAt: clock.Now().Add(-31 * 24 * time.Hour)},
		{Namespace: "words", Key: "broken", Payload: `{"word":`, CachedAt: clock.Now()},
		{Namespace: "math", Key: "other", Payload: `{}`, CachedAt: clock.Now()},
	}))

	c := newTestCache(t, clock, store, 30*24*time.Hour)
	require.NoError(t, c.Load(ctx))

	v, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, "new", v.Definition)

	_, ok = c.Get("stale")
	assert.False(t, ok)
	_, ok = c.Get("broken")
	assert.False(t, ok)
	_, ok = c.Get("other")
	assert.False(t, ok)

	// expired rows are purged from the store on flush
	require.NoError(t, c.Flush(ctx))
	assert.False(t, store.has("words", "stale"))
	assert.True(t, store.has("words", "fresh"))
}

func TestFlush_WritesDirtyEntriesOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	c := newTestCache(t, clockwork.NewFakeClock(), store, time.Hour)

	c.Set(ctx, "abase", definition{Word: "abase"})
	c.Set(ctx, "abate", definition{Word: "abate"})
	require.NoError(t, c.Flush(ctx))
	assert.True(t, store.has("words", "abase"))
	assert.True(t, store.has("words", "abate"))

	saves := store.saves
	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, saves, store.saves)

	records, err := store.LoadAll(ctx, "words")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFlush_FailureKeepsEntriesDirty(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.failing = errors.New("disk full")
	c := newTestCache(t, clockwork.NewFakeClock(), store, time.Hour)

	c.Set(ctx, "abase", definition{Word: "abase"})
	assert.Error(t, c.Flush(ctx))
	assert.False(t, store.has("words", "abase"))

	store.mu.Lock()
	store.failing = nil
	store.mu.Unlock()

	require.NoError(t, c.Flush(ctx))
	assert.True(t, store.has("words", "abase"))
}

func TestSet_FlushesAfterInterval(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := newMemoryStore()
	c := newTestCache(t, clock, store, time.Hour)

	c.Set(ctx, "abase", definition{Word: "abase"})
	assert.False(t, store.has("words", "abase"))

	clock.Advance(5 * time.Minute)
	c.Set(ctx, "abate", definition{Word: "abate"})
	assert.True(t, store.has("words", "abase"))
	assert.True(t, store.has("words", "abate"))
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	store := newMemoryStore()

	first := newTestCache(t, clock, store, time.Hour)
	first.Set(ctx, "abbey", definition{Word: "abbey", Options: []string{"a", "b", "c"}})
	require.NoError(t, first.Flush(ctx))

	second := newTestCache(t, clock, store, time.Hour)
	require.NoError(t, second.Load(ctx))

	v, ok := second.Get("abbey")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, v.Options)
}

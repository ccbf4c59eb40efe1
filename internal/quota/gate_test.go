package quota_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/chatid-bot/internal/quota"
	"github.com/serroba/chatid-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errUnreachable = errors.New("store unreachable")

// countingStore wraps a quota.Store and counts calls.
type countingStore struct {
	inner   quota.Store
	loadErr error
	saveErr error

	mu    sync.Mutex
	loads int
	saves int
}

func (c *countingStore) Load(ctx context.Context) (quota.Document, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()

	if c.loadErr != nil {
		return nil, c.loadErr
	}

	return c.inner.Load(ctx)
}

func (c *countingStore) Save(ctx context.Context, doc quota.Document) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()

	if c.saveErr != nil {
		return c.saveErr
	}

	return c.inner.Save(ctx, doc)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
}

func newGate(s quota.Store, clock *fakeClock, limit int) *quota.Gate {
	return quota.NewGate(s, quota.Config{
		DailyLimit:       limit,
		PrivilegedUserID: "7645689440",
		Location:         time.UTC,
		Now:              clock.Now,
	}, zap.NewNop())
}

func day(s string) time.Time {
	t, _ := time.Parse(quota.DateLayout, s)

	return t.Add(12 * time.Hour)
}

func TestGate_Allow(t *testing.T) {
	t.Run("allows the daily limit then denies", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		gate := newGate(store.NewMemoryStore(), clock, 25)

		for i := range 25 {
			assert.True(t, gate.Allow(context.Background(), "42"), "call %d should be allowed", i+1)
		}

		assert.False(t, gate.Allow(context.Background(), "42"), "26th call should be denied")
	})

	t.Run("resets on the next calendar day", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		gate := newGate(store.NewMemoryStore(), clock, 25)

		for range 25 {
			gate.Allow(context.Background(), "42")
		}

		require.False(t, gate.Allow(context.Background(), "42"))

		clock.Advance(24 * time.Hour)

		assert.True(t, gate.Allow(context.Background(), "42"))
		assert.Equal(t, 1, gate.Usage(context.Background(), "42").Used)
	})

	t.Run("tracks users independently", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		gate := newGate(store.NewMemoryStore(), clock, 2)

		assert.True(t, gate.Allow(context.Background(), "1"))
		assert.True(t, gate.Allow(context.Background(), "1"))
		assert.False(t, gate.Allow(context.Background(), "1"))

		assert.True(t, gate.Allow(context.Background(), "2"))
	})

	t.Run("privileged user never touches the store", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		s := &countingStore{inner: store.NewMemoryStore()}
		gate := newGate(s, clock, 1)

		for range 100 {
			assert.True(t, gate.Allow(context.Background(), "7645689440"))
		}

		usage := gate.Usage(context.Background(), "7645689440")

		assert.True(t, usage.Unlimited)
		assert.Zero(t, s.loads)
		assert.Zero(t, s.saves)
	})

	t.Run("denial does not write", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		mem := store.NewMemoryStore()
		require.NoError(t, mem.Save(context.Background(), quota.Document{
			"42": {Count: 3, Date: "2026-10-17"},
		}))

		s := &countingStore{inner: mem}
		gate := newGate(s, clock, 3)

		assert.False(t, gate.Allow(context.Background(), "42"))
		assert.Equal(t, 1, s.loads)
		assert.Zero(t, s.saves)
	})

	t.Run("stale record is treated as no record", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		mem := store.NewMemoryStore()
		require.NoError(t, mem.Save(context.Background(), quota.Document{
			"42": {Count: 25, Date: "2026-10-16"},
		}))

		gate := newGate(mem, clock, 25)

		assert.True(t, gate.Allow(context.Background(), "42"))

		doc, err := mem.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, quota.Record{Count: 1, Date: "2026-10-17"}, doc["42"])
	})

	t.Run("keeps other users' records when saving", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		mem := store.NewMemoryStore()
		require.NoError(t, mem.Save(context.Background(), quota.Document{
			"99": {Count: 7, Date: "2026-10-10"},
		}))

		gate := newGate(mem, clock, 25)

		require.True(t, gate.Allow(context.Background(), "42"))

		doc, err := mem.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, quota.Record{Count: 7, Date: "2026-10-10"}, doc["99"])
		assert.Equal(t, quota.Record{Count: 1, Date: "2026-10-17"}, doc["42"])
	})

	t.Run("unreachable store never denies", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		s := &countingStore{inner: store.NewMemoryStore(), loadErr: errUnreachable, saveErr: errUnreachable}
		gate := newGate(s, clock, 3)

		for range 10 {
			assert.True(t, gate.Allow(context.Background(), "42"))
		}

		assert.Equal(t, 10, s.saves, "every grant still attempts a write")
	})

	t.Run("failed save still grants but is not counted", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		s := &countingStore{inner: store.NewMemoryStore(), saveErr: errUnreachable}
		gate := newGate(s, clock, 25)

		assert.True(t, gate.Allow(context.Background(), "42"))
		assert.Equal(t, 0, gate.Usage(context.Background(), "42").Used)
	})

	t.Run("falls back to default limit", func(t *testing.T) {
		gate := quota.NewGate(store.NewMemoryStore(), quota.Config{}, zap.NewNop())

		assert.Equal(t, quota.DefaultDailyLimit, gate.Limit())
	})
}

// Concurrent grants for one user inside one process are serialised by the
// gate, so the limit holds. Separate processes sharing a store still race.
func TestGate_Allow_ConcurrentSameUser(t *testing.T) {
	clock := &fakeClock{now: day("2026-10-17")}
	gate := newGate(store.NewMemoryStore(), clock, 10)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if gate.Allow(context.Background(), "42") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, granted)
}

func TestGate_Usage(t *testing.T) {
	t.Run("fresh user has full quota", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		gate := newGate(store.NewMemoryStore(), clock, 25)

		usage := gate.Usage(context.Background(), "42")

		assert.Equal(t, quota.Usage{Used: 0, Remaining: 25, Limit: 25}, usage)
	})

	t.Run("reflects grants", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		gate := newGate(store.NewMemoryStore(), clock, 25)

		for range 3 {
			gate.Allow(context.Background(), "42")
		}

		usage := gate.Usage(context.Background(), "42")

		assert.Equal(t, 3, usage.Used)
		assert.Equal(t, 22, usage.Remaining)
	})

	t.Run("never mutates stored state", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		mem := store.NewMemoryStore()
		seed := quota.Document{"42": {Count: 5, Date: "2026-10-16"}}
		require.NoError(t, mem.Save(context.Background(), seed))

		s := &countingStore{inner: mem}
		gate := newGate(s, clock, 25)

		first := gate.Usage(context.Background(), "42")
		second := gate.Usage(context.Background(), "42")

		assert.Equal(t, first, second)
		assert.Equal(t, 0, first.Used)
		assert.Zero(t, s.saves)

		doc, err := mem.Load(context.Background())

		require.NoError(t, err)
		assert.Equal(t, seed, doc)
	})

	t.Run("remaining is never negative", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		mem := store.NewMemoryStore()
		require.NoError(t, mem.Save(context.Background(), quota.Document{
			"42": {Count: 40, Date: "2026-10-17"},
		}))

		gate := newGate(mem, clock, 25)

		usage := gate.Usage(context.Background(), "42")

		assert.Equal(t, 40, usage.Used)
		assert.Equal(t, 0, usage.Remaining)
	})

	t.Run("unreachable store reports full quota", func(t *testing.T) {
		clock := &fakeClock{now: day("2026-10-17")}
		s := &countingStore{inner: store.NewMemoryStore(), loadErr: errUnreachable}
		gate := newGate(s, clock, 25)

		usage := gate.Usage(context.Background(), "42")

		assert.Equal(t, 25, usage.Remaining)
	})
}

package joblock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store with real set-if-absent and
// compare-and-delete semantics.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error // returned by every call when set, simulating an outage
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (s *memStore) SetIfAbsent(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, exists := s.values[key]; exists {
		return false, nil
	}
	s.values[key] = value
	return true, nil
}

func (s *memStore) DeleteIfValue(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.values[key] == value {
		delete(s.values, key)
	}
	return nil
}

func (s *memStore) holder(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func TestWithLockRunsAndReleases(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute}, nil)

	ran := false
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		ran = true
		assert.NotEmpty(t, store.holder("test:sweep"))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, result.Acquired)
	assert.True(t, result.Ran)
	assert.True(t, ran)
	assert.Empty(t, store.holder("test:sweep"), "lock should be released after fn returns")
}

func TestWithLockHeldElsewhereSkips(t *testing.T) {
	store := newMemStore()
	_, err := store.SetIfAbsent(context.Background(), "test:sweep", "other-instance", time.Minute)
	require.NoError(t, err)

	m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute}, nil)
	ran := false
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.False(t, result.Acquired)
	assert.False(t, result.Ran)
	assert.False(t, ran)
	assert.Equal(t, "other-instance", store.holder("test:sweep"), "foreign lock must be untouched")
}

// Two concurrent acquisitions of the same name: exactly one runs.
func TestWithLockConcurrentExclusivity(t *testing.T) {
	store := newMemStore()

	var mu sync.Mutex
	runs := 0
	acquired := 0

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate managers model separate server instances.
			m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute}, nil)
			result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
				mu.Lock()
				runs++
				mu.Unlock()
				time.Sleep(20 * time.Millisecond) // hold the lock across the race window
				return nil
			})
			assert.NoError(t, err)
			if result.Acquired {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, acquired)
	assert.Equal(t, 1, runs)
}

func TestReleaseRequiresOwnership(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "joblock:booking-expiration", "token-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale release with the wrong token must not delete A's lock.
	require.NoError(t, store.DeleteIfValue(ctx, "joblock:booking-expiration", "token-b"))
	assert.Equal(t, "token-a", store.holder("joblock:booking-expiration"))

	require.NoError(t, store.DeleteIfValue(ctx, "joblock:booking-expiration", "token-a"))
	assert.Empty(t, store.holder("joblock:booking-expiration"))
}

func TestWithLockStoreDownFailClosed(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")

	m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute, FailOpen: false}, nil)
	ran := false
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err, "an unreachable store is not the caller's error")
	assert.False(t, result.Ran)
	assert.False(t, ran)
}

func TestWithLockStoreDownFailOpen(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")

	m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute, FailOpen: true}, nil)
	ran := false
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, result.Ran)
	assert.True(t, result.FailOpen)
	assert.True(t, ran)
}

func TestWithLockDisabledBypasses(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, Options{Disabled: true}, nil)

	ran := false
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, result.Ran)
	assert.True(t, ran)
	assert.Empty(t, store.holder("joblock:sweep"), "disabled locking never touches the store")
}

func TestWithLockPropagatesTaskError(t *testing.T) {
	store := newMemStore()
	m := NewManager(store, Options{Prefix: "test:", DefaultTTL: time.Minute}, nil)

	taskErr := errors.New("sweep failed")
	result, err := m.WithLock(context.Background(), "sweep", func(context.Context) error {
		return taskErr
	})

	assert.ErrorIs(t, err, taskErr)
	assert.True(t, result.Ran)
	assert.Empty(t, store.holder("test:sweep"), "lock released even when fn fails")
}

func TestTTLFor(t *testing.T) {
	m := NewManager(newMemStore(), Options{
		DefaultTTL: 5 * time.Minute,
		PerJobTTL:  map[string]time.Duration{"booking-expiration": time.Minute},
	}, nil)

	assert.Equal(t, time.Minute, m.TTLFor("booking-expiration"))
	assert.Equal(t, 5*time.Minute, m.TTLFor("payment-reminder"))
}

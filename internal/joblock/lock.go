package joblock

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "localmart/pkg/errors"
	"localmart/pkg/logger"
)

// Store is the key-value contract the lock needs: atomic set-if-absent with a
// TTL, and compare-and-delete keyed on the owner token. Redis implements it
// in production; tests use an in-memory fake.
type Store interface {
	// SetIfAbsent sets key to value with ttl only if key does not exist, and
	// reports whether the set happened.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// DeleteIfValue deletes key only while it still holds value.
	DeleteIfValue(ctx context.Context, key, value string) error
}

// Options control lock behavior. FailOpen decides what happens when the
// store itself is unreachable: run anyway (development convenience) or skip
// the run (production safety).
type Options struct {
	Prefix     string
	DefaultTTL time.Duration
	PerJobTTL  map[string]time.Duration
	FailOpen   bool
	Disabled   bool
}

// Result reports how a WithLock call resolved.
type Result struct {
	Acquired bool // the named lock was held (or locking was bypassed)
	Ran      bool // fn was executed
	FailOpen bool // fn ran without mutual exclusion because the store was down
}

type Manager struct {
	store Store
	opts  Options
	log   *logger.Logger
}

func NewManager(store Store, opts Options, log *logger.Logger) *Manager {
	if opts.Prefix == "" {
		opts.Prefix = "joblock:"
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	return &Manager{store: store, opts: opts, log: log}
}

// TTLFor returns the lock TTL for a job, honoring per-job overrides.
func (m *Manager) TTLFor(name string) time.Duration {
	if ttl, ok := m.opts.PerJobTTL[name]; ok && ttl > 0 {
		return ttl
	}
	return m.opts.DefaultTTL
}

// WithLock acquires the named lock and runs fn while holding it. A lock held
// by another instance means fn is skipped and Result.Acquired is false; that
// is an expected outcome, not an error. fn's own error is returned as-is.
func (m *Manager) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) (Result, error) {
	if m.opts.Disabled {
		return Result{Acquired: true, Ran: true}, fn(ctx)
	}

	key := m.opts.Prefix + name
	token := uuid.New().String()

	acquired, err := m.store.SetIfAbsent(ctx, key, token, m.TTLFor(name))
	if err != nil {
		lockErr := &apperrors.LockUnavailableError{Name: name, Err: err}
		if m.opts.FailOpen {
			if m.log != nil {
				m.log.Warnf("job lock store unreachable, running %q without lock: %s", name, lockErr)
			}
			return Result{Acquired: true, Ran: true, FailOpen: true}, fn(ctx)
		}
		if m.log != nil {
			m.log.Warnf("job lock store unreachable, skipping %q: %s", name, lockErr)
		}
		return Result{}, nil
	}
	if !acquired {
		if m.log != nil {
			m.log.Debugf("job lock %q held elsewhere, skipping", name)
		}
		return Result{}, nil
	}

	defer func() {
		// Only the token holder may release; a stale release after TTL expiry
		// must not clobber a lock some other instance now owns.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := m.store.DeleteIfValue(releaseCtx, key, token); err != nil && m.log != nil {
			m.log.Debugf("job lock %q release failed (will expire via TTL): %s", name, err)
		}
	}()

	return Result{Acquired: true, Ran: true}, fn(ctx)
}

package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"localmart/internal/joblock"
	"localmart/pkg/logger"
)

// Task is a job body. It runs under the job lock and must tolerate being
// skipped entirely when another instance holds the lock.
type Task func(ctx context.Context) error

// Scheduler drives the named background jobs on cron schedules. Each trigger
// is wrapped in lock acquisition, panic recovery and last-run bookkeeping, so
// a failing job never takes the process down.
type Scheduler struct {
	cron  *cron.Cron
	locks *joblock.Manager
	log   *logger.Logger

	mu      sync.Mutex
	entries []entry
	lastRun map[string]time.Time
}

type entry struct {
	name string
	task Task
}

func NewScheduler(locks *joblock.Manager, timezone string, log *logger.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		locks:   locks,
		log:     log,
		lastRun: make(map[string]time.Time),
	}, nil
}

// Register adds a job under the given cron spec.
func (s *Scheduler) Register(name, spec string, task Task) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runOnce(context.Background(), name, task)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{name: name, task: task})
	s.mu.Unlock()
	return nil
}

// Start kicks every registered job once immediately, then begins the cron
// schedule. The immediate run means sweep effects are not delayed until the
// first scheduled tick after a deploy.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	entries := make([]entry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	go func() {
		for _, e := range entries {
			s.runOnce(ctx, e.name, e.task)
		}
	}()

	s.cron.Start()
}

// Stop halts the schedule and waits for any in-flight job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// LastRun reports when the named job last executed on this instance.
func (s *Scheduler) LastRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastRun[name]
	return t, ok
}

func (s *Scheduler) runOnce(ctx context.Context, name string, task Task) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Errorf("job %q panicked: %v", name, r)
		}
	}()

	start := time.Now()
	result, err := s.locks.WithLock(ctx, name, task)
	if !result.Ran {
		return
	}

	s.mu.Lock()
	s.lastRun[name] = start
	s.mu.Unlock()

	if s.log == nil {
		return
	}
	if err != nil {
		s.log.Errorf("job %q failed after %s: %s", name, time.Since(start), err)
		return
	}
	s.log.Infof("job %q completed in %s", name, time.Since(start))
}

package jobs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/tcgbot/activity"
	"github.com/teranos/tcgbot/errors"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/poster"
)

// DefaultInterval is the wait between two items of the same job
const DefaultInterval = 65 * time.Second

// WaitFunc suspends a runner between items. It must return early with an
// error when ctx is cancelled.
type WaitFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the production WaitFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ManagerConfig configures runner pacing
type ManagerConfig struct {
	Interval        time.Duration // between items of one job
	Wait            WaitFunc
	ShutdownTimeout time.Duration
}

// DefaultManagerConfig returns production pacing
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Interval:        DefaultInterval,
		Wait:            SleepContext,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Manager owns the job store, the activity log and one runner goroutine per
// running job
type Manager struct {
	store    *Store
	activity *activity.Log
	poster   poster.Poster
	gate     *poster.Gate

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	runners  map[string]*runner
	interval atomic.Int64
	wait     WaitFunc
	timeout  time.Duration
	logger   *zap.SugaredLogger
}

// runner is the handle to one job's goroutine
type runner struct {
	cancel context.CancelFunc
	resume chan struct{}
	done   chan struct{}
}

// wake releases a runner blocked on pause. Never blocks.
func (r *runner) wake() {
	select {
	case r.resume <- struct{}{}:
	default:
	}
}

// NewManager wires the pieces together. gate may be nil to disable pacing.
func NewManager(store *Store, log *activity.Log, p poster.Poster, gate *poster.Gate, cfg ManagerConfig) *Manager {
	if cfg.Wait == nil {
		cfg.Wait = SleepContext
	}
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    store,
		activity: log,
		poster:   p,
		gate:     gate,
		ctx:      ctx,
		cancel:   cancel,
		runners:  make(map[string]*runner),
		wait:     cfg.Wait,
		timeout:  cfg.ShutdownTimeout,
		logger:   logger.ComponentLogger("jobs"),
	}
	m.interval.Store(int64(cfg.Interval))
	return m
}

// Store returns the job store
func (m *Manager) Store() *Store { return m.store }

// Activity returns the recent activity log
func (m *Manager) Activity() *activity.Log { return m.activity }

// Poster returns the poster chosen at startup
func (m *Manager) Poster() poster.Poster { return m.poster }

// Gate returns the shared pacing gate
func (m *Manager) Gate() *poster.Gate { return m.gate }

// Interval returns the current wait between items
func (m *Manager) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SetInterval changes the wait between items for subsequent waits
func (m *Manager) SetInterval(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.interval.Store(int64(d))
	m.logger.Infow("Job interval updated", logger.FieldInterval, d)
}

// Create adds a job. An empty id gets a generated one.
func (m *Manager) Create(id string, spec Spec) (*Job, error) {
	if id == "" {
		id = NewJobID(spec.Kind, time.Now())
	}
	job, err := m.store.Create(id, spec)
	if err != nil {
		return nil, err
	}
	m.logger.Infow("Job created",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		logger.FieldKind, job.Kind,
		logger.FieldItemTotal, len(job.Items))
	return job, nil
}

// Get returns a job
func (m *Manager) Get(id string) (*Job, error) { return m.store.Get(id) }

// List returns all jobs in insertion order
func (m *Manager) List() []*Job { return m.store.List() }

// Rename changes a job's display name
func (m *Manager) Rename(id, name string) (*Job, error) { return m.store.Rename(id, name) }

// Start runs a job. Starting a running job is a no-op; starting a paused
// job resumes its existing runner.
func (m *Manager) Start(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}

	r := m.runners[id]
	switch job.Status {
	case StatusRunning:
		return job, nil
	case StatusPaused:
		if r != nil {
			job, err = m.store.SetStatus(id, StatusRunning)
			if err != nil {
				return nil, err
			}
			r.wake()
			m.logger.Infow("Job resumed", logger.FieldJobID, id)
			return job, nil
		}
	}

	if r != nil {
		select {
		case <-r.done:
			delete(m.runners, id)
		default:
			return nil, errors.NewConflictError("job %s is still stopping", id)
		}
	}

	now := time.Now()
	job, err = m.store.Update(id, func(j *Job) error {
		j.Status = StatusRunning
		j.LastRun = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(m.ctx)
	r = &runner{
		cancel: cancel,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	m.runners[id] = r

	m.wg.Add(1)
	go m.run(ctx, r, job)

	m.logger.Infow("Job started",
		logger.FieldJobID, id,
		logger.FieldItemTotal, len(job.Items))
	return job, nil
}

// Stop sets the job stopped and interrupts its inter-item wait. An item
// already being posted completes.
func (m *Manager) Stop(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.SetStatus(id, StatusStopped)
	if err != nil {
		return nil, err
	}
	if r := m.runners[id]; r != nil {
		r.cancel()
		r.wake()
	}
	m.logger.Infow("Job stopped", logger.FieldJobID, id)
	return job, nil
}

// Pause holds a running job before its next item until Start or Stop
func (m *Manager) Pause(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Update(id, func(j *Job) error {
		if j.Status != StatusRunning {
			return errors.NewConflictError("job %s is not running (status: %s)", id, j.Status)
		}
		j.Status = StatusPaused
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Infow("Job paused", logger.FieldJobID, id)
	return job, nil
}

// Done returns a channel closed when the job's current runner exits, or
// nil when no runner is attached
func (m *Manager) Done(id string) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.runners[id]; r != nil {
		return r.done
	}
	return nil
}

// Running returns how many runner goroutines are alive
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runners)
}

// Shutdown stops every runner and waits for them, bounded by the
// configured timeout or ctx
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Infow("All job runners exited")
		return nil
	case <-time.After(m.timeout):
		m.logger.Warnw("Job runners still posting after shutdown timeout", "timeout", m.timeout)
		return errors.Newf("job runners did not exit within %s", m.timeout)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "shutdown interrupted")
	}
}

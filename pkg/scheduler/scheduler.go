package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otakulab/media-sync/internal/metrics"
)

const (
	// maxCheckInterval caps how long the loop sleeps between due checks so
	// newly registered jobs are not starved by a large configured interval
	maxCheckInterval = time.Minute

	// loopBackoff is how long the loop pauses after a pass panics
	loopBackoff = 30 * time.Second

	// stopJoinTimeout bounds how long Stop waits for the loop to exit
	stopJoinTimeout = 30 * time.Second
)

// ResultCallback receives every execution result the scheduler dispatches,
// from both the background loop and manual runs
type ResultCallback func(result *ExecutionResult)

// Scheduler owns a registry of consistency jobs and runs the ones that are
// due on a background loop. Start and Stop are idempotent.
type Scheduler struct {
	logger        *zap.Logger
	checkInterval time.Duration

	mu        sync.RWMutex
	jobs      map[string]*Job
	callbacks []ResultCallback
	running   bool

	stopCh chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

// NewScheduler creates a scheduler that wakes up every checkInterval to
// look for due jobs
func NewScheduler(checkInterval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkInterval <= 0 {
		checkInterval = maxCheckInterval
	}
	return &Scheduler{
		logger:        logger,
		checkInterval: checkInterval,
		jobs:          make(map[string]*Job),
		now:           time.Now,
	}
}

// Register adds a job to the registry
func (s *Scheduler) Register(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID()]; ok {
		return fmt.Errorf("job %q is already registered", job.ID())
	}
	s.jobs[job.ID()] = job
	s.logger.Info("Registered consistency job",
		zap.String("job_id", job.ID()),
		zap.Duration("interval", job.Interval()),
		zap.Bool("enabled", job.Enabled()))
	return nil
}

// Deregister removes a job from the registry and reports whether it existed
func (s *Scheduler) Deregister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	return true
}

// Job looks up a registered job by id
func (s *Scheduler) Job(id string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Jobs returns the registered jobs sorted by id
func (s *Scheduler) Jobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// AddCallback registers a callback for execution results. Callbacks run
// synchronously after each execution; a panicking callback is logged and
// does not affect the job or other callbacks.
func (s *Scheduler) AddCallback(cb ResultCallback) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}

// Start launches the background loop. Starting a running scheduler logs a
// warning and does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Scheduler already running, ignoring start")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, stopCh)
	s.logger.Info("Scheduler started", zap.Duration("check_interval", s.checkInterval))
}

// Stop signals the loop and waits for it to exit, up to a bounded timeout.
// Stopping an idle scheduler logs a warning and does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Warn("Scheduler not running, ignoring stop")
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
	case <-time.After(stopJoinTimeout):
		s.logger.Warn("Timed out waiting for scheduler loop to exit",
			zap.Duration("timeout", stopJoinTimeout))
	}
}

// Running reports whether the background loop is active
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// RunJobNow executes one job immediately, bypassing its interval. The run
// is synchronous and its result is dispatched to callbacks like a
// scheduled one.
func (s *Scheduler) RunJobNow(ctx context.Context, id string) (*ExecutionResult, error) {
	job, ok := s.Job(id)
	if !ok {
		return nil, fmt.Errorf("job %q is not registered", id)
	}
	result := job.Execute(ctx)
	s.dispatch(result)
	return result, nil
}

// RunAllJobsNow executes every registered job immediately in id order,
// bypassing intervals. Disabled jobs contribute a disabled result.
func (s *Scheduler) RunAllJobsNow(ctx context.Context) []*ExecutionResult {
	jobs := s.Jobs()
	results := make([]*ExecutionResult, 0, len(jobs))
	for _, job := range jobs {
		result := job.Execute(ctx)
		s.dispatch(result)
		results = append(results, result)
	}
	return results
}

func (s *Scheduler) loop(ctx context.Context, stopCh chan struct{}) {
	defer s.wg.Done()

	tick := s.checkInterval
	if tick > maxCheckInterval {
		tick = maxCheckInterval
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if ok := s.runDue(ctx); !ok {
				select {
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				case <-time.After(loopBackoff):
				}
			}
		}
	}
}

// runDue executes every enabled job whose interval has elapsed. A panic
// anywhere in the pass is contained here so the loop survives.
func (s *Scheduler) runDue(ctx context.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			metrics.SchedulerLoopErrors.Inc()
			s.logger.Error("Scheduler pass panicked, backing off",
				zap.Any("panic", r),
				zap.Duration("backoff", loopBackoff))
		}
	}()

	now := s.now()
	for _, job := range s.Jobs() {
		if !job.due(now) {
			continue
		}
		result := job.Execute(ctx)
		s.dispatch(result)
	}
	return true
}

// dispatch fans a result out to every registered callback
func (s *Scheduler) dispatch(result *ExecutionResult) {
	s.mu.RLock()
	callbacks := make([]ResultCallback, len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.RUnlock()

	for _, cb := range callbacks {
		s.invoke(cb, result)
	}
}

func (s *Scheduler) invoke(cb ResultCallback, result *ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Result callback panicked",
				zap.String("job_id", result.JobID),
				zap.Any("panic", r))
		}
	}()
	cb(result)
}

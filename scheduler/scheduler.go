package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 30 * time.Minute

// Job represents a scheduled job
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron       *cron.Cron
	log        *zap.Logger
	jobTimeout time.Duration

	mu        sync.Mutex
	jobs      map[string]Job
	isRunning bool
}

type Option func(*Scheduler)

func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.jobTimeout = d }
}

// NewScheduler creates a scheduler with seconds precision. Panics in jobs are
// recovered and logged.
func NewScheduler(logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := cron.VerbosePrintfLogger(zap.NewStdLog(logger.Named("cron")))

	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		log:        logger,
		jobTimeout: DefaultJobTimeout,
		jobs:       make(map[string]Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob adds a job to the scheduler with a cron specification
func (s *Scheduler) AddJob(spec string, job Job) error {
	return s.AddJobSpecs(job, spec)
}

// AddJobSpecs registers job once and schedules it on every spec.
func (s *Scheduler) AddJobSpecs(job Job, specs ...string) error {
	name := job.Name()
	if len(specs) == 0 {
		return fmt.Errorf("job %s has no schedule", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	var ids []cron.EntryID
	for _, spec := range specs {
		id, err := s.cron.AddFunc(spec, func() { s.runScheduled(job) })
		if err != nil {
			for _, added := range ids {
				s.cron.Remove(added)
			}
			return fmt.Errorf("failed to add job %s with schedule %q: %w", name, spec, err)
		}
		ids = append(ids, id)
	}

	s.jobs[name] = job
	s.log.Info("Job scheduled", zap.String("job", name), zap.Strings("schedules", specs))
	return nil
}

func (s *Scheduler) runScheduled(job Job) {
	name := job.Name()
	s.log.Info("Starting scheduled job", zap.String("job", name))
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		s.log.Error("Job failed", zap.String("job", name), zap.Error(err))
		return
	}
	s.log.Info("Completed job", zap.String("job", name), zap.Duration("duration", time.Since(startTime)))
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.cron.Start()
	s.isRunning = true
	s.log.Info("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("Scheduler stopped")
}

// RunJobNow runs a job immediately outside of schedule
func (s *Scheduler) RunJobNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}

	s.log.Info("Manually running job", zap.String("job", name))
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	return job.Run(ctx)
}

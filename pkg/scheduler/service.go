package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SuryaBandari247/MLOps-Lead-Scoring-Open-Source/pkg/logger"
)

// Runner is the job executed on every tick
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context) error

// Run calls f(ctx)
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Status describes the schedule and the last execution
type Status struct {
	Schedule string
	Running  bool
	Runs     int
	LastRun  *time.Time
	NextRun  *time.Time
	LastErr  error
}

// Service runs the pipeline on a cron schedule. Executions never overlap:
// a tick that fires while the previous run is still going is skipped.
type Service struct {
	runner   Runner
	spec     string
	schedule cron.Schedule
	cron     *cron.Cron
	entry    cron.EntryID
	log      *logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	started bool
	runs    int
	lastRun *time.Time
	lastErr error
}

// NewService creates a scheduler for a standard 5-field cron expression or a
// descriptor such as @daily or @every 1h
func NewService(spec string, runner Runner, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewNop()
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	log = log.WithFields(logger.Component("scheduler"))
	return &Service{
		runner:   runner,
		spec:     spec,
		schedule: schedule,
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		log:      log,
		ctx:      context.Background(),
	}, nil
}

// Start schedules the job. ctx is handed to every execution.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.ctx = ctx
	s.entry = s.cron.Schedule(s.schedule, cron.FuncJob(s.execute))
	s.cron.Start()
	s.started = true

	next := s.schedule.Next(time.Now())
	s.log.Info("Job scheduler started",
		logger.String("schedule", s.spec),
		logger.String("next_run", next.Format(time.RFC3339)))
	return nil
}

// Stop stops scheduling and waits for a running execution to finish
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info("Job scheduler stopped")
}

// Status reports the schedule state
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Schedule: s.spec,
		Running:  s.started,
		Runs:     s.runs,
		LastRun:  s.lastRun,
		LastErr:  s.lastErr,
	}
	if s.started {
		next := s.cron.Entry(s.entry).Next
		if next.IsZero() {
			next = s.schedule.Next(time.Now())
		}
		st.NextRun = &next
	}
	return st
}

// execute runs the job once
func (s *Service) execute() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	s.log.Info("Executing scheduled run")
	err := s.runner.Run(ctx)

	s.mu.Lock()
	s.runs++
	s.lastRun = &start
	s.lastErr = err
	s.mu.Unlock()

	next := s.schedule.Next(time.Now())
	if err != nil {
		s.log.Error("Scheduled run failed", err,
			logger.Duration("duration", time.Since(start)),
			logger.String("next_run", next.Format(time.RFC3339)))
		return
	}
	s.log.Info("Scheduled run completed",
		logger.Duration("duration", time.Since(start)),
		logger.String("next_run", next.Format(time.RFC3339)))
}

// cronLogger routes cron's own messages to the structured logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, logger.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, err, logger.Any("details", keysAndValues))
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

const (
	TaskGenerationWatchdog = "generation_watchdog"
	TaskUploadExpiry       = "upload_expiry"
)

type Config struct {
	WatchdogSpec     string        `yaml:"watchdog_spec" validate:"required"`
	UploadExpirySpec string        `yaml:"upload_expiry_spec" validate:"required"`
	BatchLimit       int           `yaml:"batch_limit" validate:"gte=1"`
	TaskTimeout      time.Duration `yaml:"task_timeout"`
}

func DefaultConfig() Config {
	return Config{
		WatchdogSpec:     "@every 5m",
		UploadExpirySpec: "@every 1h",
		BatchLimit:       100,
		TaskTimeout:      2 * time.Minute,
	}
}

// StuckGenerations fails generations that stayed processing too long.
type StuckGenerations interface {
	FailStuck(ctx context.Context, limit int) (int, error)
}

// ExpiredUploads soft-deletes uploads past their expiry.
type ExpiredUploads interface {
	ExpireOld(ctx context.Context, limit int) (int, error)
}

type Scheduler struct {
	log     *logger.Logger
	cfg     Config
	cron    *cron.Cron
	stuck   StuckGenerations
	uploads ExpiredUploads
	ctx     context.Context
}

func New(baseLog *logger.Logger, cfg Config, stuck StuckGenerations, uploads ExpiredUploads) *Scheduler {
	def := DefaultConfig()
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = def.BatchLimit
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	log := baseLog.With("component", "Scheduler")
	return &Scheduler{
		log:     log,
		cfg:     cfg,
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log}))),
		stuck:   stuck,
		uploads: uploads,
		ctx:     context.Background(),
	}
}

// Start registers the sweeps and starts the cron runner. Tasks derive their
// context from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx
	if s.stuck != nil {
		if _, err := s.cron.AddFunc(s.cfg.WatchdogSpec, func() { s.RunTask(TaskGenerationWatchdog) }); err != nil {
			return fmt.Errorf("schedule %s: %w", TaskGenerationWatchdog, err)
		}
	}
	if s.uploads != nil {
		if _, err := s.cron.AddFunc(s.cfg.UploadExpirySpec, func() { s.RunTask(TaskUploadExpiry) }); err != nil {
			return fmt.Errorf("schedule %s: %w", TaskUploadExpiry, err)
		}
	}
	s.cron.Start()
	s.log.Info("Scheduler started", "watchdog", s.cfg.WatchdogSpec, "upload_expiry", s.cfg.UploadExpirySpec)
	return nil
}

// Stop waits for running tasks to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunTask runs one sweep synchronously.
func (s *Scheduler) RunTask(task string) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.TaskTimeout)
	defer cancel()

	var (
		n   int
		err error
	)
	switch task {
	case TaskGenerationWatchdog:
		n, err = s.stuck.FailStuck(ctx, s.cfg.BatchLimit)
	case TaskUploadExpiry:
		n, err = s.uploads.ExpireOld(ctx, s.cfg.BatchLimit)
	default:
		err = fmt.Errorf("unknown task %q", task)
	}
	if err != nil {
		observability.Current().IncCronRun(task, "error")
		s.log.Error("scheduled task failed", "task", task, "error", err)
		return
	}
	observability.Current().IncCronRun(task, "ok")
	if n > 0 {
		s.log.Info("scheduled task finished", "task", task, "affected", n)
	}
}

// cronLogger adapts the service logger to cron.Logger.
type cronLogger struct{ log *logger.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

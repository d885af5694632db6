package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/runtime"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type Config struct {
	Concurrency  int           `yaml:"concurrency" validate:"gte=1,lte=64"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=10ms"`
	MaxAttempts  int           `yaml:"max_attempts" validate:"gte=1"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	// StaleRunning is how long a running job may go without a heartbeat
	// before another worker reclaims it.
	StaleRunning time.Duration `yaml:"stale_running" validate:"gte=1m"`
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		PollInterval: time.Second,
		MaxAttempts:  3,
		RetryDelay:   30 * time.Second,
		StaleRunning: 10 * time.Minute,
	}
}

type Worker struct {
	log      *logger.Logger
	cfg      Config
	repo     repos.JobRunRepo
	registry *runtime.Registry
	notify   services.JobNotifier
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, cfg Config, repo repos.JobRunRepo, registry *runtime.Registry, notify services.JobNotifier) *Worker {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.StaleRunning <= 0 {
		cfg.StaleRunning = def.StaleRunning
	}
	return &Worker{
		log:      baseLog.With("component", "JobWorker"),
		cfg:      cfg,
		repo:     repo,
		registry: registry,
		notify:   notify,
	}
}

// Start launches the claim loops; they exit when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting job worker pool", "concurrency", w.cfg.Concurrency, "job_types", w.registry.Types())
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
}

// Wait blocks until every loop has returned.
func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			// Drain before waiting for the next tick.
			for ctx.Err() == nil && w.RunOnce(ctx, workerID) {
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was found.
func (w *Worker) RunOnce(ctx context.Context, workerID int) bool {
	job, err := w.repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, w.cfg.MaxAttempts, w.cfg.RetryDelay, w.cfg.StaleRunning)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		}
		return false
	}
	if job == nil {
		return false
	}

	jc := runtime.NewContext(ctx, job, w.repo, w.notify, w.cfg.MaxAttempts)
	start := time.Now()
	h, ok := w.registry.Get(job.JobType)
	if !ok {
		w.log.Warn("No handler registered for job_type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Abort("dispatch", &missingHandlerError{JobType: job.JobType})
		observability.Current().ObserveJob(job.JobType, "unhandled", 0)
		return true
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Job handler panic", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "panic", r)
				jc.Fail("panic", fmt.Errorf("panic: %v", r))
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// Handlers normally settle the row themselves.
			jc.Fail("run", runErr)
		}
	}()

	observability.Current().ObserveJob(job.JobType, jc.Job.Status, time.Since(start))
	w.log.Info("Job finished",
		"worker_id", workerID,
		"job_id", job.ID,
		"job_type", job.JobType,
		"status", jc.Job.Status,
		"attempt", job.Attempts,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return true
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string {
	return "no handler registered for job_type=" + e.JobType
}

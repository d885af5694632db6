package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/db"
	httpapi "github.com/yungbote/coursebuilder-backend/internal/http"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/pipeline/course_generate"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/runtime"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/scheduler"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/worker"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/realtime/bus"
)

type App struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Cfg       Config
	Repos     Repos
	Clients   Clients
	Services  Services
	Server    *httpapi.Server
	Worker    *worker.Worker
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

// New loads config and wires every component. Nothing runs until Start.
func New(ctx context.Context, log *logger.Logger) (*App, error) {
	log.Info("Loading configuration...")
	cfg, err := LoadConfig(log)
	if err != nil {
		return nil, err
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)
	metrics := observability.Init(log, cfg.Metrics)

	pg, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		clients.Close(log)
		_ = pg.Close()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients)

	registry := runtime.NewRegistry()
	if err := registry.Register(course_generate.New(log, serviceset.Pipeline)); err != nil {
		clients.Close(log)
		_ = pg.Close()
		return nil, fmt.Errorf("register job handlers: %w", err)
	}
	jobWorker := worker.NewWorker(log, cfg.Worker, reposet.JobRun, registry, serviceset.JobNotifier)
	sched := scheduler.New(log, cfg.Scheduler, serviceset.Pipeline, serviceset.Uploads)

	handlers := wireHandlers(theDB, log, cfg, serviceset)
	server := httpapi.NewServer(httpapi.RouterConfig{
		Log:               log,
		ServiceName:       otelServiceName(cfg),
		CORSOrigins:       cfg.CORSOrigins,
		Metrics:           metrics,
		AuthMiddleware:    wireMiddleware(log, cfg, clients, serviceset),
		HealthHandler:     handlers.Health,
		WebhookHandler:    handlers.Webhook,
		UserHandler:       handlers.User,
		CheckoutHandler:   handlers.Checkout,
		UploadHandler:     handlers.Upload,
		GenerationHandler: handlers.Generation,
		TreeHandler:       handlers.Tree,
		ProgressHandler:   handlers.Progress,
		JobHandler:        handlers.Job,
	})

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		Worker:       jobWorker,
		Scheduler:    sched,
		Metrics:      metrics,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

func otelServiceName(cfg Config) string {
	if !cfg.Otel.Enabled {
		return ""
	}
	return cfg.Otel.ServiceName
}

// Start launches the worker pool, the cron sweeps and the metrics collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Metrics != nil {
		a.Metrics.StartServer(ctx, a.Log, a.Cfg.Metrics.Addr)
		a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.Metrics.StartJobQueueCollector(ctx, a.Log, a.Repos.JobRun)
		if rdb := bus.Client(a.Clients.Bus); rdb != nil {
			a.Metrics.StartRedisCollector(ctx, a.Log, rdb)
		}
	}

	a.Worker.Start(ctx)
	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Run serves HTTP until Shutdown.
func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Shutdown drains HTTP, stops background work and releases clients.
func (a *App) Shutdown(ctx context.Context) {
	if a == nil {
		return
	}
	if err := a.Server.Shutdown(ctx); err != nil {
		a.Log.Warn("http shutdown", "error", err)
	}
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Worker != nil {
		done := make(chan struct{})
		go func() {
			a.Worker.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			a.Log.Warn("worker drain timed out; running jobs resume after the stale window")
		}
	}
	a.Clients.Close(a.Log)
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.Log.Warn("close postgres", "error", err)
		}
	}
	if a.otelShutdown != nil {
		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(octx)
	}
	a.Log.Sync()
}

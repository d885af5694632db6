package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type MetricsConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Addr           string        `yaml:"addr"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *GaugeVec

	llmRequests *CounterVec
	llmLatency  *HistogramVec
	llmTokens   *CounterVec

	generations       *CounterVec
	generationLatency *HistogramVec
	stageLatency      *HistogramVec
	lessonBatches     *CounterVec

	publishes       *CounterVec
	publishEntities *CounterVec

	ledgerCharges *CounterVec
	overageCents  *CounterVec
	webhookEvents *CounterVec

	jobRuns     *CounterVec
	jobLatency  *HistogramVec
	queueDepth  *GaugeVec
	cronRuns    *CounterVec
	pgStats     *GaugeVec
	redisUp     *GaugeVec
	redisPing   *GaugeVec
	collectors  []collector
	scrapeEvery time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil when metrics are off.
// Every Observe method is nil-safe.
func Current() *Metrics {
	return instance
}

// Init installs the process-wide registry once.
func Init(log *logger.Logger, cfg MetricsConfig) *Metrics {
	initOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		instance = New(cfg.ScrapeInterval)
		if log != nil {
			log.Info("metrics enabled", "addr", cfg.Addr)
		}
	})
	return instance
}

// New builds a standalone registry.
func New(scrapeEvery time.Duration) *Metrics {
	if scrapeEvery <= 0 {
		scrapeEvery = 15 * time.Second
	}
	llmBuckets := []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300}
	genBuckets := []float64{5, 15, 30, 60, 120, 180, 300, 600, 1200}
	m := &Metrics{
		apiRequests: NewCounterVec("coursebuilder_api_requests_total", "HTTP requests by route and status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("coursebuilder_api_request_duration_seconds", "HTTP request latency.", []string{"method", "route", "status"}, nil),
		apiInflight: NewGaugeVec("coursebuilder_api_inflight_requests", "HTTP requests currently being served.", nil),

		llmRequests: NewCounterVec("coursebuilder_llm_requests_total", "LLM calls by model, endpoint and status.", []string{"model", "endpoint", "status"}),
		llmLatency:  NewHistogramVec("coursebuilder_llm_request_duration_seconds", "LLM call latency.", []string{"model", "endpoint", "status"}, llmBuckets),
		llmTokens:   NewCounterVec("coursebuilder_llm_tokens_total", "LLM tokens by direction.", []string{"model", "direction"}),

		generations:       NewCounterVec("coursebuilder_generations_total", "Finished generations by outcome.", []string{"outcome"}),
		generationLatency: NewHistogramVec("coursebuilder_generation_duration_seconds", "End to end generation latency.", []string{"outcome"}, genBuckets),
		stageLatency:      NewHistogramVec("coursebuilder_generation_stage_duration_seconds", "Generation pipeline stage latency.", []string{"stage", "status"}, llmBuckets),
		lessonBatches:     NewCounterVec("coursebuilder_lesson_batches_total", "Lesson content batches by status.", []string{"status"}),

		publishes:       NewCounterVec("coursebuilder_publish_total", "Publish attempts by mode and outcome.", []string{"mode", "outcome"}),
		publishEntities: NewCounterVec("coursebuilder_publish_entities_total", "Remote entities created during publish.", []string{"kind"}),

		ledgerCharges: NewCounterVec("coursebuilder_ledger_charges_total", "Generations charged by classification.", []string{"generation_type", "source"}),
		overageCents:  NewCounterVec("coursebuilder_overage_cents_total", "Overage amount recorded in cents.", nil),
		webhookEvents: NewCounterVec("coursebuilder_webhook_events_total", "Inbound webhook events by action and status.", []string{"action", "status"}),

		jobRuns:    NewCounterVec("coursebuilder_job_runs_total", "Job runs by type and status.", []string{"job_type", "status"}),
		jobLatency: NewHistogramVec("coursebuilder_job_duration_seconds", "Job run latency.", []string{"job_type", "status"}, genBuckets),
		queueDepth: NewGaugeVec("coursebuilder_job_queue_depth", "Job rows by status.", []string{"status"}),
		cronRuns:   NewCounterVec("coursebuilder_cron_runs_total", "Scheduled task runs by task and status.", []string{"task", "status"}),
		pgStats:    NewGaugeVec("coursebuilder_postgres_pool", "database/sql pool statistics.", []string{"stat"}),
		redisUp:    NewGaugeVec("coursebuilder_redis_up", "1 when the last redis ping succeeded.", nil),
		redisPing:  NewGaugeVec("coursebuilder_redis_ping_seconds", "Last redis ping latency.", nil),

		scrapeEvery: scrapeEvery,
	}
	m.collectors = []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.generations, m.generationLatency, m.stageLatency, m.lessonBatches,
		m.publishes, m.publishEntities,
		m.ledgerCharges, m.overageCents, m.webhookEvents,
		m.jobRuns, m.jobLatency, m.queueDepth, m.cronRuns,
		m.pgStats, m.redisUp, m.redisPing,
	}
	return m
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", m.WriteHTTP)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveLLMRequest records one completed provider call. endpoint is a short
// provider-qualified name like "openai.responses".
func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = strings.TrimSpace(model)
	status = strings.TrimSpace(status)
	if status == "" {
		status = "0"
	}
	m.llmRequests.Inc(model, endpoint, status)
	if dur > 0 {
		m.llmLatency.Observe(dur.Seconds(), model, endpoint, status)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(float64(inputTokens), model, "input")
	}
	if outputTokens > 0 {
		m.llmTokens.Add(float64(outputTokens), model, "output")
	}
}

// ObserveGeneration records a generation reaching a terminal outcome.
func (m *Metrics) ObserveGeneration(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generations.Inc(outcome)
	if dur > 0 {
		m.generationLatency.Observe(dur.Seconds(), outcome)
	}
}

func (m *Metrics) ObserveGenerationStage(stage, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.stageLatency.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) IncLessonBatch(status string) {
	if m == nil {
		return
	}
	m.lessonBatches.Inc(status)
}

func (m *Metrics) ObservePublish(mode, outcome string, courses, chapters, lessons int) {
	if m == nil {
		return
	}
	m.publishes.Inc(mode, outcome)
	m.publishEntities.Add(float64(courses), "course")
	m.publishEntities.Add(float64(chapters), "chapter")
	m.publishEntities.Add(float64(lessons), "lesson")
}

// ObserveCharge records one ledger charge. source is "plan", "credit" or
// "overage".
func (m *Metrics) ObserveCharge(generationType, source string, overageCents int64) {
	if m == nil {
		return
	}
	m.ledgerCharges.Inc(generationType, source)
	if overageCents > 0 {
		m.overageCents.Add(float64(overageCents))
	}
}

func (m *Metrics) IncWebhookEvent(action, status string) {
	if m == nil {
		return
	}
	m.webhookEvents.Inc(action, status)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.Inc(jobType, status)
	if dur > 0 {
		m.jobLatency.Observe(dur.Seconds(), jobType, status)
	}
}

func (m *Metrics) IncCronRun(task, status string) {
	if m == nil {
		return
	}
	m.cronRuns.Inc(task, status)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go m.every(ctx, func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	go m.every(ctx, func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// QueueCounter reports job rows per status.
type QueueCounter interface {
	CountByStatus(dbc dbctx.Context, jobType string) (map[string]int64, error)
}

func (m *Metrics) StartJobQueueCollector(ctx context.Context, log *logger.Logger, counter QueueCounter) {
	if m == nil || counter == nil {
		return
	}
	statuses := []string{"queued", "running", "succeeded", "failed", "canceled"}
	go m.every(ctx, func() {
		counts, err := counter.CountByStatus(dbctx.Context{Ctx: ctx}, "")
		if err != nil {
			if log != nil {
				log.Warn("metrics: job queue depth query failed", "error", err)
			}
			return
		}
		for _, s := range statuses {
			m.queueDepth.Set(float64(counts[s]), s)
		}
	})
}

func (m *Metrics) every(ctx context.Context, fn func()) {
	ticker := time.NewTicker(m.scrapeEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

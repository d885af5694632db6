package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/coursebuilder-backend/internal/data/db"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/scheduler"
	"github.com/yungbote/coursebuilder-backend/internal/jobs/worker"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/anthropic"
	"github.com/yungbote/coursebuilder-backend/internal/platform/envutil"
	"github.com/yungbote/coursebuilder-backend/internal/platform/gcp"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/openai"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/realtime/bus"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type LLMConfig struct {
	Provider  string           `yaml:"provider" validate:"oneof=openai anthropic"`
	OpenAI    openai.Config    `yaml:"openai" validate:"-"`
	Anthropic anthropic.Config `yaml:"anthropic" validate:"-"`
}

type WhopConfig struct {
	Client  whop.ClientConfig      `yaml:"client"`
	Auth    whop.AuthConfig        `yaml:"auth"`
	Webhook services.WebhookConfig `yaml:"webhook"`
	Publish services.PublishConfig `yaml:"publish"`
}

type GCPConfig struct {
	Storage gcp.ObjectStorageConfig `yaml:"storage" validate:"-"`
	// DocumentAI is optional; without a processor id scanned PDFs fail extraction.
	DocumentAI gcp.DocumentAIConfig `yaml:"document_ai"`
}

// Config is built once at startup and handed to every component by value.
type Config struct {
	Env         string   `yaml:"env" validate:"oneof=development staging production test"`
	LogMode     string   `yaml:"log_mode"`
	Port        string   `yaml:"port" validate:"required,numeric"`
	CORSOrigins []string `yaml:"cors_origins"`

	DB        db.Config                   `yaml:"db"`
	Otel      observability.OtelConfig    `yaml:"otel"`
	Metrics   observability.MetricsConfig `yaml:"metrics"`
	Redis     bus.RedisConfig             `yaml:"redis"`
	LLM       LLMConfig                   `yaml:"llm"`
	GCP       GCPConfig                   `yaml:"gcp"`
	Whop      WhopConfig                  `yaml:"whop"`
	Billing   services.BillingConfig      `yaml:"billing"`
	Pipeline  services.PipelineConfig     `yaml:"pipeline"`
	Upload    services.UploadConfig       `yaml:"upload"`
	Worker    worker.Config               `yaml:"worker"`
	Scheduler scheduler.Config            `yaml:"scheduler"`
}

func defaultConfig() Config {
	return Config{
		Env:     EnvDevelopment,
		LogMode: EnvDevelopment,
		Port:    "8080",
		DB: db.Config{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			Name:            "coursebuilder",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Otel: observability.OtelConfig{
			ServiceName: "coursebuilder-backend",
			SampleRatio: 1,
		},
		Metrics: observability.MetricsConfig{Addr: ":9090", ScrapeInterval: 15 * time.Second},
		LLM: LLMConfig{
			Provider:  llm.ProviderOpenAI,
			OpenAI:    openai.Config{Model: "gpt-4o", Timeout: 10 * time.Minute, MaxRetries: 4},
			Anthropic: anthropic.Config{Model: "claude-sonnet-4-5", Timeout: 10 * time.Minute, MaxRetries: 4},
		},
		GCP: GCPConfig{DocumentAI: gcp.DocumentAIConfig{Location: "us"}},
		Whop: WhopConfig{
			Client:  whop.ClientConfig{Timeout: 30 * time.Second, MaxRetries: 4, RatePerSecond: 8, Burst: 8},
			Auth:    whop.AuthConfig{Leeway: 30 * time.Second},
			Webhook: services.WebhookConfig{Tolerance: whop.DefaultSignatureTolerance},
			Publish: services.PublishConfig{ContentFormat: services.ContentMarkdown, ProductTitle: services.DefaultProductTitle},
		},
		Billing:   services.DefaultBillingConfig(),
		Pipeline:  services.DefaultPipelineConfig(),
		Upload:    services.DefaultUploadConfig(),
		Worker:    worker.DefaultConfig(),
		Scheduler: scheduler.DefaultConfig(),
	}
}

// LoadConfig layers defaults, the optional CONFIG_FILE YAML and the
// environment (highest precedence), then validates the result.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := envutil.String("CONFIG_FILE", ""); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config overlay", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = strings.ToLower(envutil.String("APP_ENV", cfg.Env))
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Port = envutil.String("PORT", cfg.Port)
	if raw := envutil.String("CORS_ORIGINS", ""); raw != "" {
		cfg.CORSOrigins = splitList(raw)
	}

	cfg.DB.DSN = envutil.String("DATABASE_URL", cfg.DB.DSN)
	cfg.DB.Host = envutil.String("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envutil.String("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envutil.String("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Password = envutil.String("POSTGRES_PASSWORD", cfg.DB.Password)
	cfg.DB.Name = envutil.String("POSTGRES_NAME", cfg.DB.Name)
	cfg.DB.SSLMode = envutil.String("POSTGRES_SSLMODE", cfg.DB.SSLMode)
	cfg.DB.MaxOpenConns = envutil.Int("POSTGRES_MAX_OPEN_CONNS", cfg.DB.MaxOpenConns)

	cfg.Otel.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Otel.Enabled)
	cfg.Otel.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Otel.ServiceName)
	cfg.Otel.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Otel.Endpoint)
	cfg.Otel.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Otel.Insecure)
	cfg.Otel.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Otel.SampleRatio)
	cfg.Otel.Version = envutil.String("APP_VERSION", cfg.Otel.Version)
	cfg.Otel.Environment = cfg.Env

	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel)

	cfg.LLM.Provider = strings.ToLower(envutil.String("LLM_PROVIDER", cfg.LLM.Provider))
	cfg.LLM.OpenAI.APIKey = envutil.String("OPENAI_API_KEY", cfg.LLM.OpenAI.APIKey)
	cfg.LLM.OpenAI.BaseURL = envutil.String("OPENAI_BASE_URL", cfg.LLM.OpenAI.BaseURL)
	cfg.LLM.OpenAI.Model = envutil.String("OPENAI_MODEL", cfg.LLM.OpenAI.Model)
	cfg.LLM.OpenAI.MaxRetries = envutil.Int("OPENAI_MAX_RETRIES", cfg.LLM.OpenAI.MaxRetries)
	cfg.LLM.Anthropic.APIKey = envutil.String("ANTHROPIC_API_KEY", cfg.LLM.Anthropic.APIKey)
	cfg.LLM.Anthropic.BaseURL = envutil.String("ANTHROPIC_BASE_URL", cfg.LLM.Anthropic.BaseURL)
	cfg.LLM.Anthropic.Model = envutil.String("ANTHROPIC_MODEL", cfg.LLM.Anthropic.Model)

	storage := gcp.ObjectStorageConfigFromEnv()
	if cfg.GCP.Storage.Bucket != "" && storage.Bucket == "" {
		storage.Bucket = cfg.GCP.Storage.Bucket
	}
	cfg.GCP.Storage = storage
	cfg.GCP.DocumentAI.ProjectID = envutil.String("DOCUMENTAI_PROJECT_ID", cfg.GCP.DocumentAI.ProjectID)
	cfg.GCP.DocumentAI.Location = envutil.String("DOCUMENTAI_LOCATION", cfg.GCP.DocumentAI.Location)
	cfg.GCP.DocumentAI.ProcessorID = envutil.String("DOCUMENTAI_PROCESSOR_ID", cfg.GCP.DocumentAI.ProcessorID)
	cfg.GCP.DocumentAI.Credentials = storage.Credentials

	cfg.Whop.Client.APIKey = envutil.String("WHOP_API_KEY", cfg.Whop.Client.APIKey)
	cfg.Whop.Client.BaseURL = envutil.String("WHOP_API_BASE_URL", cfg.Whop.Client.BaseURL)
	cfg.Whop.Auth.PublicKeyPEM = envutil.String("WHOP_JWT_PUBLIC_KEY", cfg.Whop.Auth.PublicKeyPEM)
	cfg.Whop.Webhook.Secret = envutil.String("WHOP_WEBHOOK_SECRET", cfg.Whop.Webhook.Secret)
	cfg.Whop.Publish.AppID = envutil.String("WHOP_APP_ID", cfg.Whop.Publish.AppID)
	cfg.Whop.Publish.CompanyID = envutil.String("WHOP_COMPANY_ID", cfg.Whop.Publish.CompanyID)
	cfg.Whop.Publish.ContentFormat = envutil.String("WHOP_CONTENT_FORMAT", cfg.Whop.Publish.ContentFormat)
	cfg.Whop.Publish.ProductTitle = envutil.String("WHOP_PRODUCT_TITLE", cfg.Whop.Publish.ProductTitle)
	cfg.Whop.Auth.Audience = envutil.String("WHOP_TOKEN_AUDIENCE", firstSet(cfg.Whop.Auth.Audience, cfg.Whop.Publish.AppID))
	cfg.Whop.Auth.DevUserID = ""
	if cfg.Env == EnvDevelopment {
		cfg.Whop.Auth.DevUserID = envutil.String("DEV_WHOP_USER_ID", "")
	}

	cfg.Billing.OverageCents = envutil.Int64("BILLING_OVERAGE_CENTS", cfg.Billing.OverageCents)
	cfg.Billing.GrowthPriceCents = envutil.Int64("BILLING_GROWTH_PRICE_CENTS", cfg.Billing.GrowthPriceCents)

	cfg.Pipeline.StaleAfter = envutil.Duration("PIPELINE_STALE_AFTER", cfg.Pipeline.StaleAfter)
	cfg.Pipeline.Generator.BatchSize = envutil.Int("PIPELINE_BATCH_SIZE", cfg.Pipeline.Generator.BatchSize)
	cfg.Pipeline.Generator.Parallelism = envutil.Int("PIPELINE_PARALLELISM", cfg.Pipeline.Generator.Parallelism)

	cfg.Upload.MaxBytes = envutil.Int64("UPLOAD_MAX_BYTES", cfg.Upload.MaxBytes)
	cfg.Upload.Expiry = envutil.Duration("UPLOAD_EXPIRY", cfg.Upload.Expiry)
	cfg.Upload.DeleteExpiredBlobs = envutil.Bool("UPLOAD_DELETE_EXPIRED_BLOBS", cfg.Upload.DeleteExpiredBlobs)

	cfg.Worker.Concurrency = envutil.Int("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Scheduler.WatchdogSpec = envutil.String("SCHEDULER_WATCHDOG_SPEC", cfg.Scheduler.WatchdogSpec)
	cfg.Scheduler.UploadExpirySpec = envutil.String("SCHEDULER_UPLOAD_EXPIRY_SPEC", cfg.Scheduler.UploadExpirySpec)
}

// Validate checks struct tags, then the provider block LLM_PROVIDER selects
// and the storage mode.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var provider any = c.LLM.OpenAI
	if c.LLM.Provider == llm.ProviderAnthropic {
		provider = c.LLM.Anthropic
	}
	if err := v.Struct(provider); err != nil {
		return fmt.Errorf("invalid config for llm provider %s: %w", c.LLM.Provider, err)
	}
	if err := c.GCP.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Env == EnvProduction && c.Whop.Auth.PublicKeyPEM == "" {
		return fmt.Errorf("invalid config: WHOP_JWT_PUBLIC_KEY required in production")
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WHOP_API_KEY", "whop_test")
	t.Setenv("WHOP_WEBHOOK_SECRET", "whsec_test")
	t.Setenv("WHOP_APP_ID", "app_test")
	t.Setenv("UPLOAD_GCS_BUCKET", "uploads-test")
	t.Setenv("OBJECT_STORAGE_MODE", "gcs")
	for _, k := range []string{"PORT", "STORAGE_EMULATOR_HOST", "ANTHROPIC_API_KEY", "LLM_PROVIDER", "PIPELINE_BATCH_SIZE", "DEV_WHOP_USER_ID"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "openai", cfg.LLM.Provider)
	require.Equal(t, 10, cfg.Pipeline.Generator.BatchSize)
	require.Equal(t, 45*time.Minute, cfg.Pipeline.StaleAfter)
	require.Equal(t, "app_test", cfg.Whop.Auth.Audience)
	require.Equal(t, "markdown", cfg.Whop.Publish.ContentFormat)
	require.Empty(t, cfg.Whop.Auth.DevUserID)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing whop key":   {"WHOP_API_KEY": ""},
		"unknown provider":   {"LLM_PROVIDER": "bard"},
		"batch too large":    {"PIPELINE_BATCH_SIZE": "11"},
		"anthropic no key":   {"LLM_PROVIDER": "anthropic"},
		"bad content format": {"WHOP_CONTENT_FORMAT": "pdf"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(nil)
			require.Error(t, err)
		})
	}
}

func TestLoadConfigYAMLOverlayAndEnvPrecedence(t *testing.T) {
	setRequiredEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
billing:
  overage_cents: 250
pipeline:
  stale_after: 30m
  generator:
    batch_size: 5
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PIPELINE_BATCH_SIZE", "7")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, int64(250), cfg.Billing.OverageCents)
	require.Equal(t, 30*time.Minute, cfg.Pipeline.StaleAfter)
	require.Equal(t, 7, cfg.Pipeline.Generator.BatchSize)
	// Unset keys keep their defaults.
	require.Equal(t, 3, cfg.Pipeline.Generator.Parallelism)
}

func TestDevUserOnlyInDevelopment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DEV_WHOP_USER_ID", "user_dev")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	require.Empty(t, cfg.Whop.Auth.DevUserID)

	t.Setenv("APP_ENV", "development")
	cfg, err = LoadConfig(nil)
	require.NoError(t, err)
	require.Equal(t, "user_dev", cfg.Whop.Auth.DevUserID)
}

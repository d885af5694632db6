package gcp

import (
	"errors"
	"testing"
)

func TestObjectStorageConfigFromEnvDefaultsToGCS(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("UPLOAD_GCS_BUCKET", "uploads")

	cfg := ObjectStorageConfigFromEnv()
	if cfg.Mode != ObjectStorageModeGCS || cfg.ModeInferred {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestObjectStorageConfigFromEnvInfersEmulator(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443/")
	t.Setenv("UPLOAD_GCS_BUCKET", "uploads")

	cfg := ObjectStorageConfigFromEnv()
	if !cfg.IsEmulatorMode() || !cfg.ModeInferred {
		t.Fatalf("expected inferred emulator mode: %+v", cfg)
	}
	if cfg.EmulatorHost != "http://fake-gcs:4443" {
		t.Fatalf("emulator host not trimmed: %q", cfg.EmulatorHost)
	}
}

func TestObjectStorageConfigExplicitGCSIgnoresEmulatorHost(t *testing.T) {
	t.Setenv("OBJECT_STORAGE_MODE", "GCS")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	cfg := ObjectStorageConfigFromEnv()
	if cfg.Mode != ObjectStorageModeGCS || cfg.ModeInferred {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestObjectStorageConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  ObjectStorageConfig
		code ObjectStorageConfigErrorCode
	}{
		{"invalid mode", ObjectStorageConfig{Mode: "local", Bucket: "b"}, ObjectStorageConfigErrorInvalidMode},
		{"missing bucket", ObjectStorageConfig{Mode: ObjectStorageModeGCS}, ObjectStorageConfigErrorMissingBucket},
		{"missing emulator host", ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "b"}, ObjectStorageConfigErrorMissingEmulatorHost},
		{"relative emulator host", ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, Bucket: "b", EmulatorHost: "fake-gcs:4443"}, ObjectStorageConfigErrorInvalidURL},
		{"relative public base", ObjectStorageConfig{Mode: ObjectStorageModeGCS, Bucket: "b", PublicBaseURL: "localhost"}, ObjectStorageConfigErrorInvalidURL},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			var cfgErr *ObjectStorageConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
				t.Fatalf("want code %q, got %v", tc.code, err)
			}
		})
	}
}

func TestCredentialsClientOptions(t *testing.T) {
	if opts := (Credentials{}).ClientOptions(); opts != nil {
		t.Fatalf("expected ADC (nil options), got %d", len(opts))
	}
	if opts := (Credentials{JSON: `{"type":"service_account"}`}).ClientOptions(); len(opts) != 1 {
		t.Fatalf("expected one option for inline JSON")
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/sa.json")
	if c := CredentialsFromEnv(); c.File != "/etc/sa.json" || c.JSON != "" {
		t.Fatalf("unexpected creds: %+v", c)
	}
}

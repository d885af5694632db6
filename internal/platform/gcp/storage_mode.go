package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/coursebuilder-backend/internal/platform/envutil"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

// ObjectStorageConfig describes where uploaded PDFs live.
type ObjectStorageConfig struct {
	Mode          ObjectStorageMode `yaml:"mode"`
	EmulatorHost  string            `yaml:"emulator_host"`
	Bucket        string            `yaml:"bucket"`
	CDNDomain     string            `yaml:"cdn_domain"`
	PublicBaseURL string            `yaml:"public_base_url"`
	Credentials   Credentials       `yaml:"-"`
	// ModeInferred is set when the mode was not configured and STORAGE_EMULATOR_HOST
	// selected the emulator.
	ModeInferred bool `yaml:"-"`
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

type ObjectStorageConfigErrorCode string

const (
	ObjectStorageConfigErrorInvalidMode         ObjectStorageConfigErrorCode = "invalid_mode"
	ObjectStorageConfigErrorMissingBucket       ObjectStorageConfigErrorCode = "missing_bucket"
	ObjectStorageConfigErrorMissingEmulatorHost ObjectStorageConfigErrorCode = "missing_emulator_host"
	ObjectStorageConfigErrorInvalidURL          ObjectStorageConfigErrorCode = "invalid_url"
)

type ObjectStorageConfigError struct {
	Code  ObjectStorageConfigErrorCode
	Value string
	Cause error
}

func (e *ObjectStorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Code {
	case ObjectStorageConfigErrorInvalidMode:
		return fmt.Sprintf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q)", e.Value, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorMissingBucket:
		return "UPLOAD_GCS_BUCKET is required"
	case ObjectStorageConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("OBJECT_STORAGE_MODE=%q requires STORAGE_EMULATOR_HOST", ObjectStorageModeGCSEmulator)
	case ObjectStorageConfigErrorInvalidURL:
		return fmt.Sprintf("invalid storage URL %q; expected absolute URL like http://fake-gcs:4443", e.Value)
	default:
		return "invalid object storage config"
	}
}

func (e *ObjectStorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func ObjectStorageConfigFromEnv() ObjectStorageConfig {
	cfg := ObjectStorageConfig{
		Mode:          ObjectStorageMode(strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", ""))),
		EmulatorHost:  strings.TrimRight(envutil.String("STORAGE_EMULATOR_HOST", ""), "/"),
		Bucket:        envutil.String("UPLOAD_GCS_BUCKET", ""),
		CDNDomain:     envutil.String("UPLOAD_CDN_DOMAIN", ""),
		PublicBaseURL: strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
		Credentials:   CredentialsFromEnv(),
	}
	if cfg.Mode == "" {
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.ModeInferred = true
		}
	}
	return cfg
}

func (cfg ObjectStorageConfig) Validate() error {
	switch cfg.Mode {
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
	default:
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidMode, Value: string(cfg.Mode)}
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingBucket}
	}
	if cfg.PublicBaseURL != "" {
		if err := checkAbsoluteURL(cfg.PublicBaseURL); err != nil {
			return err
		}
	}
	if !cfg.IsEmulatorMode() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorMissingEmulatorHost}
	}
	return checkAbsoluteURL(cfg.EmulatorHost)
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ObjectStorageConfigError{Code: ObjectStorageConfigErrorInvalidURL, Value: raw, Cause: err}
	}
	return nil
}

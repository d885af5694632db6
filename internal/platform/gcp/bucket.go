package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// BlobStore is the object storage the upload flow writes source PDFs to.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	Close() error
}

type bucketService struct {
	log           *logger.Logger
	client        *storage.Client
	cfg           ObjectStorageConfig
	httpClient    *http.Client
	publicBaseURL string
}

func NewBucketService(ctx context.Context, log *logger.Logger, cfg ObjectStorageConfig) (BlobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	publicBase := cfg.PublicBaseURL
	if publicBase == "" && cfg.IsEmulatorMode() {
		publicBase = cfg.EmulatorHost
	}
	bs := &bucketService{
		log:           log.With("service", "BucketService"),
		client:        client,
		cfg:           cfg,
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		publicBaseURL: publicBase,
	}
	bs.log.Info("Object storage initialized",
		"mode", cfg.Mode,
		"mode_inferred", cfg.ModeInferred,
		"bucket", cfg.Bucket,
		"public_base_url", publicBase,
	)
	return bs, nil
}

func newStorageClient(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	if cfg.IsEmulatorMode() {
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := append(cfg.Credentials.ClientOptions(), option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func (bs *bucketService) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	w := bs.client.Bucket(bs.cfg.Bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %q: %w", key, err)
	}
	return nil
}

// readCloserWithCancel ties the download context to the reader's lifetime.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (bs *bucketService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	if bs.cfg.IsEmulatorMode() {
		rc, err := bs.emulatorDownload(ctx2, key)
		if err != nil {
			cancel()
			return nil, err
		}
		return &readCloserWithCancel{ReadCloser: rc, cancel: cancel}, nil
	}
	r, err := bs.client.Bucket(bs.cfg.Bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// Emulator reads use its JSON media endpoint directly.
func (bs *bucketService) emulatorDownload(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, emulatorMediaURL(bs.cfg.EmulatorHost, bs.cfg.Bucket, key), nil)
	if err != nil {
		return nil, fmt.Errorf("build emulator download request: %w", err)
	}
	resp, err := bs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("emulator download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("emulator download failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.Body, nil
}

func (bs *bucketService) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := bs.client.Bucket(bs.cfg.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

func (bs *bucketService) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case bs.cfg.CDNDomain != "":
		return fmt.Sprintf("https://%s/%s", bs.cfg.CDNDomain, key)
	case bs.cfg.IsEmulatorMode() && bs.publicBaseURL != "":
		return emulatorMediaURL(bs.publicBaseURL, bs.cfg.Bucket, key)
	case bs.publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", bs.publicBaseURL, bs.cfg.Bucket, key)
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.cfg.Bucket, key)
	}
}

func (bs *bucketService) Close() error {
	if bs == nil || bs.client == nil {
		return nil
	}
	return bs.client.Close()
}

func emulatorMediaURL(base, bucket, key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		strings.TrimRight(base, "/"),
		url.PathEscape(bucket),
		url.PathEscape(key),
	)
}

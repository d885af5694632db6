// Package whop is a thin REST client for the Whop v1 API plus the helpers
// that authenticate inbound Whop traffic (user tokens and webhooks).
package whop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/coursebuilder-backend/internal/pkg/httpx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

const DefaultBaseURL = "https://api.whop.com/api/v1"

type ClientConfig struct {
	APIKey        string        `yaml:"-" validate:"required"`
	BaseURL       string        `yaml:"base_url" validate:"omitempty,url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries" validate:"gte=0,lte=10"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gte=0"`
	Burst         int           `yaml:"burst" validate:"gte=0"`
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

func NewClient(log *logger.Logger, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing WHOP_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps, burst := cfg.RatePerSecond, cfg.Burst
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		log:        log.With("service", "WhopClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: cfg.MaxRetries,
	}, nil
}

// APIError is a non-2xx response from Whop.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	var parsed struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &parsed) == nil {
		if parsed.Error.Message != "" {
			msg = parsed.Error.Message
		} else if parsed.Message != "" {
			msg = parsed.Message
		}
	}
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return fmt.Sprintf("whop %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

func (e *APIError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// post sends a JSON body. idempotencyKey, when set, is forwarded so Whop can
// collapse retried creates and so responses can be correlated to local nodes.
func (c *Client) post(ctx context.Context, path, idempotencyKey string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("whop rate limiter: %w", err)
		}
		resp, raw, err := c.doOnce(ctx, http.MethodPost, path, idempotencyKey, payload)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("decode %s: %w", path, uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, httpx.Backoff(attempt, 500*time.Millisecond, 8*time.Second), 30*time.Second))
		c.log.Warn("Whop request retrying", "path", path, "attempt", attempt+1, "sleep", sleepFor.String(), "error", err.Error())
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path, idempotencyKey string, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	_ = resp.Body.Close()
	c.log.Debug("whop request", "method", method, "path", path, "status", strconv.Itoa(resp.StatusCode), "duration_ms", time.Since(start).Milliseconds())
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Body: string(raw)}
	}
	return resp, raw, nil
}

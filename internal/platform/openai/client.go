package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/httpx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

const responsesPath = "/v1/responses"

type Config struct {
	APIKey     string        `yaml:"-" validate:"required"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model" validate:"required"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
}

type Client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int

	// Models that rejected the temperature parameter; it is omitted thereafter.
	noTempMu sync.RWMutex
	noTemp   map[string]bool
}

var _ llm.Client = (*Client)(nil)

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		noTemp:     map[string]bool{},
	}, nil
}

func (c *Client) Provider() string { return llm.ProviderOpenAI }

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
}

type responsesResponse struct {
	Model  string `json:"model"`
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r responsesResponse) outputText() (string, string) {
	var out strings.Builder
	refusal := ""
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "output_text":
				out.WriteString(part.Text)
			case "refusal":
				refusal = part.Refusal
			}
		}
	}
	return out.String(), refusal
}

// Complete sends one Responses API call. JSON requests with a schema use
// strict json_schema output; without a schema they use json_object mode.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	body := &responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxOutputTokens: req.MaxTokens,
	}
	if req.Temperature != nil && !c.isNoTemp(c.model) {
		t := *req.Temperature
		body.Temperature = &t
	}
	if req.JSON {
		if req.Schema != nil {
			name := req.SchemaName
			if name == "" {
				name = "response"
			}
			body.Text.Format = map[string]any{
				"type":   "json_schema",
				"name":   name,
				"schema": req.Schema,
				"strict": true,
			}
		} else {
			body.Text.Format = map[string]any{"type": "json_object"}
		}
	}

	var resp responsesResponse
	err := c.post(ctx, body, &resp)
	if err != nil && body.Temperature != nil && isUnsupportedTemperature(err) {
		c.markNoTemp(c.model)
		body.Temperature = nil
		err = c.post(ctx, body, &resp)
	}
	if err != nil {
		return llm.Response{}, err
	}

	text, refusal := resp.outputText()
	if refusal != "" {
		return llm.Response{}, fmt.Errorf("model refused: %s", refusal)
	}
	if strings.TrimSpace(text) == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	model := resp.Model
	if model == "" {
		model = c.model
	}
	return llm.Response{
		Text:         text,
		Model:        model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *Client) doOnce(ctx context.Context, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+responsesPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *Client) post(ctx context.Context, body *responsesRequest, out *responsesResponse) error {
	start := time.Now()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, raw, err := c.doOnce(ctx, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				c.observe(body.Model, "decode_error", start, 0, 0)
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			c.observe(body.Model, statusOf(resp, nil), start, out.Usage.InputTokens, out.Usage.OutputTokens)
			return nil
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			c.observe(body.Model, statusOf(resp, err), start, 0, 0)
			return err
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, httpx.Backoff(attempt, time.Second, 10*time.Second), 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
	}
}

func (c *Client) observe(model, status string, start time.Time, in, out int) {
	observability.Current().ObserveLLMRequest(model, "openai.responses", status, time.Since(start), in, out)
}

func (c *Client) isNoTemp(model string) bool {
	c.noTempMu.RLock()
	defer c.noTempMu.RUnlock()
	return c.noTemp[model]
}

func (c *Client) markNoTemp(model string) {
	c.noTempMu.Lock()
	c.noTemp[model] = true
	c.noTempMu.Unlock()
	c.log.Warn("model rejected temperature; omitting it from now on", "model", model)
}

func isUnsupportedTemperature(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadRequest {
		return false
	}
	msg := strings.ToLower(httpErr.Body)
	if !strings.Contains(msg, "temperature") {
		return false
	}
	for _, frag := range []string{"unsupported", "not supported", "does not support", "unknown parameter", "only the default"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

func statusOf(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// Package anthropic adapts the Anthropic Messages API to llm.Client.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type Config struct {
	APIKey     string        `yaml:"-" validate:"required"`
	BaseURL    string        `yaml:"base_url"`
	Model      string        `yaml:"model" validate:"required"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0,lte=10"`
}

const defaultMaxTokens = 8192

type Client struct {
	log      *logger.Logger
	model    string
	messages sdk.MessageService
}

var _ llm.Client = (*Client)(nil)

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	client := sdk.NewClient(opts...)
	return &Client{
		log:      log.With("service", "AnthropicClient"),
		model:    cfg.Model,
		messages: client.Messages,
	}, nil
}

func (c *Client) Provider() string { return llm.ProviderAnthropic }

// Complete sends one Messages call. JSON requests prefill the assistant turn
// with "{" so the reply starts inside the object; the brace is restored on
// the returned text.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	msgs := []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(req.User))}
	if req.JSON {
		msgs = append(msgs, sdk.NewAssistantMessage(sdk.NewTextBlock("{")))
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	resp, err := c.messages.New(ctx, params)
	if err != nil {
		observability.Current().ObserveLLMRequest(c.model, "anthropic.messages", statusOf(err), time.Since(start), 0, 0)
		return llm.Response{}, fmt.Errorf("anthropic messages: %w", err)
	}
	in, out := int(resp.Usage.InputTokens), int(resp.Usage.OutputTokens)
	observability.Current().ObserveLLMRequest(c.model, "anthropic.messages", "200", time.Since(start), in, out)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return llm.Response{}, llm.ErrEmptyResponse
	}
	result := text.String()
	if req.JSON && !strings.HasPrefix(strings.TrimSpace(result), "{") {
		result = "{" + result
	}
	if resp.StopReason == "max_tokens" {
		c.log.Warn("anthropic response truncated at max_tokens", "model", c.model, "max_tokens", maxTokens)
	}
	return llm.Response{
		Text:         result,
		Model:        string(resp.Model),
		InputTokens:  in,
		OutputTokens: out,
	}, nil
}

func statusOf(err error) string {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return strconv.Itoa(apiErr.StatusCode)
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

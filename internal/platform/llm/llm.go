// Package llm defines the completion capability the generation pipeline
// depends on. Provider adapters live in platform/openai and platform/anthropic.
package llm

import (
	"context"
	"errors"
	"math"
	"strings"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var ErrEmptyResponse = errors.New("llm returned no text")

type Request struct {
	System string
	User   string
	// JSON asks the provider for a JSON-only answer. When Schema is set too,
	// providers that support structured outputs enforce it.
	JSON        bool
	SchemaName  string
	Schema      map[string]any
	Temperature *float64
	MaxTokens   int
}

type Response struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Provider() string
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len([]rune(text))) / 4.0))
}

// StripCodeFence removes a surrounding ```json fence some models add even
// when asked for bare JSON.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

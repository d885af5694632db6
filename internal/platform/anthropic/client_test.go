package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/platform/llm"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

func TestCompleteJSONPrefill(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"\"lessons\":[]}"}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":40,"output_tokens":7}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(logger.Nop(), Config{APIKey: "k", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)

	temp := 0.8
	resp, err := c.Complete(context.Background(), llm.Request{System: "sys", User: "usr", JSON: true, Temperature: &temp, MaxTokens: 16000})
	require.NoError(t, err)
	require.Equal(t, `{"lessons":[]}`, resp.Text)
	require.Equal(t, 40, resp.InputTokens)
	require.Equal(t, 7, resp.OutputTokens)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	require.Equal(t, "assistant", msgs[1].(map[string]any)["role"])
	require.EqualValues(t, 16000, body["max_tokens"])
	require.Equal(t, llm.ProviderAnthropic, c.Provider())
}

func TestCompleteRequiresKey(t *testing.T) {
	_, err := NewClient(logger.Nop(), Config{Model: "m"})
	require.Error(t, err)
}

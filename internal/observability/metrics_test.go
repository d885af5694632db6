package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveLLMRequest("gpt", "openai.responses", "200", time.Second, 10, 20)
	m.ObserveGeneration("completed", time.Minute)
	m.ObservePublish("fresh", "ok", 1, 2, 3)
	m.ObserveCharge("overage", "overage", 500)
	if err := m.WritePrometheus(&bytes.Buffer{}); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestWritePrometheusRendersSeries(t *testing.T) {
	m := New(time.Second)
	m.ObserveAPI("POST", "/api/generate", "202", 20*time.Millisecond)
	m.ObserveLLMRequest("claude", "anthropic.messages", "200", 3*time.Second, 100, 250)
	m.ObserveCharge("overage", "overage", 500)
	m.ObserveCharge("overage", "overage", 500)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`coursebuilder_api_requests_total{method="POST",route="/api/generate",status="202"} 1`,
		`coursebuilder_llm_tokens_total{model="claude",direction="output"} 250`,
		`coursebuilder_overage_cents_total 1000`,
		`# TYPE coursebuilder_api_request_duration_seconds histogram`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := NewHistogramVec("h", "test", []string{"k"}, []float64{1, 2})
	h.Observe(0.5, "a")
	h.Observe(1.5, "a")
	h.Observe(3, "a")
	var buf bytes.Buffer
	if err := h.WritePrometheus(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`h_bucket{k="a",le="1"} 1`,
		`h_bucket{k="a",le="2"} 2`,
		`h_bucket{k="a",le="+Inf"} 3`,
		`h_count{k="a"} 3`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if h.Count("a") != 3 {
		t.Fatalf("count = %d", h.Count("a"))
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`, ""})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString = %s", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders("authorization=abc, x-tenant = t1 ,bad")
	if len(h) != 2 || h["authorization"] != "abc" || h["x-tenant"] != "t1" {
		t.Fatalf("headers = %#v", h)
	}
	if ParseHeaders("  ") != nil {
		t.Fatal("expected nil for blank")
	}
}

package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(fmt.Errorf("wrap: %w", statusErr(http.StatusTooManyRequests))) {
		t.Fatalf("429 should retry")
	}
	if IsRetryableError(statusErr(http.StatusUnprocessableEntity)) {
		t.Fatalf("422 should not retry")
	}
	if IsRetryableError(context.Canceled) {
		t.Fatalf("canceled should not retry")
	}
	if !IsRetryableError(context.DeadlineExceeded) {
		t.Fatalf("deadline should retry")
	}
}

func TestRetryAfterDurationCapsHeader(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestBackoff(t *testing.T) {
	if got := Backoff(3, time.Second, 5*time.Second); got != 5*time.Second {
		t.Fatalf("got %v", got)
	}
	if got := Backoff(1, time.Second, 0); got != 2*time.Second {
		t.Fatalf("got %v", got)
	}
}

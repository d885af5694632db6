package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type countingSweep struct {
	calls int
	limit int
	err   error
}

func (c *countingSweep) FailStuck(ctx context.Context, limit int) (int, error) {
	c.calls++
	c.limit = limit
	return 2, c.err
}

func (c *countingSweep) ExpireOld(ctx context.Context, limit int) (int, error) {
	c.calls++
	c.limit = limit
	return 0, c.err
}

func TestRunTaskDispatches(t *testing.T) {
	stuck := &countingSweep{}
	uploads := &countingSweep{err: errors.New("db down")}
	s := New(logger.Nop(), Config{WatchdogSpec: "@every 1m", UploadExpirySpec: "@every 1h", BatchLimit: 7}, stuck, uploads)

	s.RunTask(TaskGenerationWatchdog)
	s.RunTask(TaskUploadExpiry)
	s.RunTask("bogus")

	if stuck.calls != 1 || stuck.limit != 7 {
		t.Fatalf("watchdog not run with limit: %+v", stuck)
	}
	if uploads.calls != 1 {
		t.Fatalf("upload expiry not run: %+v", uploads)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(logger.Nop(), Config{WatchdogSpec: "not a spec", UploadExpirySpec: "@every 1h"}, &countingSweep{}, nil)
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected invalid spec error")
	}
}

func TestStartAndStop(t *testing.T) {
	s := New(logger.Nop(), DefaultConfig(), &countingSweep{}, &countingSweep{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}

package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	jobstatus "github.com/yungbote/coursebuilder-backend/internal/domain/jobs"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

/*
Context is the execution handle for one claimed job run. Handlers never
write job_run directly; they report through Progress, Fail, Abort and
Succeed, which keep the row, the in-memory copy and the notifier in step.
Every terminal write is guarded so a canceled job is not overwritten.
*/
type Context struct {
	Ctx    context.Context
	Job    *types.JobRun
	Repo   repos.JobRunRepo
	Notify services.JobNotifier
	// MaxAttempts is the worker's retry ceiling; Abort pins attempts to it.
	MaxAttempts int

	payload map[string]any
}

func NewContext(ctx context.Context, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier, maxAttempts int) *Context {
	c := &Context{
		Ctx:         ctx,
		Job:         job,
		Repo:        repo,
		Notify:      notify,
		MaxAttempts: maxAttempts,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

// decodePayload leaves an empty map behind on malformed payloads; handlers
// validate the fields they need.
func (c *Context) decodePayload() error {
	c.payload = map[string]any{}
	if c.Job == nil || len(c.Job.Payload) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		return err
	}
	if m != nil {
		c.payload = m
	}
	return nil
}

func (c *Context) applyTraceData() {
	if c.Ctx == nil {
		c.Ctx = context.Background()
	}
	traceID := c.PayloadString("trace_id")
	reqID := c.PayloadString("request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{TraceID: traceID, RequestID: reqID})
}

func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) string {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.PayloadString(key))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	// Terminal writes must land even when the run context was canceled.
	return context.WithoutCancel(c.Ctx)
}

func (c *Context) write(updates map[string]interface{}) bool {
	if c.Repo == nil || c.Job == nil || c.Job.ID == uuid.Nil {
		return true
	}
	ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.ctx()}, c.Job.ID, []string{jobstatus.StatusCanceled}, updates)
	return err == nil && ok
}

// Progress records a non-terminal stage and refreshes the heartbeat.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil {
		return
	}
	pct = min(max(pct, 0), 100)
	now := time.Now()
	if !c.write(map[string]interface{}{
		"stage":        stage,
		"progress":     pct,
		"message":      msg,
		"heartbeat_at": now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.Message = msg
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobProgress(c.Job.OwnerUserID, c.Job, stage, pct, msg)
		}
	}
}

// Fail marks the run failed. The worker retries it after the retry delay
// while attempts remain.
func (c *Context) Fail(stage string, err error) {
	c.fail(stage, err, false)
}

// Abort marks the run failed with no further retries.
func (c *Context) Abort(stage string, err error) {
	c.fail(stage, err, true)
}

func (c *Context) fail(stage string, err error, terminal bool) {
	if c == nil {
		return
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	updates := map[string]interface{}{
		"status":        jobstatus.StatusFailed,
		"stage":         stage,
		"message":       "",
		"error":         msg,
		"last_error_at": now,
		"locked_at":     nil,
	}
	if terminal && c.MaxAttempts > 0 && c.Job != nil && c.Job.Attempts < c.MaxAttempts {
		updates["attempts"] = c.MaxAttempts
	}
	if !c.write(updates) {
		return
	}
	if c.Job != nil {
		c.Job.Status = jobstatus.StatusFailed
		c.Job.Stage = stage
		c.Job.Message = ""
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
		if n, ok := updates["attempts"].(int); ok {
			c.Job.Attempts = n
		}
		if c.Notify != nil {
			c.Notify.JobFailed(c.Job.OwnerUserID, c.Job, stage, msg)
		}
	}
}

// Succeed marks the run done and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil {
		return
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			res = datatypes.JSON(b)
		}
	}
	if !c.write(map[string]interface{}{
		"status":       jobstatus.StatusSucceeded,
		"stage":        finalStage,
		"progress":     100,
		"message":      "",
		"error":        "",
		"result":       res,
		"locked_at":    nil,
		"heartbeat_at": now,
	}) {
		return
	}
	if c.Job != nil {
		c.Job.Status = jobstatus.StatusSucceeded
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Message = ""
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
		if c.Notify != nil {
			c.Notify.JobDone(c.Job.OwnerUserID, c.Job)
		}
	}
}

// Heartbeat keeps a long stage from looking stale to other workers.
func (c *Context) Heartbeat() {
	if c == nil || c.Repo == nil || c.Job == nil {
		return
	}
	_ = c.Repo.Heartbeat(dbctx.Context{Ctx: c.ctx()}, c.Job.ID)
}

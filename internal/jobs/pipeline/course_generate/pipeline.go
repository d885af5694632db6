package course_generate

import (
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	jobrt "github.com/yungbote/coursebuilder-backend/internal/jobs/runtime"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	genID, ok := jc.PayloadUUID("generation_id")
	if !ok {
		jc.Abort("validate", fmt.Errorf("%w: payload missing generation_id", apperr.ErrInvalidArgument))
		return nil
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(heartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-jc.Ctx.Done():
				return
			case <-t.C:
				jc.Heartbeat()
			}
		}
	}()

	gen, err := p.pipeline.Run(jc.Ctx, genID, jc.Progress)
	status := ""
	if gen != nil {
		status = gen.Status
	}
	switch {
	case err == nil:
		jc.Succeed("done", map[string]any{"generation_id": genID, "status": status})
	case errors.Is(err, apperr.ErrAlreadyProcessed):
		// A retried or duplicate job for a row that already settled.
		p.log.Info("generation already settled", "generation_id", genID, "status", status)
		jc.Succeed("skipped", map[string]any{"generation_id": genID, "status": status})
	case jc.Ctx.Err() != nil:
		// Worker shutdown; the generation is still processing and resumes on the next claim.
		p.log.Info("generation interrupted, will resume", "generation_id", genID, "error", err)
		jc.Fail("generate", err)
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidState):
		jc.Abort("generate", err)
	case status == course.StatusFailed:
		// The generation carries the failure; a retry would find it settled.
		jc.Abort("generate", err)
	default:
		p.log.Warn("generation run errored before start, will retry", "generation_id", genID, "error", err)
		jc.Fail("generate", err)
	}
	return nil
}

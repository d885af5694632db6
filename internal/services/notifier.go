package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/realtime"
	"github.com/yungbote/coursebuilder-backend/internal/realtime/bus"
)

const publishTimeout = 2 * time.Second

// emitter publishes best-effort; a nil bus makes every call a no-op.
type emitter struct {
	bus bus.Bus
	log *logger.Logger
}

func (e emitter) emit(userID uuid.UUID, event realtime.Event, data map[string]any) {
	if e.bus == nil || userID == uuid.Nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := e.bus.Publish(ctx, realtime.Message{Channel: userID.String(), Event: event, Data: data}); err != nil && e.log != nil {
		e.log.Warn("event publish failed", "event", string(event), "error", err)
	}
}

// =========================
// Job notifier
// =========================

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct{ emitter }

func NewJobNotifier(b bus.Bus, baseLog *logger.Logger) JobNotifier {
	return &jobNotifier{emitter{bus: b, log: baseLog.With("service", "JobNotifier")}}
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	if n == nil {
		return
	}
	n.emit(userID, realtime.EventJobCreated, map[string]any{"job": job})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	if n == nil {
		return
	}
	n.emit(userID, realtime.EventJobProgress, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	if n == nil {
		return
	}
	n.emit(userID, realtime.EventJobFailed, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
		"stage":    stage,
		"error":    errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	if n == nil {
		return
	}
	n.emit(userID, realtime.EventJobDone, map[string]any{
		"job_id":   safeJobID(job),
		"job_type": safeJobType(job),
	})
}

// =========================
// Generation notifier
// =========================

type GenerationNotifier interface {
	GenerationStarted(gen *types.CourseGeneration)
	GenerationCompleted(gen *types.CourseGeneration)
	GenerationFailed(gen *types.CourseGeneration, errorMessage string)
	CoursePublished(gen *types.CourseGeneration, url string)
}

type generationNotifier struct{ emitter }

func NewGenerationNotifier(b bus.Bus, baseLog *logger.Logger) GenerationNotifier {
	return &generationNotifier{emitter{bus: b, log: baseLog.With("service", "GenerationNotifier")}}
}

func (n *generationNotifier) GenerationStarted(gen *types.CourseGeneration) {
	if n == nil || gen == nil {
		return
	}
	n.emit(gen.UserID, realtime.EventGenerationStarted, generationData(gen))
}

func (n *generationNotifier) GenerationCompleted(gen *types.CourseGeneration) {
	if n == nil || gen == nil {
		return
	}
	n.emit(gen.UserID, realtime.EventGenerationCompleted, generationData(gen))
}

func (n *generationNotifier) GenerationFailed(gen *types.CourseGeneration, errorMessage string) {
	if n == nil || gen == nil {
		return
	}
	data := generationData(gen)
	data["error"] = errorMessage
	n.emit(gen.UserID, realtime.EventGenerationFailed, data)
}

func (n *generationNotifier) CoursePublished(gen *types.CourseGeneration, url string) {
	if n == nil || gen == nil {
		return
	}
	data := generationData(gen)
	data["url"] = url
	n.emit(gen.UserID, realtime.EventCoursePublished, data)
}

// =========================
// helpers
// =========================

func generationData(gen *types.CourseGeneration) map[string]any {
	return map[string]any{
		"generation_id":   gen.ID,
		"status":          gen.Status,
		"generation_type": gen.GenerationType,
		"title":           gen.Title,
	}
}

func safeJobID(job *types.JobRun) uuid.UUID {
	if job == nil {
		return uuid.Nil
	}
	return job.ID
}

func safeJobType(job *types.JobRun) string {
	if job == nil {
		return ""
	}
	return job.JobType
}

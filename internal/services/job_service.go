package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	jobstatus "github.com/yungbote/coursebuilder-backend/internal/domain/jobs"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

const JobTypeCourseGenerate = "course_generate"

type JobService interface {
	// Enqueue inserts a queued job_run. Inside a transaction the row becomes
	// visible to workers when the caller commits.
	Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	GetForUser(dbc dbctx.Context, userID, jobID uuid.UUID) (*types.JobRun, error)
	GetLatestForEntity(dbc dbctx.Context, userID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error)
}

type jobService struct {
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier
}

func NewJobService(baseLog *logger.Logger, repo repos.JobRunRepo, notify JobNotifier) JobService {
	return &jobService{
		log:    baseLog.With("service", "JobService"),
		repo:   repo,
		notify: notify,
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if ownerUserID == uuid.Nil {
		return nil, fmt.Errorf("missing owner_user_id")
	}
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if _, ok := payload["trace_id"]; !ok && td.TraceID != "" {
			payload["trace_id"] = td.TraceID
		}
		if _, ok := payload["request_id"]; !ok && td.RequestID != "" {
			payload["request_id"] = td.RequestID
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode job payload: %w", err)
	}
	now := time.Now()
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      jobstatus.StatusQueued,
		Stage:       "queued",
		Message:     "Queued",
		Payload:     datatypes.JSON(b),
		Result:      datatypes.JSON([]byte(`{}`)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.repo.Create(dbc, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify.JobCreated(ownerUserID, job)
	}
	s.log.Debug("job enqueued", "job_id", job.ID, "job_type", jobType)
	return job, nil
}

func (s *jobService) GetForUser(dbc dbctx.Context, userID, jobID uuid.UUID) (*types.JobRun, error) {
	job, err := s.repo.GetByID(dbc, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.ErrNotFound
	}
	if job.OwnerUserID != userID {
		return nil, apperr.ErrForbidden
	}
	return job, nil
}

func (s *jobService) GetLatestForEntity(dbc dbctx.Context, userID uuid.UUID, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	job, err := s.repo.GetLatestByEntity(dbc, userID, entityType, entityID, jobType)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, apperr.ErrNotFound
	}
	return job, nil
}

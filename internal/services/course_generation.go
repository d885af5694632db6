package services

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
)

const (
	EntityCourseGeneration = "course_generation"
	defaultCourseTitle     = "Untitled Course"
)

type StartGenerationInput struct {
	PdfUploadID uuid.UUID
	CustomTitle string
}

type StartUsage struct {
	IsOverage           bool  `json:"isOverage"`
	OverageCostCents    int64 `json:"overageCostCents"`
	RemainingIncluded   int   `json:"remainingIncluded"`
	UsedPurchasedCredit bool  `json:"usedPurchasedCredit"`
}

type StartGenerationResult struct {
	GenerationID         uuid.UUID  `json:"generationId"`
	JobID                uuid.UUID  `json:"jobId"`
	Status               string     `json:"status"`
	EstimatedTimeSeconds int        `json:"estimatedTimeSeconds"`
	Usage                StartUsage `json:"usage"`
}

type GenerationView struct {
	*types.CourseGeneration
	Modules   []*types.CourseModule `json:"modules"`
	CourseURL string                `json:"courseUrl,omitempty"`
}

type GenerationStatus struct {
	ID           uuid.UUID  `json:"id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	Stage        string     `json:"stage,omitempty"`
	Progress     int        `json:"progress"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

type GenerationSummary struct {
	*types.CourseGeneration
	ModuleCount int    `json:"moduleCount"`
	LessonCount int    `json:"lessonCount"`
	CourseURL   string `json:"courseUrl,omitempty"`
}

type GenerationService interface {
	// Start charges the ledger once, creates the processing row and queues the
	// pipeline job in one transaction.
	Start(dbc dbctx.Context, user *types.User, in StartGenerationInput) (*StartGenerationResult, error)
	Get(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationView, error)
	GetStatus(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationStatus, error)
	List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*GenerationSummary, error)
	// Owned loads a generation and checks the caller owns it.
	Owned(dbc dbctx.Context, userID, id uuid.UUID) (*types.CourseGeneration, error)
}

type generationService struct {
	db      *gorm.DB
	log     *logger.Logger
	gens    repos.CourseGenerationRepo
	uploads repos.PdfUploadRepo
	tree    repos.CourseTreeRepo
	events  repos.UsageEventRepo
	jobRuns repos.JobRunRepo
	ledger  UsageLedger
	jobs    JobService
	notify  GenerationNotifier
	now     func() time.Time
}

func NewGenerationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	gens repos.CourseGenerationRepo,
	uploads repos.PdfUploadRepo,
	tree repos.CourseTreeRepo,
	events repos.UsageEventRepo,
	jobRuns repos.JobRunRepo,
	ledger UsageLedger,
	jobs JobService,
	notify GenerationNotifier,
) GenerationService {
	return &generationService{
		db:      db,
		log:     baseLog.With("service", "GenerationService"),
		gens:    gens,
		uploads: uploads,
		tree:    tree,
		events:  events,
		jobRuns: jobRuns,
		ledger:  ledger,
		jobs:    jobs,
		notify:  notify,
		now:     time.Now,
	}
}

func (s *generationService) Start(dbc dbctx.Context, user *types.User, in StartGenerationInput) (*StartGenerationResult, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	if in.PdfUploadID == uuid.Nil {
		return nil, fmt.Errorf("%w: pdfUploadId required", apperr.ErrInvalidArgument)
	}
	up, err := s.uploads.GetByID(dbc, in.PdfUploadID)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, fmt.Errorf("%w: upload", apperr.ErrNotFound)
	}
	if up.UserID != user.ID {
		return nil, apperr.ErrForbidden
	}
	if up.ExtractionStatus == course.ExtractionFailed {
		return nil, fmt.Errorf("%w: upload extraction failed: %s", apperr.ErrInvalidArgument, up.ExtractionError)
	}
	if s.now().After(up.ExpiresAt) {
		return nil, fmt.Errorf("%w: upload expired", apperr.ErrInvalidArgument)
	}

	gen := &types.CourseGeneration{
		ID:             uuid.New(),
		UserID:         user.ID,
		PdfUploadID:    up.ID,
		Title:          courseTitle(in.CustomTitle, up.Filename),
		Status:         course.StatusProcessing,
		GenerationType: course.GenerationIncluded,
		WhopCompanyID:  user.WhopCompanyID,
	}
	var charge *UsageCharge
	var job *types.JobRun
	err = inTx(dbc, s.db, func(tx dbctx.Context) error {
		sub, err := s.ledger.EnsureSubscription(tx, user)
		if err != nil {
			return err
		}
		gen.SubscriptionID = sub.ID
		if _, err := s.gens.Create(tx, gen); err != nil {
			return fmt.Errorf("create generation: %w", err)
		}
		charge, err = s.ledger.IncrementUsage(tx, user, gen.ID)
		if err != nil {
			return err
		}
		if charge.IsOverage {
			gen.GenerationType = course.GenerationOverage
			gen.OverageChargeCents = charge.OverageChargeCents
		}
		gen.UsedPurchasedCredit = charge.UsedPurchasedCredit
		job, err = s.jobs.Enqueue(tx, user.ID, JobTypeCourseGenerate, EntityCourseGeneration, &gen.ID, map[string]any{
			"generation_id": gen.ID.String(),
		})
		if err != nil {
			return err
		}
		gen.JobID = &job.ID
		return s.gens.UpdateFields(tx, gen.ID, map[string]interface{}{
			"generation_type":       gen.GenerationType,
			"overage_charge_cents":  gen.OverageChargeCents,
			"used_purchased_credit": gen.UsedPurchasedCredit,
			"job_id":                job.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notify.GenerationStarted(gen)
	s.log.Info("generation started",
		"generation_id", gen.ID,
		"user_id", user.ID,
		"generation_type", gen.GenerationType,
		"job_id", job.ID,
	)
	return &StartGenerationResult{
		GenerationID:         gen.ID,
		JobID:                job.ID,
		Status:               gen.Status,
		EstimatedTimeSeconds: estimateSeconds(up.PageCount),
		Usage: StartUsage{
			IsOverage:           charge.IsOverage,
			OverageCostCents:    charge.OverageChargeCents,
			RemainingIncluded:   charge.RemainingIncluded,
			UsedPurchasedCredit: charge.UsedPurchasedCredit,
		},
	}, nil
}

func courseTitle(custom, filename string) string {
	if t := strings.TrimSpace(custom); t != "" {
		return t
	}
	base := strings.TrimSpace(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	if base == "" || base == "." || base == "/" {
		return defaultCourseTitle
	}
	return base
}

// Two minutes is the floor; long documents add time per page.
func estimateSeconds(pages int) int {
	return min(max(120, pages*10), 900)
}

func (s *generationService) Owned(dbc dbctx.Context, userID, id uuid.UUID) (*types.CourseGeneration, error) {
	gen, err := s.gens.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, apperr.ErrNotFound
	}
	if gen.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return gen, nil
}

func (s *generationService) Get(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationView, error) {
	gen, err := s.Owned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	modules, err := s.tree.Hydrate(dbc, gen.ID)
	if err != nil {
		return nil, fmt.Errorf("hydrate tree: %w", err)
	}
	if gen.Status == course.StatusCompleted || gen.Status == course.StatusPublished {
		recordUsageEvent(dbc, s.db, s.events, s.log, userID, &gen.ID, billing.EventPreviewViewed, map[string]any{
			"status": gen.Status,
		})
	}
	return &GenerationView{CourseGeneration: gen, Modules: modules, CourseURL: courseURL(gen)}, nil
}

func (s *generationService) GetStatus(dbc dbctx.Context, userID, id uuid.UUID) (*GenerationStatus, error) {
	gen, err := s.Owned(dbc, userID, id)
	if err != nil {
		return nil, err
	}
	out := &GenerationStatus{
		ID:           gen.ID,
		Status:       gen.Status,
		ErrorMessage: gen.ErrorMessage,
		CompletedAt:  gen.CompletedAt,
	}
	switch gen.Status {
	case course.StatusCompleted, course.StatusPublished:
		out.Progress = 100
	case course.StatusProcessing:
		// Stage and progress are best effort; a missing job leaves them empty.
		var (
			job  *types.JobRun
			jErr error
		)
		if gen.JobID != nil {
			job, jErr = s.jobRuns.GetByID(dbc, *gen.JobID)
		} else {
			job, jErr = s.jobs.GetLatestForEntity(dbc, userID, EntityCourseGeneration, gen.ID, JobTypeCourseGenerate)
		}
		if jErr != nil {
			s.log.Warn("job lookup for status failed", "generation_id", gen.ID, "error", jErr)
		}
		if job != nil {
			out.Stage = job.Stage
			out.Progress = job.Progress
		}
	}
	return out, nil
}

func (s *generationService) List(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*GenerationSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.gens.ListByUser(dbc, userID, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, g := range rows {
		ids = append(ids, g.ID)
	}
	counts, err := s.gens.Counts(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("count tree nodes: %w", err)
	}
	out := make([]*GenerationSummary, 0, len(rows))
	for _, g := range rows {
		c := counts[g.ID]
		out = append(out, &GenerationSummary{
			CourseGeneration: g,
			ModuleCount:      c.ModuleCount,
			LessonCount:      c.LessonCount,
			CourseURL:        courseURL(g),
		})
	}
	return out, nil
}

func courseURL(g *types.CourseGeneration) string {
	if g == nil || g.Status != course.StatusPublished || g.WhopExperienceID == nil {
		return ""
	}
	return whop.CourseURL(g.WhopCompanyID, *g.WhopExperienceID)
}

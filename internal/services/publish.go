package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/markdown"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
)

const (
	PublishFresh  = "fresh"
	PublishAppend = "append"

	ContentMarkdown = "markdown"
	ContentHTML     = "html"

	DefaultProductTitle = "Courses"
)

type PublishConfig struct {
	AppID string `yaml:"app_id" validate:"required"`
	// CompanyID is used when the caller's user row carries no company.
	CompanyID     string `yaml:"company_id"`
	ContentFormat string `yaml:"content_format" validate:"oneof=markdown html"`
	// ProductTitle names the per-company product fresh publishes attach to.
	ProductTitle string `yaml:"product_title"`
}

// CoursePlatform is the external course API the publish walk writes to.
type CoursePlatform interface {
	CreateExperience(ctx context.Context, key string, in whop.CreateExperienceInput) (whop.Experience, error)
	CreateCourse(ctx context.Context, key string, in whop.CreateCourseInput) (whop.Course, error)
	CreateChapter(ctx context.Context, key string, in whop.CreateChapterInput) (whop.Chapter, error)
	CreateLesson(ctx context.Context, key string, in whop.CreateLessonInput) (whop.Lesson, error)
	CreateProduct(ctx context.Context, key string, in whop.CreateProductInput) (whop.Product, error)
	AttachExperience(ctx context.Context, experienceID, productID string) error
}

var _ CoursePlatform = (*whop.Client)(nil)

type PublishInput struct {
	Mode string `json:"mode"`
	// CourseID is the existing external course for append mode.
	CourseID string `json:"courseId"`
	// ExperienceID optionally names the experience that holds CourseID, for the course link.
	ExperienceID string `json:"experienceId"`
}

type PublishCounts struct {
	Modules  int `json:"modules"`
	Chapters int `json:"chapters"`
	Lessons  int `json:"lessons"`
}

type PublishResult struct {
	GenerationID uuid.UUID     `json:"generationId"`
	Mode         string        `json:"mode"`
	ExperienceID string        `json:"experienceId,omitempty"`
	ProductID    string        `json:"productId,omitempty"`
	CourseIDs    []string      `json:"courseIds"`
	URL          string        `json:"url,omitempty"`
	Counts       PublishCounts `json:"counts"`
}

// PublishError reports what was created on the platform before the failure.
// Nothing is rolled back; publishing again may create duplicates.
type PublishError struct {
	Err    error
	Counts PublishCounts
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish failed after %d modules, %d chapters, %d lessons: %v",
		e.Counts.Modules, e.Counts.Chapters, e.Counts.Lessons, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

type PublishService interface {
	Publish(dbc dbctx.Context, user *types.User, generationID uuid.UUID, in PublishInput) (*PublishResult, error)
}

type publishService struct {
	db       *gorm.DB
	log      *logger.Logger
	cfg      PublishConfig
	platform CoursePlatform
	gens     GenerationService
	genRepo  repos.CourseGenerationRepo
	tree     repos.CourseTreeRepo
	events   repos.UsageEventRepo
	notify   GenerationNotifier
}

func NewPublishService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg PublishConfig,
	platform CoursePlatform,
	gens GenerationService,
	genRepo repos.CourseGenerationRepo,
	tree repos.CourseTreeRepo,
	events repos.UsageEventRepo,
	notify GenerationNotifier,
) PublishService {
	if cfg.ContentFormat == "" {
		cfg.ContentFormat = ContentMarkdown
	}
	if cfg.ProductTitle == "" {
		cfg.ProductTitle = DefaultProductTitle
	}
	return &publishService{
		db:       db,
		log:      baseLog.With("service", "PublishService"),
		cfg:      cfg,
		platform: platform,
		gens:     gens,
		genRepo:  genRepo,
		tree:     tree,
		events:   events,
		notify:   notify,
	}
}

// externalIDs maps local node ids to the ids the platform returned for them.
type externalIDs map[uuid.UUID]string

func (s *publishService) Publish(dbc dbctx.Context, user *types.User, generationID uuid.UUID, in PublishInput) (*PublishResult, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = PublishFresh
	}
	if mode != PublishFresh && mode != PublishAppend {
		return nil, fmt.Errorf("%w: unknown publish mode %q", apperr.ErrInvalidArgument, mode)
	}
	if mode == PublishAppend && strings.TrimSpace(in.CourseID) == "" {
		return nil, fmt.Errorf("%w: courseId required for append", apperr.ErrInvalidArgument)
	}

	gen, err := s.gens.Owned(dbc, user.ID, generationID)
	if err != nil {
		return nil, err
	}
	switch gen.Status {
	case course.StatusCompleted:
	case course.StatusPublished:
		return nil, fmt.Errorf("%w: generation already published", apperr.ErrConflict)
	default:
		return nil, fmt.Errorf("%w: generation is %s", apperr.ErrInvalidState, gen.Status)
	}
	modules, err := s.tree.Hydrate(dbc, gen.ID)
	if err != nil {
		return nil, fmt.Errorf("hydrate tree: %w", err)
	}
	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: generation has no modules", apperr.ErrInvalidState)
	}

	ctx, span := observability.StartSpan(dbc.Ctx, "publish.whop",
		attribute.String("generation_id", gen.ID.String()),
		attribute.String("mode", mode))
	defer span.End()

	companyID := user.WhopCompanyID
	if companyID == "" {
		companyID = s.cfg.CompanyID
	}
	ids := externalIDs{}
	res := &PublishResult{GenerationID: gen.ID, Mode: mode}

	var walkErr error
	if mode == PublishFresh {
		walkErr = s.publishFresh(ctx, gen, companyID, modules, ids, res)
	} else {
		walkErr = s.publishAppend(ctx, gen, in.CourseID, modules, ids, res)
		res.ExperienceID = strings.TrimSpace(in.ExperienceID)
	}

	// Persist whatever was created, on success and on failure alike.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.persistIDs(dbctx.Context{Ctx: persistCtx}, modules, ids, mode, in.CourseID); err != nil {
		s.log.Error("persist external ids", "generation_id", gen.ID, "error", err)
		if walkErr == nil {
			walkErr = err
		}
	}
	if walkErr != nil {
		observability.Current().ObservePublish(mode, "failed", res.Counts.Modules, res.Counts.Chapters, res.Counts.Lessons)
		s.log.Warn("publish failed",
			"generation_id", gen.ID,
			"modules", res.Counts.Modules,
			"chapters", res.Counts.Chapters,
			"lessons", res.Counts.Lessons,
			"error", walkErr,
		)
		return nil, &PublishError{Err: walkErr, Counts: res.Counts}
	}

	now := time.Now()
	updates := map[string]interface{}{"published_at": now}
	if res.ExperienceID != "" {
		updates["whop_experience_id"] = res.ExperienceID
	}
	if res.ProductID != "" {
		updates["whop_product_id"] = res.ProductID
	}
	if companyID != "" && gen.WhopCompanyID == "" {
		updates["whop_company_id"] = companyID
	}
	moved, err := s.genRepo.Transition(dbctx.Context{Ctx: persistCtx}, gen.ID, []string{course.StatusCompleted}, course.StatusPublished, updates)
	if err != nil {
		return nil, fmt.Errorf("mark published: %w", err)
	}
	if !moved {
		return nil, fmt.Errorf("%w: generation changed status during publish", apperr.ErrConflict)
	}
	gen.Status = course.StatusPublished
	gen.PublishedAt = &now
	if res.ExperienceID != "" {
		gen.WhopExperienceID = &res.ExperienceID
	}
	if res.ProductID != "" {
		gen.WhopProductID = &res.ProductID
	}
	res.URL = whop.CourseURL(companyID, res.ExperienceID)

	recordUsageEvent(dbctx.Context{Ctx: persistCtx}, s.db, s.events, s.log, user.ID, &gen.ID, billing.EventCoursePublished, map[string]any{
		"mode":            mode,
		"experienceId":    res.ExperienceID,
		"productId":       res.ProductID,
		"modulesCreated":  res.Counts.Modules,
		"chaptersCreated": res.Counts.Chapters,
		"lessonsCreated":  res.Counts.Lessons,
	})
	s.notify.CoursePublished(gen, res.URL)
	observability.Current().ObservePublish(mode, "ok", res.Counts.Modules, res.Counts.Chapters, res.Counts.Lessons)
	s.log.Info("course published",
		"generation_id", gen.ID,
		"mode", mode,
		"experience_id", res.ExperienceID,
		"lessons", res.Counts.Lessons,
	)
	return res, nil
}

func (s *publishService) publishFresh(ctx context.Context, gen *types.CourseGeneration, companyID string, modules []*types.CourseModule, ids externalIDs, res *PublishResult) error {
	exp, err := s.platform.CreateExperience(ctx, nodeKey(gen.ID, "experience"), whop.CreateExperienceInput{
		AppID:     s.cfg.AppID,
		CompanyID: companyID,
		Name:      gen.Title,
	})
	if err != nil {
		return fmt.Errorf("create experience: %w", err)
	}
	res.ExperienceID = exp.ID

	// One product per company; the external identifier makes the create an upsert.
	prod, err := s.platform.CreateProduct(ctx, nodeKey(gen.ID, "product"), whop.CreateProductInput{
		CompanyID:          companyID,
		Title:              s.cfg.ProductTitle,
		ExternalIdentifier: whop.ProductExternalID(companyID),
	})
	if err != nil {
		return fmt.Errorf("ensure product: %w", err)
	}
	if err := s.platform.AttachExperience(ctx, exp.ID, prod.ID); err != nil {
		return fmt.Errorf("attach experience to product: %w", err)
	}
	res.ProductID = prod.ID

	for _, m := range modules {
		c, err := s.platform.CreateCourse(ctx, nodeKey(m.ID, "course"), whop.CreateCourseInput{
			ExperienceID: exp.ID,
			Title:        m.Title,
			Tagline:      m.Description,
		})
		if err != nil {
			return fmt.Errorf("create course for module %q: %w", m.Title, err)
		}
		ids[m.ID] = c.ID
		res.Counts.Modules++
		res.CourseIDs = append(res.CourseIDs, c.ID)
		if err := s.publishChapters(ctx, c.ID, m.Chapters, ids, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *publishService) publishAppend(ctx context.Context, gen *types.CourseGeneration, courseID string, modules []*types.CourseModule, ids externalIDs, res *PublishResult) error {
	courseID = strings.TrimSpace(courseID)
	res.CourseIDs = []string{courseID}
	for _, m := range modules {
		if err := s.publishChapters(ctx, courseID, m.Chapters, ids, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *publishService) publishChapters(ctx context.Context, courseID string, chapters []*types.CourseChapter, ids externalIDs, res *PublishResult) error {
	for _, ch := range chapters {
		created, err := s.platform.CreateChapter(ctx, nodeKey(ch.ID, "chapter"), whop.CreateChapterInput{
			CourseID: courseID,
			Title:    ch.Title,
		})
		if err != nil {
			return fmt.Errorf("create chapter %q: %w", ch.Title, err)
		}
		ids[ch.ID] = created.ID
		res.Counts.Chapters++
		for _, l := range ch.Lessons {
			content, err := s.renderContent(l.Content)
			if err != nil {
				return fmt.Errorf("render lesson %q: %w", l.Title, err)
			}
			lesson, err := s.platform.CreateLesson(ctx, nodeKey(l.ID, "lesson"), whop.CreateLessonInput{
				ChapterID:  created.ID,
				LessonType: whop.LessonTypeText,
				Title:      l.Title,
				Content:    content,
			})
			if err != nil {
				return fmt.Errorf("create lesson %q: %w", l.Title, err)
			}
			ids[l.ID] = lesson.ID
			res.Counts.Lessons++
		}
	}
	return nil
}

func (s *publishService) renderContent(md string) (string, error) {
	if s.cfg.ContentFormat == ContentHTML {
		return markdown.ToHTML(md)
	}
	return md, nil
}

func (s *publishService) persistIDs(dbc dbctx.Context, modules []*types.CourseModule, ids externalIDs, mode, appendCourseID string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		t := dbc.WithTx(tx)
		var errs []error
		for _, m := range modules {
			if id, ok := ids[m.ID]; ok {
				errs = append(errs, s.tree.UpdateModule(t, m.ID, map[string]interface{}{"whop_course_id": id}))
				m.WhopCourseID = &id
			} else if mode == PublishAppend && chaptersPublished(m, ids) {
				cid := strings.TrimSpace(appendCourseID)
				errs = append(errs, s.tree.UpdateModule(t, m.ID, map[string]interface{}{"whop_course_id": cid}))
				m.WhopCourseID = &cid
			}
			for _, ch := range m.Chapters {
				if id, ok := ids[ch.ID]; ok {
					errs = append(errs, s.tree.UpdateChapter(t, ch.ID, map[string]interface{}{"whop_chapter_id": id}))
					ch.WhopChapterID = &id
				}
				for _, l := range ch.Lessons {
					if id, ok := ids[l.ID]; ok {
						errs = append(errs, s.tree.UpdateLesson(t, l.ID, map[string]interface{}{"whop_lesson_id": id}))
						l.WhopLessonID = &id
					}
				}
			}
		}
		return errors.Join(errs...)
	})
}

func chaptersPublished(m *types.CourseModule, ids externalIDs) bool {
	for _, ch := range m.Chapters {
		if _, ok := ids[ch.ID]; ok {
			return true
		}
	}
	return false
}

// nodeKey is the idempotency key sent with each create, derived from the local node id.
func nodeKey(id uuid.UUID, kind string) string {
	return kind + ":" + id.String()
}

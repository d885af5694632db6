package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/markdown"
)

type ModuleInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type ModulePatch struct {
	Title            *string `json:"title"`
	Description      *string `json:"description"`
	EstimatedMinutes *int    `json:"estimatedMinutes"`
}

type ChapterInput struct {
	ModuleID    uuid.UUID `json:"moduleId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

type ChapterPatch struct {
	Title              *string   `json:"title"`
	Description        *string   `json:"description"`
	LearningObjectives *[]string `json:"learningObjectives"`
	EstimatedMinutes   *int      `json:"estimatedMinutes"`
}

type LessonInput struct {
	ChapterID  uuid.UUID `json:"chapterId"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	LessonType string    `json:"lessonType"`
}

type LessonPatch struct {
	Title            *string `json:"title"`
	Content          *string `json:"content"`
	LessonType       *string `json:"lessonType"`
	KeyTakeaway      *string `json:"keyTakeaway"`
	EstimatedMinutes *int    `json:"estimatedMinutes"`
}

// CourseTreeService edits a generated tree. Every call checks the caller owns
// the generation and that the generation finished processing.
type CourseTreeService interface {
	CreateModule(dbc dbctx.Context, userID, generationID uuid.UUID, in ModuleInput) (*types.CourseModule, error)
	UpdateModule(dbc dbctx.Context, userID, generationID, moduleID uuid.UUID, p ModulePatch) (*types.CourseModule, error)
	DeleteModule(dbc dbctx.Context, userID, generationID, moduleID uuid.UUID) error

	CreateChapter(dbc dbctx.Context, userID, generationID uuid.UUID, in ChapterInput) (*types.CourseChapter, error)
	UpdateChapter(dbc dbctx.Context, userID, generationID, chapterID uuid.UUID, p ChapterPatch) (*types.CourseChapter, error)
	DeleteChapter(dbc dbctx.Context, userID, generationID, chapterID uuid.UUID) error

	CreateLesson(dbc dbctx.Context, userID, generationID uuid.UUID, in LessonInput) (*types.CourseLesson, error)
	UpdateLesson(dbc dbctx.Context, userID, generationID, lessonID uuid.UUID, p LessonPatch) (*types.CourseLesson, error)
	DeleteLesson(dbc dbctx.Context, userID, generationID, lessonID uuid.UUID) error
}

type courseTreeService struct {
	log  *logger.Logger
	gens GenerationService
	tree repos.CourseTreeRepo
}

func NewCourseTreeService(baseLog *logger.Logger, gens GenerationService, tree repos.CourseTreeRepo) CourseTreeService {
	return &courseTreeService{
		log:  baseLog.With("service", "CourseTreeService"),
		gens: gens,
		tree: tree,
	}
}

func (s *courseTreeService) editable(dbc dbctx.Context, userID, generationID uuid.UUID) error {
	gen, err := s.gens.Owned(dbc, userID, generationID)
	if err != nil {
		return err
	}
	if gen.Status != course.StatusCompleted && gen.Status != course.StatusPublished {
		return fmt.Errorf("%w: generation is %s", apperr.ErrInvalidState, gen.Status)
	}
	return nil
}

func requireTitle(title string) (string, error) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", fmt.Errorf("%w: title required", apperr.ErrInvalidArgument)
	}
	return t, nil
}

func (s *courseTreeService) CreateModule(dbc dbctx.Context, userID, generationID uuid.UUID, in ModuleInput) (*types.CourseModule, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return nil, err
	}
	return s.tree.CreateModule(dbc, &types.CourseModule{
		GenerationID: generationID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
	})
}

func (s *courseTreeService) UpdateModule(dbc dbctx.Context, userID, generationID, moduleID uuid.UUID, p ModulePatch) (*types.CourseModule, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	m, err := s.tree.GetModule(dbc, generationID, moduleID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.ErrNotFound
	}
	updates := map[string]interface{}{}
	if p.Title != nil {
		t, err := requireTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = t
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.EstimatedMinutes != nil {
		if *p.EstimatedMinutes < 0 {
			return nil, fmt.Errorf("%w: estimatedMinutes must be >= 0", apperr.ErrInvalidArgument)
		}
		updates["estimated_minutes"] = *p.EstimatedMinutes
	}
	if err := s.tree.UpdateModule(dbc, moduleID, updates); err != nil {
		return nil, err
	}
	return s.tree.GetModule(dbc, generationID, moduleID)
}

func (s *courseTreeService) DeleteModule(dbc dbctx.Context, userID, generationID, moduleID uuid.UUID) error {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return err
	}
	m, err := s.tree.GetModule(dbc, generationID, moduleID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperr.ErrNotFound
	}
	return s.tree.DeleteModule(dbc, moduleID)
}

func (s *courseTreeService) CreateChapter(dbc dbctx.Context, userID, generationID uuid.UUID, in ChapterInput) (*types.CourseChapter, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return nil, err
	}
	m, err := s.tree.GetModule(dbc, generationID, in.ModuleID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: module", apperr.ErrNotFound)
	}
	return s.tree.CreateChapter(dbc, &types.CourseChapter{
		ModuleID:           m.ID,
		Title:              title,
		Description:        strings.TrimSpace(in.Description),
		LearningObjectives: datatypes.JSON([]byte(`[]`)),
	})
}

func (s *courseTreeService) UpdateChapter(dbc dbctx.Context, userID, generationID, chapterID uuid.UUID, p ChapterPatch) (*types.CourseChapter, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	c, err := s.tree.GetChapter(dbc, generationID, chapterID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	updates := map[string]interface{}{}
	if p.Title != nil {
		t, err := requireTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = t
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.LearningObjectives != nil {
		b, err := json.Marshal(*p.LearningObjectives)
		if err != nil {
			return nil, err
		}
		updates["learning_objectives"] = datatypes.JSON(b)
	}
	if p.EstimatedMinutes != nil {
		if *p.EstimatedMinutes < 0 {
			return nil, fmt.Errorf("%w: estimatedMinutes must be >= 0", apperr.ErrInvalidArgument)
		}
		updates["estimated_minutes"] = *p.EstimatedMinutes
	}
	if err := s.tree.UpdateChapter(dbc, chapterID, updates); err != nil {
		return nil, err
	}
	return s.tree.GetChapter(dbc, generationID, chapterID)
}

func (s *courseTreeService) DeleteChapter(dbc dbctx.Context, userID, generationID, chapterID uuid.UUID) error {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return err
	}
	c, err := s.tree.GetChapter(dbc, generationID, chapterID)
	if err != nil {
		return err
	}
	if c == nil {
		return apperr.ErrNotFound
	}
	return s.tree.DeleteChapter(dbc, chapterID)
}

func (s *courseTreeService) CreateLesson(dbc dbctx.Context, userID, generationID uuid.UUID, in LessonInput) (*types.CourseLesson, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	title, err := requireTitle(in.Title)
	if err != nil {
		return nil, err
	}
	lt := strings.TrimSpace(in.LessonType)
	if lt == "" {
		lt = course.LessonText
	}
	if !course.ValidLessonType(lt) {
		return nil, fmt.Errorf("%w: unknown lesson type %q", apperr.ErrInvalidArgument, lt)
	}
	c, err := s.tree.GetChapter(dbc, generationID, in.ChapterID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: chapter", apperr.ErrNotFound)
	}
	return s.tree.CreateLesson(dbc, &types.CourseLesson{
		ChapterID:  c.ID,
		Title:      title,
		LessonType: lt,
		Content:    in.Content,
		WordCount:  markdown.WordCount(in.Content),
	})
}

func (s *courseTreeService) UpdateLesson(dbc dbctx.Context, userID, generationID, lessonID uuid.UUID, p LessonPatch) (*types.CourseLesson, error) {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return nil, err
	}
	l, err := s.tree.GetLesson(dbc, generationID, lessonID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, apperr.ErrNotFound
	}
	updates := map[string]interface{}{}
	if p.Title != nil {
		t, err := requireTitle(*p.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = t
	}
	if p.Content != nil {
		updates["content"] = *p.Content
		updates["word_count"] = markdown.WordCount(*p.Content)
	}
	if p.LessonType != nil {
		if !course.ValidLessonType(*p.LessonType) {
			return nil, fmt.Errorf("%w: unknown lesson type %q", apperr.ErrInvalidArgument, *p.LessonType)
		}
		updates["lesson_type"] = *p.LessonType
	}
	if p.KeyTakeaway != nil {
		updates["key_takeaway"] = *p.KeyTakeaway
	}
	if p.EstimatedMinutes != nil {
		if *p.EstimatedMinutes < 0 {
			return nil, fmt.Errorf("%w: estimatedMinutes must be >= 0", apperr.ErrInvalidArgument)
		}
		updates["estimated_minutes"] = *p.EstimatedMinutes
	}
	if err := s.tree.UpdateLesson(dbc, lessonID, updates); err != nil {
		return nil, err
	}
	return s.tree.GetLesson(dbc, generationID, lessonID)
}

func (s *courseTreeService) DeleteLesson(dbc dbctx.Context, userID, generationID, lessonID uuid.UUID) error {
	if err := s.editable(dbc, userID, generationID); err != nil {
		return err
	}
	l, err := s.tree.GetLesson(dbc, generationID, lessonID)
	if err != nil {
		return err
	}
	if l == nil {
		return apperr.ErrNotFound
	}
	return s.tree.DeleteLesson(dbc, lessonID)
}

package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/pointers"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type ExperienceProgress struct {
	ExperienceID string                  `json:"experienceId"`
	Completed    int                     `json:"completedCount"`
	Lessons      []*types.LessonProgress `json:"lessons"`
}

// ProgressService tracks a viewer's completion of published lessons, keyed
// by the platform lesson id.
type ProgressService interface {
	MarkComplete(dbc dbctx.Context, user *types.User, whopLessonID, experienceID string) (*types.LessonProgress, error)
	GetProgress(dbc dbctx.Context, user *types.User, whopLessonID string) (*types.LessonProgress, error)
	ListExperienceProgress(dbc dbctx.Context, user *types.User, experienceID string) (*ExperienceProgress, error)
}

type progressService struct {
	log      *logger.Logger
	progress repos.LessonProgressRepo
	now      func() time.Time
}

func NewProgressService(baseLog *logger.Logger, progress repos.LessonProgressRepo) ProgressService {
	return &progressService{
		log:      baseLog.With("service", "ProgressService"),
		progress: progress,
		now:      time.Now,
	}
}

func (s *progressService) MarkComplete(dbc dbctx.Context, user *types.User, whopLessonID, experienceID string) (*types.LessonProgress, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	whopLessonID = strings.TrimSpace(whopLessonID)
	experienceID = strings.TrimSpace(experienceID)
	if whopLessonID == "" || experienceID == "" {
		return nil, fmt.Errorf("%w: lesson id and experience id are required", apperr.ErrInvalidArgument)
	}
	row, err := s.progress.Upsert(dbc, &types.LessonProgress{
		UserID:           user.ID,
		WhopLessonID:     whopLessonID,
		WhopExperienceID: experienceID,
		Completed:        true,
		CompletedAt:      pointers.Ptr(s.now()),
	})
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}
	s.log.Debug("lesson completed", "user_id", user.ID, "lesson", whopLessonID)
	return row, nil
}

// GetProgress returns an incomplete placeholder when nothing is recorded.
func (s *progressService) GetProgress(dbc dbctx.Context, user *types.User, whopLessonID string) (*types.LessonProgress, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	whopLessonID = strings.TrimSpace(whopLessonID)
	if whopLessonID == "" {
		return nil, fmt.Errorf("%w: lesson id is required", apperr.ErrInvalidArgument)
	}
	row, err := s.progress.Get(dbc, user.ID, whopLessonID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &types.LessonProgress{UserID: user.ID, WhopLessonID: whopLessonID}, nil
	}
	return row, nil
}

func (s *progressService) ListExperienceProgress(dbc dbctx.Context, user *types.User, experienceID string) (*ExperienceProgress, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	experienceID = strings.TrimSpace(experienceID)
	if experienceID == "" {
		return nil, fmt.Errorf("%w: experience id is required", apperr.ErrInvalidArgument)
	}
	rows, err := s.progress.ListByExperience(dbc, user.ID, experienceID)
	if err != nil {
		return nil, err
	}
	out := &ExperienceProgress{ExperienceID: experienceID, Lessons: rows}
	if out.Lessons == nil {
		out.Lessons = []*types.LessonProgress{}
	}
	for _, r := range rows {
		if r.Completed {
			out.Completed++
		}
	}
	return out, nil
}

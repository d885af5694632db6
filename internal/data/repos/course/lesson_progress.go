package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type LessonProgressRepo interface {
	Upsert(dbc dbctx.Context, p *types.LessonProgress) (*types.LessonProgress, error)
	Get(dbc dbctx.Context, userID uuid.UUID, whopLessonID string) (*types.LessonProgress, error)
	ListByExperience(dbc dbctx.Context, userID uuid.UUID, experienceID string) ([]*types.LessonProgress, error)
}

type lessonProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return &lessonProgressRepo{db: db, log: baseLog.With("repo", "LessonProgressRepo")}
}

func (r *lessonProgressRepo) Upsert(dbc dbctx.Context, p *types.LessonProgress) (*types.LessonProgress, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now()
	p.UpdatedAt = now
	err := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "whop_lesson_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"whop_experience_id": p.WhopExperienceID,
				"completed":          p.Completed,
				"completed_at":       p.CompletedAt,
				"updated_at":         now,
			}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, p.UserID, p.WhopLessonID)
}

func (r *lessonProgressRepo) Get(dbc dbctx.Context, userID uuid.UUID, whopLessonID string) (*types.LessonProgress, error) {
	var p types.LessonProgress
	err := dbc.Conn(r.db).
		Where("user_id = ? AND whop_lesson_id = ?", userID, whopLessonID).
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

func (r *lessonProgressRepo) ListByExperience(dbc dbctx.Context, userID uuid.UUID, experienceID string) ([]*types.LessonProgress, error) {
	var out []*types.LessonProgress
	err := dbc.Conn(r.db).
		Where("user_id = ? AND whop_experience_id = ?", userID, experienceID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

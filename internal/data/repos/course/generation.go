package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

// GenerationCounts is the per-generation tree size used by list views.
type GenerationCounts struct {
	GenerationID uuid.UUID
	ModuleCount  int
	ChapterCount int
	LessonCount  int
}

type CourseGenerationRepo interface {
	Create(dbc dbctx.Context, g *types.CourseGeneration) (*types.CourseGeneration, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CourseGeneration, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CourseGeneration, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// Transition applies updates only while the row is in one of fromStatuses.
	// It reports whether a row moved.
	Transition(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error)
	ListStuck(dbc dbctx.Context, status string, updatedBefore time.Time, limit int) ([]*types.CourseGeneration, error)
	Counts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]GenerationCounts, error)
	SumOverageSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) (int64, int64, error)
}

type courseGenerationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseGenerationRepo(db *gorm.DB, baseLog *logger.Logger) CourseGenerationRepo {
	return &courseGenerationRepo{db: db, log: baseLog.With("repo", "CourseGenerationRepo")}
}

func (r *courseGenerationRepo) Create(dbc dbctx.Context, g *types.CourseGeneration) (*types.CourseGeneration, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if err := dbc.Conn(r.db).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

func (r *courseGenerationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CourseGeneration, error) {
	var g types.CourseGeneration
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&g).Error; err != nil {
		return nil, err
	}
	if g.ID == uuid.Nil {
		return nil, nil
	}
	return &g, nil
}

func (r *courseGenerationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.CourseGeneration, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []*types.CourseGeneration
	err := dbc.Conn(r.db).
		Omit("structure_json").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *courseGenerationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).Model(&types.CourseGeneration{}).Where("id = ?", id).Updates(updates).Error
}

func (r *courseGenerationRepo) Transition(dbc dbctx.Context, id uuid.UUID, fromStatuses []string, toStatus string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil || len(fromStatuses) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = toStatus
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := dbc.Conn(r.db).
		Model(&types.CourseGeneration{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *courseGenerationRepo) ListStuck(dbc dbctx.Context, status string, updatedBefore time.Time, limit int) ([]*types.CourseGeneration, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*types.CourseGeneration
	err := dbc.Conn(r.db).
		Omit("structure_json").
		Where("status = ? AND updated_at < ?", status, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *courseGenerationRepo) Counts(dbc dbctx.Context, ids []uuid.UUID) (map[uuid.UUID]GenerationCounts, error) {
	out := make(map[uuid.UUID]GenerationCounts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []GenerationCounts
	err := dbc.Conn(r.db).Raw(`
		SELECT m.generation_id AS generation_id,
		       COUNT(DISTINCT m.id) AS module_count,
		       COUNT(DISTINCT c.id) AS chapter_count,
		       COUNT(l.id) AS lesson_count
		FROM course_module m
		LEFT JOIN course_chapter c ON c.module_id = m.id
		LEFT JOIN course_lesson l ON l.chapter_id = c.id
		WHERE m.generation_id IN ?
		GROUP BY m.generation_id
	`, ids).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.GenerationID] = row
	}
	return out, nil
}

// SumOverageSince returns (overage generation count, overage cents) since the given time.
func (r *courseGenerationRepo) SumOverageSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) (int64, int64, error) {
	var row struct {
		N     int64
		Cents int64
	}
	err := dbc.Conn(r.db).
		Model(&types.CourseGeneration{}).
		Select("COUNT(*) AS n, COALESCE(SUM(overage_charge_cents), 0) AS cents").
		Where("user_id = ? AND generation_type = ? AND created_at >= ?", userID, "overage", since).
		Scan(&row).Error
	return row.N, row.Cents, err
}

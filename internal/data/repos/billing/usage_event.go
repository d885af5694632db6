package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type UsageEventRepo interface {
	Create(dbc dbctx.Context, ev *types.UsageEvent) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.UsageEvent, error)
	CountByType(dbc dbctx.Context, userID uuid.UUID, eventType string, since time.Time) (int64, error)
	ListByGeneration(dbc dbctx.Context, generationID uuid.UUID) ([]*types.UsageEvent, error)
}

type usageEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUsageEventRepo(db *gorm.DB, baseLog *logger.Logger) UsageEventRepo {
	return &usageEventRepo{db: db, log: baseLog.With("repo", "UsageEventRepo")}
}

func (r *usageEventRepo) Create(dbc dbctx.Context, ev *types.UsageEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	return dbc.Conn(r.db).Create(ev).Error
}

func (r *usageEventRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.UsageEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*types.UsageEvent
	err := dbc.Conn(r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *usageEventRepo) CountByType(dbc dbctx.Context, userID uuid.UUID, eventType string, since time.Time) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.UsageEvent{}).
		Where("user_id = ? AND event_type = ? AND created_at >= ?", userID, eventType, since).
		Count(&n).Error
	return n, err
}

func (r *usageEventRepo) ListByGeneration(dbc dbctx.Context, generationID uuid.UUID) ([]*types.UsageEvent, error) {
	var out []*types.UsageEvent
	err := dbc.Conn(r.db).
		Where("generation_id = ?", generationID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

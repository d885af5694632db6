package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type WebhookEventRepo interface {
	// Record inserts the delivery and reports false when (provider, event id) was seen before.
	Record(dbc dbctx.Context, ev *types.WebhookEvent) (bool, error)
	MarkStatus(dbc dbctx.Context, id uuid.UUID, status, errMsg string) error
}

type webhookEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWebhookEventRepo(db *gorm.DB, baseLog *logger.Logger) WebhookEventRepo {
	return &webhookEventRepo{db: db, log: baseLog.With("repo", "WebhookEventRepo")}
}

func (r *webhookEventRepo) Record(dbc dbctx.Context, ev *types.WebhookEvent) (bool, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	res := dbc.Conn(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *webhookEventRepo) MarkStatus(dbc dbctx.Context, id uuid.UUID, status, errMsg string) error {
	now := time.Now()
	return dbc.Conn(r.db).
		Model(&types.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"error":        errMsg,
			"processed_at": now,
			"updated_at":   now,
		}).Error
}

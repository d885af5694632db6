package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type SubscriptionRepo interface {
	Create(dbc dbctx.Context, sub *types.Subscription) (*types.Subscription, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subscription, error)
	GetActive(dbc dbctx.Context, userID uuid.UUID, companyID string) (*types.Subscription, error)
	// GetActiveForUpdate row-locks the active subscription; call inside a transaction.
	GetActiveForUpdate(dbc dbctx.Context, userID uuid.UUID, companyID string) (*types.Subscription, error)
	IncrementUsage(dbc dbctx.Context, id uuid.UUID) (int, error)
	ResetCycle(dbc dbctx.Context, id uuid.UUID, start, end time.Time) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type subscriptionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubscriptionRepo(db *gorm.DB, baseLog *logger.Logger) SubscriptionRepo {
	return &subscriptionRepo{db: db, log: baseLog.With("repo", "SubscriptionRepo")}
}

func (r *subscriptionRepo) Create(dbc dbctx.Context, sub *types.Subscription) (*types.Subscription, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Status == "" {
		sub.Status = billing.SubscriptionActive
	}
	if err := dbc.Conn(r.db).Create(sub).Error; err != nil {
		return nil, err
	}
	return sub, nil
}

func (r *subscriptionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Subscription, error) {
	var sub types.Subscription
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&sub).Error; err != nil {
		return nil, err
	}
	if sub.ID == uuid.Nil {
		return nil, nil
	}
	return &sub, nil
}

func (r *subscriptionRepo) GetActive(dbc dbctx.Context, userID uuid.UUID, companyID string) (*types.Subscription, error) {
	return r.getActive(dbc.Conn(r.db), userID, companyID)
}

func (r *subscriptionRepo) GetActiveForUpdate(dbc dbctx.Context, userID uuid.UUID, companyID string) (*types.Subscription, error) {
	return r.getActive(dbc.Conn(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), userID, companyID)
}

func (r *subscriptionRepo) getActive(q *gorm.DB, userID uuid.UUID, companyID string) (*types.Subscription, error) {
	var sub types.Subscription
	err := q.
		Where("user_id = ? AND whop_company_id = ? AND status = ?", userID, companyID, billing.SubscriptionActive).
		Order("created_at DESC").
		Limit(1).
		Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == uuid.Nil {
		return nil, nil
	}
	return &sub, nil
}

// IncrementUsage adds one generation unconditionally and returns the new count.
func (r *subscriptionRepo) IncrementUsage(dbc dbctx.Context, id uuid.UUID) (int, error) {
	var out types.Subscription
	res := dbc.Conn(r.db).
		Model(&out).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "current_usage"}}}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_usage": gorm.Expr("current_usage + 1"),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return out.CurrentUsage, nil
}

func (r *subscriptionRepo) ResetCycle(dbc dbctx.Context, id uuid.UUID, start, end time.Time) error {
	return dbc.Conn(r.db).
		Model(&types.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_usage":       0,
			"billing_cycle_start": start,
			"billing_cycle_end":   end,
			"updated_at":          time.Now(),
		}).Error
}

func (r *subscriptionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).Model(&types.Subscription{}).Where("id = ?", id).Updates(updates).Error
}

package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos/pgerr"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type PurchasedCreditRepo interface {
	// Create returns ErrAlreadyProcessed when the payment id was already granted.
	Create(dbc dbctx.Context, credit *types.PurchasedCredit) (*types.PurchasedCredit, error)
	GetByPaymentID(dbc dbctx.Context, paymentID string) (*types.PurchasedCredit, error)
	SumAvailable(dbc dbctx.Context, userID uuid.UUID) (int, error)
	// ConsumeOldest takes one unit from the oldest available credit. Returns nil when none is left.
	ConsumeOldest(dbc dbctx.Context, userID uuid.UUID) (*types.PurchasedCredit, error)
}

type purchasedCreditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPurchasedCreditRepo(db *gorm.DB, baseLog *logger.Logger) PurchasedCreditRepo {
	return &purchasedCreditRepo{db: db, log: baseLog.With("repo", "PurchasedCreditRepo")}
}

func (r *purchasedCreditRepo) Create(dbc dbctx.Context, credit *types.PurchasedCredit) (*types.PurchasedCredit, error) {
	if credit.ID == uuid.Nil {
		credit.ID = uuid.New()
	}
	if credit.Status == "" {
		credit.Status = billing.CreditAvailable
	}
	if credit.PurchasedAt.IsZero() {
		credit.PurchasedAt = time.Now().UTC()
	}
	if err := dbc.Conn(r.db).Create(credit).Error; err != nil {
		if pgerr.IsUniqueViolation(err) {
			return nil, pkgerrors.ErrAlreadyProcessed
		}
		return nil, err
	}
	return credit, nil
}

func (r *purchasedCreditRepo) GetByPaymentID(dbc dbctx.Context, paymentID string) (*types.PurchasedCredit, error) {
	var c types.PurchasedCredit
	if err := dbc.Conn(r.db).Where("whop_payment_id = ?", paymentID).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

func (r *purchasedCreditRepo) SumAvailable(dbc dbctx.Context, userID uuid.UUID) (int, error) {
	var total int
	err := dbc.Conn(r.db).
		Model(&types.PurchasedCredit{}).
		Select("COALESCE(SUM(credits_remaining), 0)").
		Where("user_id = ? AND status = ? AND credits_remaining > 0", userID, billing.CreditAvailable).
		Scan(&total).Error
	return total, err
}

func (r *purchasedCreditRepo) ConsumeOldest(dbc dbctx.Context, userID uuid.UUID) (*types.PurchasedCredit, error) {
	var consumed *types.PurchasedCredit
	err := dbc.Conn(r.db).Transaction(func(txx *gorm.DB) error {
		var c types.PurchasedCredit
		err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ? AND credits_remaining > 0", userID, billing.CreditAvailable).
			Order("purchased_at ASC, created_at ASC").
			Limit(1).
			Find(&c).Error
		if err != nil {
			return err
		}
		if c.ID == uuid.Nil {
			return nil
		}
		remaining := c.CreditsRemaining - 1
		status := billing.CreditAvailable
		if remaining <= 0 {
			remaining = 0
			status = billing.CreditUsed
		}
		if err := txx.Model(&types.PurchasedCredit{}).
			Where("id = ? AND credits_remaining > 0", c.ID).
			Updates(map[string]interface{}{
				"credits_remaining": remaining,
				"status":            status,
				"updated_at":        time.Now(),
			}).Error; err != nil {
			return err
		}
		c.CreditsRemaining = remaining
		c.Status = status
		consumed = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

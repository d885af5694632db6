package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CreditAvailable = "available"
	CreditUsed      = "used"
)

// PurchasedCredit is a one-off allowance. CreditsRemaining stays within
// [0, CreditsAmount]; the row flips to "used" when it reaches zero.
type PurchasedCredit struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	WhopPaymentID    string         `gorm:"column:whop_payment_id;not null;uniqueIndex" json:"whop_payment_id"`
	CreditsAmount    int            `gorm:"column:credits_amount;not null" json:"credits_amount"`
	CreditsRemaining int            `gorm:"column:credits_remaining;not null;check:credits_remaining >= 0" json:"credits_remaining"`
	AmountPaidCents  int64          `gorm:"column:amount_paid_cents;not null;default:0" json:"amount_paid_cents"`
	Status           string         `gorm:"column:status;not null;default:'available';index" json:"status"`
	Metadata         datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	PurchasedAt      time.Time      `gorm:"column:purchased_at;not null;default:now();index" json:"purchased_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PurchasedCredit) TableName() string { return "purchased_credit" }

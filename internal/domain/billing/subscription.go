package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanFree   = "free"
	PlanGrowth = "growth"

	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
)

// Subscription holds the monthly quota window. At most one active row exists
// per (user, company); enforced by a partial unique index in migrate.go.
type Subscription struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	WhopCompanyID     string         `gorm:"column:whop_company_id;not null;index" json:"whop_company_id"`
	PlanType          string         `gorm:"column:plan_type;not null;default:'free'" json:"plan_type"`
	Status            string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	MonthlyLimit      int            `gorm:"column:monthly_limit;not null" json:"monthly_limit"`
	CurrentUsage      int            `gorm:"column:current_usage;not null;default:0" json:"current_usage"`
	BillingCycleStart time.Time      `gorm:"column:billing_cycle_start;not null" json:"billing_cycle_start"`
	BillingCycleEnd   time.Time      `gorm:"column:billing_cycle_end;not null;index" json:"billing_cycle_end"`
	WhopMembershipID  *string        `gorm:"column:whop_membership_id" json:"whop_membership_id,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Subscription) TableName() string { return "subscription" }

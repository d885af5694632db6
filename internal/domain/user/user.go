package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a tenant-scoped identity. The same Whop user acting for two companies
// is two rows; (whop_user_id, whop_company_id) is unique.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	WhopUserID    string         `gorm:"column:whop_user_id;not null;uniqueIndex:idx_user_whop_identity" json:"whop_user_id"`
	WhopCompanyID string         `gorm:"column:whop_company_id;not null;uniqueIndex:idx_user_whop_identity" json:"whop_company_id"`
	Email         *string        `gorm:"column:email" json:"email,omitempty"`
	Username      *string        `gorm:"column:username" json:"username,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "app_user" }

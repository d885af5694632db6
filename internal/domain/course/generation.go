package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusPublished  = "published"

	GenerationIncluded = "included"
	GenerationOverage  = "overage"
)

// CourseGeneration is one upload-to-course attempt and the unit of billing.
// processing -> completed -> published, or processing -> failed (terminal).
type CourseGeneration struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID              uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SubscriptionID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"subscription_id"`
	PdfUploadID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"pdf_upload_id"`
	Title               string         `gorm:"column:title;not null" json:"title"`
	Status              string         `gorm:"column:status;not null;default:'processing';index" json:"status"`
	GenerationType      string         `gorm:"column:generation_type;not null;default:'included'" json:"generation_type"`
	OverageChargeCents  int64          `gorm:"column:overage_charge_cents;not null;default:0" json:"overage_charge_cents"`
	UsedPurchasedCredit bool           `gorm:"column:used_purchased_credit;not null;default:false" json:"used_purchased_credit"`
	StructureJSON       datatypes.JSON `gorm:"column:structure_json;type:jsonb" json:"structure_json,omitempty"`
	ErrorMessage        string         `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	AITokensUsed        int            `gorm:"column:ai_tokens_used;not null;default:0" json:"ai_tokens_used"`
	GenerationTimeMs    int64          `gorm:"column:generation_time_ms;not null;default:0" json:"generation_time_ms"`
	WhopExperienceID    *string        `gorm:"column:whop_experience_id" json:"whop_experience_id,omitempty"`
	WhopProductID       *string        `gorm:"column:whop_product_id" json:"whop_product_id,omitempty"`
	WhopCompanyID       string         `gorm:"column:whop_company_id;not null;default:''" json:"whop_company_id"`
	JobID               *uuid.UUID     `gorm:"type:uuid;column:job_id" json:"job_id,omitempty"`
	CompletedAt         *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	PublishedAt         *time.Time     `gorm:"column:published_at" json:"published_at,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseGeneration) TableName() string { return "course_generation" }

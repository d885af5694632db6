package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventGenerationStarted   = "generation_started"
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
	EventOverageCharged      = "overage_charged"
	EventCoursePublished     = "course_published"
	EventPreviewViewed       = "preview_viewed"
	EventCreditsGranted      = "credits_granted"
)

// UsageEvent is append-only. No UpdatedAt/DeletedAt on purpose.
type UsageEvent struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	GenerationID *uuid.UUID     `gorm:"type:uuid;column:generation_id;index" json:"generation_id,omitempty"`
	EventType    string         `gorm:"column:event_type;not null;index" json:"event_type"`
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (UsageEvent) TableName() string { return "usage_event" }

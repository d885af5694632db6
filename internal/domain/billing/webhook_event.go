package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	WebhookReceived  = "received"
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookFailed    = "failed"
)

// WebhookEvent dedupes provider deliveries on (provider, provider_event_id).
type WebhookEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Provider        string         `gorm:"column:provider;not null;uniqueIndex:idx_webhook_event_provider_event" json:"provider"`
	ProviderEventID string         `gorm:"column:provider_event_id;not null;uniqueIndex:idx_webhook_event_provider_event" json:"provider_event_id"`
	Action          string         `gorm:"column:action;not null;index" json:"action"`
	Status          string         `gorm:"column:status;not null;default:'received';index" json:"status"`
	Error           string         `gorm:"column:error" json:"error,omitempty"`
	Payload         datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	ProcessedAt     *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (WebhookEvent) TableName() string { return "webhook_event" }

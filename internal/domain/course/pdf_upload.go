package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ExtractionUploading = "uploading"
	ExtractionReady     = "ready"
	ExtractionFailed    = "failed"
)

type PdfUpload struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Filename         string         `gorm:"column:filename;not null" json:"filename"`
	StorageKey       string         `gorm:"column:storage_key;not null" json:"storage_key"`
	StorageURL       string         `gorm:"column:storage_url;not null" json:"storage_url"`
	FileSize         int64          `gorm:"column:file_size;not null" json:"file_size"`
	MimeType         string         `gorm:"column:mime_type;not null" json:"mime_type"`
	PageCount        int            `gorm:"column:page_count;not null;default:0" json:"page_count"`
	ExtractionStatus string         `gorm:"column:extraction_status;not null;default:'uploading';index" json:"extraction_status"`
	ExtractedText    *string        `gorm:"column:extracted_text;type:text" json:"-"`
	ExtractionError  string         `gorm:"column:extraction_error" json:"extraction_error,omitempty"`
	ExpiresAt        time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PdfUpload) TableName() string { return "pdf_upload" }

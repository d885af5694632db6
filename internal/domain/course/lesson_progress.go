package course

import (
	"time"

	"github.com/google/uuid"
)

type LessonProgress struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_progress_user_lesson" json:"user_id"`
	WhopLessonID     string     `gorm:"column:whop_lesson_id;not null;uniqueIndex:idx_lesson_progress_user_lesson" json:"whop_lesson_id"`
	WhopExperienceID string     `gorm:"column:whop_experience_id;not null;index" json:"whop_experience_id"`
	Completed        bool       `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (LessonProgress) TableName() string { return "lesson_progress" }

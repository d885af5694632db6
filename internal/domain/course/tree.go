package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LessonText  = "text"
	LessonVideo = "video"
	LessonPDF   = "pdf"
	LessonQuiz  = "quiz"
)

// Tree rows are hard-deleted (cascading to descendants) so order_index
// uniqueness only ever considers live siblings.

type CourseModule struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GenerationID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_module_generation_order" json:"generation_id"`
	Title            string    `gorm:"column:title;not null" json:"title"`
	Description      string    `gorm:"column:description;type:text" json:"description,omitempty"`
	OrderIndex       int       `gorm:"column:order_index;not null;uniqueIndex:idx_module_generation_order" json:"order_index"`
	EstimatedMinutes int       `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	WhopCourseID     *string   `gorm:"column:whop_course_id" json:"whop_course_id,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`

	Chapters []*CourseChapter `gorm:"-" json:"chapters,omitempty"`
}

func (CourseModule) TableName() string { return "course_module" }

type CourseChapter struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ModuleID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chapter_module_order" json:"module_id"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	Description        string         `gorm:"column:description;type:text" json:"description,omitempty"`
	LearningObjectives datatypes.JSON `gorm:"column:learning_objectives;type:jsonb" json:"learning_objectives,omitempty"`
	OrderIndex         int            `gorm:"column:order_index;not null;uniqueIndex:idx_chapter_module_order" json:"order_index"`
	EstimatedMinutes   int            `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	WhopChapterID      *string        `gorm:"column:whop_chapter_id" json:"whop_chapter_id,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`

	Lessons []*CourseLesson `gorm:"-" json:"lessons,omitempty"`
}

func (CourseChapter) TableName() string { return "course_chapter" }

type CourseLesson struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ChapterID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_lesson_chapter_order" json:"chapter_id"`
	Title            string    `gorm:"column:title;not null" json:"title"`
	LessonType       string    `gorm:"column:lesson_type;not null;default:'text'" json:"lesson_type"`
	Content          string    `gorm:"column:content;type:text" json:"content"`
	KeyTakeaway      string    `gorm:"column:key_takeaway;type:text" json:"key_takeaway,omitempty"`
	EstimatedMinutes int       `gorm:"column:estimated_minutes;not null;default:0" json:"estimated_minutes"`
	WordCount        int       `gorm:"column:word_count;not null;default:0" json:"word_count"`
	OrderIndex       int       `gorm:"column:order_index;not null;uniqueIndex:idx_lesson_chapter_order" json:"order_index"`
	WhopLessonID     *string   `gorm:"column:whop_lesson_id" json:"whop_lesson_id,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (CourseLesson) TableName() string { return "course_lesson" }

func ValidLessonType(t string) bool {
	switch t {
	case LessonText, LessonVideo, LessonPDF, LessonQuiz:
		return true
	}
	return false
}

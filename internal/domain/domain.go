package domain

import (
	"github.com/yungbote/coursebuilder-backend/internal/domain/billing"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/domain/jobs"
	"github.com/yungbote/coursebuilder-backend/internal/domain/user"
)

type User = user.User

type Subscription = billing.Subscription
type PurchasedCredit = billing.PurchasedCredit
type UsageEvent = billing.UsageEvent
type WebhookEvent = billing.WebhookEvent

type PdfUpload = course.PdfUpload
type CourseGeneration = course.CourseGeneration
type CourseModule = course.CourseModule
type CourseChapter = course.CourseChapter
type CourseLesson = course.CourseLesson
type LessonProgress = course.LessonProgress

type JobRun = jobs.JobRun

// AllModels is the AutoMigrate set, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Subscription{},
		&PurchasedCredit{},
		&UsageEvent{},
		&WebhookEvent{},
		&PdfUpload{},
		&CourseGeneration{},
		&CourseModule{},
		&CourseChapter{},
		&CourseLesson{},
		&LessonProgress{},
		&JobRun{},
	}
}

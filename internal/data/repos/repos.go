package repos

import (
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/billing"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/course"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/jobs"
	"github.com/yungbote/coursebuilder-backend/internal/data/repos/user"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type UserRepo = user.UserRepo

type SubscriptionRepo = billing.SubscriptionRepo
type PurchasedCreditRepo = billing.PurchasedCreditRepo
type UsageEventRepo = billing.UsageEventRepo
type WebhookEventRepo = billing.WebhookEventRepo

type PdfUploadRepo = course.PdfUploadRepo
type CourseGenerationRepo = course.CourseGenerationRepo
type CourseTreeRepo = course.CourseTreeRepo
type LessonProgressRepo = course.LessonProgressRepo
type GenerationCounts = course.GenerationCounts

type JobRunRepo = jobs.JobRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewSubscriptionRepo(db *gorm.DB, baseLog *logger.Logger) SubscriptionRepo {
	return billing.NewSubscriptionRepo(db, baseLog)
}
func NewPurchasedCreditRepo(db *gorm.DB, baseLog *logger.Logger) PurchasedCreditRepo {
	return billing.NewPurchasedCreditRepo(db, baseLog)
}
func NewUsageEventRepo(db *gorm.DB, baseLog *logger.Logger) UsageEventRepo {
	return billing.NewUsageEventRepo(db, baseLog)
}
func NewWebhookEventRepo(db *gorm.DB, baseLog *logger.Logger) WebhookEventRepo {
	return billing.NewWebhookEventRepo(db, baseLog)
}

func NewPdfUploadRepo(db *gorm.DB, baseLog *logger.Logger) PdfUploadRepo {
	return course.NewPdfUploadRepo(db, baseLog)
}
func NewCourseGenerationRepo(db *gorm.DB, baseLog *logger.Logger) CourseGenerationRepo {
	return course.NewCourseGenerationRepo(db, baseLog)
}
func NewCourseTreeRepo(db *gorm.DB, baseLog *logger.Logger) CourseTreeRepo {
	return course.NewCourseTreeRepo(db, baseLog)
}
func NewLessonProgressRepo(db *gorm.DB, baseLog *logger.Logger) LessonProgressRepo {
	return course.NewLessonProgressRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}

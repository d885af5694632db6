package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type Repos struct {
	User             repos.UserRepo
	Subscription     repos.SubscriptionRepo
	PurchasedCredit  repos.PurchasedCreditRepo
	UsageEvent       repos.UsageEventRepo
	WebhookEvent     repos.WebhookEventRepo
	PdfUpload        repos.PdfUploadRepo
	CourseGeneration repos.CourseGenerationRepo
	CourseTree       repos.CourseTreeRepo
	LessonProgress   repos.LessonProgressRepo
	JobRun           repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:             repos.NewUserRepo(db, log),
		Subscription:     repos.NewSubscriptionRepo(db, log),
		PurchasedCredit:  repos.NewPurchasedCreditRepo(db, log),
		UsageEvent:       repos.NewUsageEventRepo(db, log),
		WebhookEvent:     repos.NewWebhookEventRepo(db, log),
		PdfUpload:        repos.NewPdfUploadRepo(db, log),
		CourseGeneration: repos.NewCourseGenerationRepo(db, log),
		CourseTree:       repos.NewCourseTreeRepo(db, log),
		LessonProgress:   repos.NewLessonProgressRepo(db, log),
		JobRun:           repos.NewJobRunRepo(db, log),
	}
}

package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/coursebuilder-backend/internal/modules/coursegen"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type Services struct {
	JobNotifier        services.JobNotifier
	GenerationNotifier services.GenerationNotifier

	Users      services.UserService
	Ledger     services.UsageLedger
	Uploads    services.UploadService
	Extraction services.ExtractionService
	Jobs       services.JobService
	Generation services.GenerationService
	Pipeline   services.GenerationPipeline
	Tree       services.CourseTreeService
	Publish    services.PublishService
	Webhooks   services.WebhookService
	Checkout   services.CheckoutService
	Progress   services.ProgressService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) Services {
	log.Info("Wiring services...")
	var s Services

	s.JobNotifier = services.NewJobNotifier(c.Bus, log)
	s.GenerationNotifier = services.NewGenerationNotifier(c.Bus, log)

	s.Users = services.NewUserService(log, r.User)
	s.Ledger = services.NewUsageLedger(db, log, cfg.Billing, r.Subscription, r.PurchasedCredit, r.UsageEvent, r.CourseGeneration)
	s.Uploads = services.NewUploadService(log, cfg.Upload, r.PdfUpload, c.Blobs)

	var ocr pdftext.OCR
	if c.OCR != nil {
		ocr = c.OCR
	}
	s.Extraction = services.NewExtractionService(log, r.PdfUpload, c.Blobs, pdftext.NewExtractor(log, ocr), cfg.Upload.MaxBytes)

	s.Jobs = services.NewJobService(log, r.JobRun, s.JobNotifier)
	s.Generation = services.NewGenerationService(db, log, r.CourseGeneration, r.PdfUpload, r.CourseTree, r.UsageEvent, r.JobRun, s.Ledger, s.Jobs, s.GenerationNotifier)

	generator := coursegen.NewGenerator(log, c.LLM, cfg.Pipeline.Generator)
	s.Pipeline = services.NewGenerationPipeline(db, log, cfg.Pipeline, r.CourseGeneration, r.PdfUpload, r.CourseTree, r.UsageEvent, s.Extraction, generator, s.GenerationNotifier)

	s.Tree = services.NewCourseTreeService(log, s.Generation, r.CourseTree)
	s.Publish = services.NewPublishService(db, log, cfg.Whop.Publish, c.Whop, s.Generation, r.CourseGeneration, r.CourseTree, r.UsageEvent, s.GenerationNotifier)
	s.Webhooks = services.NewWebhookService(db, log, cfg.Whop.Webhook, r.WebhookEvent, s.Users, s.Ledger)
	s.Checkout = services.NewCheckoutService(log, cfg.Billing, cfg.Whop.Publish.CompanyID, c.Whop)
	s.Progress = services.NewProgressService(log, r.LessonProgress)
	return s
}

package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/coursebuilder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursebuilder-backend/internal/http/middleware"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Webhook    *httpH.WebhookHandler
	User       *httpH.UserHandler
	Checkout   *httpH.CheckoutHandler
	Upload     *httpH.UploadHandler
	Generation *httpH.GenerationHandler
	Tree       *httpH.TreeHandler
	Progress   *httpH.ProgressHandler
	Job        *httpH.JobHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, cfg Config, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(dbPinger{db: db}),
		Webhook:    httpH.NewWebhookHandler(log, s.Webhooks),
		User:       httpH.NewUserHandler(s.Ledger),
		Checkout:   httpH.NewCheckoutHandler(s.Checkout),
		Upload:     httpH.NewUploadHandler(log, s.Uploads, s.Extraction, cfg.Upload.MaxBytes),
		Generation: httpH.NewGenerationHandler(log, s.Generation, s.Publish),
		Tree:       httpH.NewTreeHandler(s.Tree),
		Progress:   httpH.NewProgressHandler(s.Progress),
		Job:        httpH.NewJobHandler(s.Jobs),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, c Clients, s Services) *httpMW.AuthMiddleware {
	return httpMW.NewAuthMiddleware(log, c.Verifier, s.Users, cfg.Whop.Publish.CompanyID)
}

type dbPinger struct {
	db *gorm.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

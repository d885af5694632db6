package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/coursebuilder-backend/internal/http/handlers"
	httpMW "github.com/yungbote/coursebuilder-backend/internal/http/middleware"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler     *httpH.HealthHandler
	WebhookHandler    *httpH.WebhookHandler
	UserHandler       *httpH.UserHandler
	CheckoutHandler   *httpH.CheckoutHandler
	UploadHandler     *httpH.UploadHandler
	GenerationHandler *httpH.GenerationHandler
	TreeHandler       *httpH.TreeHandler
	ProgressHandler   *httpH.ProgressHandler
	JobHandler        *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Signature-authenticated
		if cfg.WebhookHandler != nil {
			api.POST("/webhooks/whop", cfg.WebhookHandler.Whop)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.GET("/usage", cfg.UserHandler.GetUsage)
		}

		if cfg.CheckoutHandler != nil {
			protected.POST("/checkout", cfg.CheckoutHandler.Create)
		}

		if cfg.UploadHandler != nil {
			protected.POST("/uploads", cfg.UploadHandler.Upload)
			protected.GET("/uploads/:id", cfg.UploadHandler.Get)
		}

		if cfg.GenerationHandler != nil {
			protected.POST("/generations", cfg.GenerationHandler.Start)
			protected.GET("/generations", cfg.GenerationHandler.List)
			protected.GET("/generations/:id", cfg.GenerationHandler.Get)
			protected.GET("/generations/:id/status", cfg.GenerationHandler.Status)
			protected.POST("/generations/:id/publish", cfg.GenerationHandler.Publish)
		}

		// Tree edits
		if cfg.TreeHandler != nil {
			protected.POST("/generations/:id/modules", cfg.TreeHandler.CreateModule)
			protected.PATCH("/generations/:id/modules/:moduleId", cfg.TreeHandler.UpdateModule)
			protected.DELETE("/generations/:id/modules/:moduleId", cfg.TreeHandler.DeleteModule)
			protected.POST("/generations/:id/chapters", cfg.TreeHandler.CreateChapter)
			protected.PATCH("/generations/:id/chapters/:chapterId", cfg.TreeHandler.UpdateChapter)
			protected.DELETE("/generations/:id/chapters/:chapterId", cfg.TreeHandler.DeleteChapter)
			protected.POST("/generations/:id/lessons", cfg.TreeHandler.CreateLesson)
			protected.PATCH("/generations/:id/lessons/:lessonId", cfg.TreeHandler.UpdateLesson)
			protected.DELETE("/generations/:id/lessons/:lessonId", cfg.TreeHandler.DeleteLesson)
		}

		if cfg.ProgressHandler != nil {
			protected.GET("/progress/experiences/:experienceId", cfg.ProgressHandler.ListExperience)
			protected.POST("/progress/:lessonId", cfg.ProgressHandler.MarkComplete)
			protected.GET("/progress/:lessonId", cfg.ProgressHandler.Get)
		}

		if cfg.JobHandler != nil {
			protected.GET("/jobs/:id", cfg.JobHandler.GetJob)
		}
	}

	return r
}

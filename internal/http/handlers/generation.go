package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/platform/apierr"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type GenerationHandler struct {
	log     *logger.Logger
	gens    services.GenerationService
	publish services.PublishService
}

func NewGenerationHandler(log *logger.Logger, gens services.GenerationService, publish services.PublishService) *GenerationHandler {
	return &GenerationHandler{
		log:     log.With("handler", "GenerationHandler"),
		gens:    gens,
		publish: publish,
	}
}

type startGenerationRequest struct {
	PdfUploadID uuid.UUID `json:"pdfUploadId" binding:"required"`
	CustomTitle string    `json:"customTitle"`
}

// POST /api/generations
func (h *GenerationHandler) Start(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req startGenerationRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.gens.Start(dbcFor(c), user, services.StartGenerationInput{
		PdfUploadID: req.PdfUploadID,
		CustomTitle: req.CustomTitle,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// GET /api/generations?limit=
func (h *GenerationHandler) List(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	rows, err := h.gens.List(dbcFor(c), user.ID, queryInt(c, "limit", 20))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"generations": rows})
}

// GET /api/generations/:id
func (h *GenerationHandler) Get(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.gens.Get(dbcFor(c), user.ID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"generation": view})
}

// GET /api/generations/:id/status
func (h *GenerationHandler) Status(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	st, err := h.gens.GetStatus(dbcFor(c), user.ID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, st)
}

// POST /api/generations/:id/publish
func (h *GenerationHandler) Publish(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req services.PublishInput
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.publish.Publish(dbcFor(c), user, id, req)
	if err != nil {
		var pubErr *services.PublishError
		if errors.As(err, &pubErr) {
			h.log.Error("publish failed", "generation_id", id, "error", err)
			response.RespondErrDetails(c, apierr.New(http.StatusBadGateway, "publish_failed", err), gin.H{"created": pubErr.Counts})
			return
		}
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

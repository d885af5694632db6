package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	log      *logger.Logger
	webhooks services.WebhookService
}

func NewWebhookHandler(log *logger.Logger, webhooks services.WebhookService) *WebhookHandler {
	return &WebhookHandler{log: log.With("handler", "WebhookHandler"), webhooks: webhooks}
}

// POST /api/webhooks/whop
func (h *WebhookHandler) Whop(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		response.RespondErr(c, fmt.Errorf("%w: read body: %v", apperr.ErrInvalidArgument, err))
		return
	}
	if len(body) > maxWebhookBody {
		response.RespondErr(c, fmt.Errorf("%w: body too large", apperr.ErrInvalidArgument))
		return
	}
	out, err := h.webhooks.Handle(c.Request.Context(), c.GetHeader(whop.HeaderSignature), body)
	if err != nil {
		h.log.Warn("webhook rejected", "error", err)
		response.RespondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": out.Status, "eventId": out.EventID})
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type UserHandler struct {
	ledger services.UsageLedger
}

func NewUserHandler(ledger services.UsageLedger) *UserHandler {
	return &UserHandler{ledger: ledger}
}

// GET /api/me
func (h *UserHandler) GetMe(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	sub, err := h.ledger.EnsureSubscription(dbcFor(c), user)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"user": user, "subscription": sub})
}

// GET /api/usage
func (h *UserHandler) GetUsage(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	summary, err := h.ledger.UsageSummary(dbcFor(c), user)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, summary)
}

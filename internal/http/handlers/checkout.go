package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type CheckoutHandler struct {
	checkout services.CheckoutService
}

func NewCheckoutHandler(checkout services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// POST /api/checkout {plan}
func (h *CheckoutHandler) Create(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req struct {
		Plan string `json:"plan" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.checkout.Create(c.Request.Context(), user, strings.TrimSpace(c.GetHeader(whop.HeaderCompanyID)), req.Plan)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

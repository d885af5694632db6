package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

// Lesson ids here are the platform's ids, not ours.
type ProgressHandler struct {
	progress services.ProgressService
}

func NewProgressHandler(progress services.ProgressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// POST /api/progress/:lessonId
func (h *ProgressHandler) MarkComplete(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	var req struct {
		ExperienceID string `json:"experienceId" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}
	lp, err := h.progress.MarkComplete(dbcFor(c), user, strings.TrimSpace(c.Param("lessonId")), req.ExperienceID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": lp})
}

// GET /api/progress/:lessonId
func (h *ProgressHandler) Get(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	lp, err := h.progress.GetProgress(dbcFor(c), user, strings.TrimSpace(c.Param("lessonId")))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"progress": lp})
}

// GET /api/progress/experiences/:experienceId
func (h *ProgressHandler) ListExperience(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	expID := strings.TrimSpace(c.Param("experienceId"))
	if expID == "" {
		response.RespondErr(c, fmt.Errorf("%w: experienceId required", apperr.ErrInvalidArgument))
		return
	}
	out, err := h.progress.ListExperienceProgress(dbcFor(c), user, expID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	jobID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	job, err := h.jobs.GetForUser(dbcFor(c), user.ID, jobID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

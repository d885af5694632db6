package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type UploadHandler struct {
	log        *logger.Logger
	uploads    services.UploadService
	extraction services.ExtractionService
	maxBytes   int64
}

func NewUploadHandler(log *logger.Logger, uploads services.UploadService, extraction services.ExtractionService, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		log:        log.With("handler", "UploadHandler"),
		uploads:    uploads,
		extraction: extraction,
		maxBytes:   maxBytes,
	}
}

// POST /api/uploads (multipart "file")
func (h *UploadHandler) Upload(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	if h.maxBytes > 0 {
		// Multipart framing needs some headroom over the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			response.RespondErr(c, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrInvalidArgument, h.maxBytes))
			return
		}
		response.RespondErr(c, fmt.Errorf("%w: missing multipart field \"file\"", apperr.ErrInvalidArgument))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondErr(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondErr(c, fmt.Errorf("read upload: %w", err))
		return
	}

	dbc := dbcFor(c)
	up, err := h.uploads.Upload(dbc, user, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		response.RespondErr(c, err)
		return
	}

	extracted, err := h.extraction.Extract(dbc, up.ID)
	if err != nil {
		var exErr *pdftext.ExtractionError
		if !errors.As(err, &exErr) {
			response.RespondErr(c, err)
			return
		}
		// The failure is persisted on the row; the client sees status=failed.
		h.log.Warn("extraction failed", "upload_id", up.ID, "error", err)
	}
	if extracted != nil {
		up = extracted
	}
	response.RespondCreated(c, gin.H{"upload": up})
}

// GET /api/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	user := requireUser(c)
	if user == nil {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	up, err := h.uploads.Get(dbcFor(c), user.ID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"upload": up})
}

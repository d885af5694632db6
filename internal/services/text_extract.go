package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/observability"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/gcp"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
)

type ExtractionService interface {
	// Extract fetches the stored PDF, extracts its text and persists the
	// outcome. Re-running against a ready upload overwrites the same fields.
	Extract(dbc dbctx.Context, uploadID uuid.UUID) (*types.PdfUpload, error)
	// EnsureText returns cached text or extracts it first.
	EnsureText(dbc dbctx.Context, upload *types.PdfUpload) (string, error)
}

type extractionService struct {
	log       *logger.Logger
	uploads   repos.PdfUploadRepo
	blobs     gcp.BlobStore
	extractor *pdftext.Extractor
	maxBytes  int64
}

func NewExtractionService(baseLog *logger.Logger, uploads repos.PdfUploadRepo, blobs gcp.BlobStore, extractor *pdftext.Extractor, maxBytes int64) ExtractionService {
	return &extractionService{
		log:       baseLog.With("service", "ExtractionService"),
		uploads:   uploads,
		blobs:     blobs,
		extractor: extractor,
		maxBytes:  maxBytes,
	}
}

func (s *extractionService) Extract(dbc dbctx.Context, uploadID uuid.UUID) (*types.PdfUpload, error) {
	up, err := s.uploads.GetByID(dbc, uploadID)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, apperr.ErrNotFound
	}
	if _, err := s.run(dbc, up); err != nil {
		return up, err
	}
	return up, nil
}

func (s *extractionService) EnsureText(dbc dbctx.Context, up *types.PdfUpload) (string, error) {
	if up == nil {
		return "", apperr.ErrNotFound
	}
	if up.ExtractionStatus == course.ExtractionReady && up.ExtractedText != nil && *up.ExtractedText != "" {
		return *up.ExtractedText, nil
	}
	return s.run(dbc, up)
}

func (s *extractionService) run(dbc dbctx.Context, up *types.PdfUpload) (string, error) {
	ctx, span := observability.StartSpan(dbc.Ctx, "extraction.pdf")
	defer span.End()
	start := time.Now()

	res, err := s.fetchAndExtract(ctx, up.StorageKey)
	if err != nil {
		observability.Current().ObserveGenerationStage("extract", "error", time.Since(start))
		msg := err.Error()
		if uErr := s.uploads.UpdateFields(dbc, up.ID, map[string]interface{}{
			"extraction_status": course.ExtractionFailed,
			"extraction_error":  msg,
		}); uErr != nil {
			s.log.Error("persist extraction failure", "upload_id", up.ID, "error", uErr)
		}
		up.ExtractionStatus = course.ExtractionFailed
		up.ExtractionError = msg
		s.log.Warn("pdf extraction failed", "upload_id", up.ID, "error", err)
		return "", err
	}

	text := res.Text
	if err := s.uploads.UpdateFields(dbc, up.ID, map[string]interface{}{
		"extraction_status": course.ExtractionReady,
		"extracted_text":    text,
		"extraction_error":  "",
		"page_count":        res.PageCount,
	}); err != nil {
		return "", fmt.Errorf("persist extracted text: %w", err)
	}
	up.ExtractionStatus = course.ExtractionReady
	up.ExtractedText = &text
	up.ExtractionError = ""
	up.PageCount = res.PageCount
	observability.Current().ObserveGenerationStage("extract", "ok", time.Since(start))
	s.log.Info("pdf extracted", "upload_id", up.ID, "pages", res.PageCount, "chars", len(text), "ocr", res.UsedOCR)
	return text, nil
}

func (s *extractionService) fetchAndExtract(ctx context.Context, key string) (pdftext.Result, error) {
	rc, err := s.blobs.Open(ctx, key)
	if err != nil {
		return pdftext.Result{}, &pdftext.ExtractionError{Reason: pdftext.ReasonFetch, Err: err}
	}
	defer rc.Close()
	limit := s.maxBytes
	if limit <= 0 {
		limit = DefaultUploadConfig().MaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return pdftext.Result{}, &pdftext.ExtractionError{Reason: pdftext.ReasonFetch, Err: err}
	}
	if int64(len(data)) > limit {
		return pdftext.Result{}, &pdftext.ExtractionError{Reason: pdftext.ReasonFetch, Err: errors.New("stored object exceeds upload limit")}
	}
	return s.extractor.Extract(ctx, data)
}

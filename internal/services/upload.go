package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/domain/course"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/gcp"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/pdftext"
)

const pdfMime = "application/pdf"

type UploadConfig struct {
	MaxBytes           int64         `yaml:"max_bytes" validate:"gt=0"`
	Expiry             time.Duration `yaml:"expiry" validate:"gt=0"`
	DeleteExpiredBlobs bool          `yaml:"delete_expired_blobs"`
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxBytes: 50 << 20,
		Expiry:   30 * 24 * time.Hour,
	}
}

type UploadService interface {
	Upload(dbc dbctx.Context, user *types.User, filename, mimeType string, data []byte) (*types.PdfUpload, error)
	Get(dbc dbctx.Context, userID, id uuid.UUID) (*types.PdfUpload, error)
	// ExpireOld soft-deletes uploads past their expiry and drops their cached text.
	ExpireOld(ctx context.Context, limit int) (int, error)
}

type uploadService struct {
	log     *logger.Logger
	cfg     UploadConfig
	uploads repos.PdfUploadRepo
	blobs   gcp.BlobStore
	now     func() time.Time
}

func NewUploadService(baseLog *logger.Logger, cfg UploadConfig, uploads repos.PdfUploadRepo, blobs gcp.BlobStore) UploadService {
	return &uploadService{
		log:     baseLog.With("service", "UploadService"),
		cfg:     cfg,
		uploads: uploads,
		blobs:   blobs,
		now:     time.Now,
	}
}

func (s *uploadService) Upload(dbc dbctx.Context, user *types.User, filename, mimeType string, data []byte) (*types.PdfUpload, error) {
	if user == nil {
		return nil, apperr.ErrUnauthorized
	}
	if err := s.validate(filename, mimeType, data); err != nil {
		return nil, err
	}
	pages, err := pdftext.Inspect(data)
	if err != nil {
		var xe *pdftext.ExtractionError
		if errors.As(err, &xe) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidArgument, xe.Error())
		}
		return nil, fmt.Errorf("%w: invalid pdf", apperr.ErrInvalidArgument)
	}

	key := BlobKey(user.ID, filename)
	if err := s.blobs.Put(dbc.Ctx, key, bytes.NewReader(data), pdfMime); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	row := &types.PdfUpload{
		ID:               uuid.New(),
		UserID:           user.ID,
		Filename:         filename,
		StorageKey:       key,
		StorageURL:       s.blobs.PublicURL(key),
		FileSize:         int64(len(data)),
		MimeType:         pdfMime,
		PageCount:        pages,
		ExtractionStatus: course.ExtractionUploading,
		ExpiresAt:        s.now().Add(s.cfg.Expiry),
	}
	out, err := s.uploads.Create(dbc, row)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	s.log.Info("pdf uploaded", "upload_id", out.ID, "user_id", user.ID, "bytes", out.FileSize, "pages", pages)
	return out, nil
}

func (s *uploadService) validate(filename, mimeType string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename required", apperr.ErrInvalidArgument)
	}
	mt := strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	if mt != pdfMime && !(mt == "application/octet-stream" && strings.EqualFold(path.Ext(filename), ".pdf")) {
		return fmt.Errorf("%w: only PDF files are supported", apperr.ErrInvalidArgument)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", apperr.ErrInvalidArgument)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrInvalidArgument, s.cfg.MaxBytes)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data[:min(len(data), 1024)], "\x00\r\n\t "), []byte("%PDF-")) {
		return fmt.Errorf("%w: file is not a PDF", apperr.ErrInvalidArgument)
	}
	return nil
}

func (s *uploadService) Get(dbc dbctx.Context, userID, id uuid.UUID) (*types.PdfUpload, error) {
	up, err := s.uploads.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, apperr.ErrNotFound
	}
	if up.UserID != userID {
		return nil, apperr.ErrForbidden
	}
	return up, nil
}

func (s *uploadService) ExpireOld(ctx context.Context, limit int) (int, error) {
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.uploads.ListExpired(dbc, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired uploads: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
		if s.cfg.DeleteExpiredBlobs && r.StorageKey != "" {
			if err := s.blobs.Delete(ctx, r.StorageKey); err != nil {
				s.log.Warn("expired blob delete failed", "upload_id", r.ID, "error", err)
			}
		}
	}
	if err := s.uploads.SoftDelete(dbc, ids); err != nil {
		return 0, fmt.Errorf("expire uploads: %w", err)
	}
	return len(ids), nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BlobKey builds uploads/<user>/<random>-<sanitized name>.pdf.
func BlobKey(userID uuid.UUID, filename string) string {
	base := strings.TrimSuffix(path.Base(strings.ReplaceAll(filename, "\\", "/")), path.Ext(filename))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "document"
	}
	if len(base) > 80 {
		base = base[:80]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("uploads/%s/%s-%s.pdf", userID, suffix, base)
}

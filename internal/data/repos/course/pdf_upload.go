package course

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type PdfUploadRepo interface {
	Create(dbc dbctx.Context, u *types.PdfUpload) (*types.PdfUpload, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PdfUpload, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	ListExpired(dbc dbctx.Context, before time.Time, limit int) ([]*types.PdfUpload, error)
	SoftDelete(dbc dbctx.Context, ids []uuid.UUID) error
}

type pdfUploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPdfUploadRepo(db *gorm.DB, baseLog *logger.Logger) PdfUploadRepo {
	return &pdfUploadRepo{db: db, log: baseLog.With("repo", "PdfUploadRepo")}
}

func (r *pdfUploadRepo) Create(dbc dbctx.Context, u *types.PdfUpload) (*types.PdfUpload, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if err := dbc.Conn(r.db).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *pdfUploadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PdfUpload, error) {
	var u types.PdfUpload
	if err := dbc.Conn(r.db).Where("id = ?", id).Limit(1).Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (r *pdfUploadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.Conn(r.db).Model(&types.PdfUpload{}).Where("id = ?", id).Updates(updates).Error
}

func (r *pdfUploadRepo) ListExpired(dbc dbctx.Context, before time.Time, limit int) ([]*types.PdfUpload, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []*types.PdfUpload
	err := dbc.Conn(r.db).
		Where("expires_at < ?", before).
		Order("expires_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (r *pdfUploadRepo) SoftDelete(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	conn := dbc.Conn(r.db)
	if err := conn.Model(&types.PdfUpload{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"extracted_text": nil, "updated_at": time.Now()}).Error; err != nil {
		return err
	}
	return conn.Where("id IN ?", ids).Delete(&types.PdfUpload{}).Error
}

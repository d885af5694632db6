package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type UserRepo interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	GetByWhopIdentity(dbc dbctx.Context, whopUserID, companyID string) (*types.User, error)
	ListByWhopUserID(dbc dbctx.Context, whopUserID string) ([]*types.User, error)
	// Upsert inserts the (whop user, company) row or refreshes non-empty profile fields.
	Upsert(dbc dbctx.Context, u *types.User) (*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var u types.User
	if err := dbc.Conn(ur.db).Where("id = ?", id).Limit(1).Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (ur *userRepo) GetByWhopIdentity(dbc dbctx.Context, whopUserID, companyID string) (*types.User, error) {
	if whopUserID == "" || companyID == "" {
		return nil, nil
	}
	var u types.User
	if err := dbc.Conn(ur.db).
		Where("whop_user_id = ? AND whop_company_id = ?", whopUserID, companyID).
		Limit(1).
		Find(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, nil
	}
	return &u, nil
}

func (ur *userRepo) ListByWhopUserID(dbc dbctx.Context, whopUserID string) ([]*types.User, error) {
	var out []*types.User
	if whopUserID == "" {
		return out, nil
	}
	if err := dbc.Conn(ur.db).
		Where("whop_user_id = ?", whopUserID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (ur *userRepo) Upsert(dbc dbctx.Context, u *types.User) (*types.User, error) {
	if u == nil {
		return nil, nil
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	assign := map[string]interface{}{"updated_at": time.Now()}
	if u.Email != nil && *u.Email != "" {
		assign["email"] = *u.Email
	}
	if u.Username != nil && *u.Username != "" {
		assign["username"] = *u.Username
	}
	err := dbc.Conn(ur.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "whop_user_id"}, {Name: "whop_company_id"}},
			DoUpdates: clause.Assignments(assign),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	return ur.GetByWhopIdentity(dbc, u.WhopUserID, u.WhopCompanyID)
}

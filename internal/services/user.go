package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/coursebuilder-backend/internal/data/repos"
	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/pointers"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

type UserProfile struct {
	Email    string
	Username string
}

type UserService interface {
	// GetOrCreate resolves the tenant-scoped user for a verified platform identity.
	GetOrCreate(dbc dbctx.Context, whopUserID, companyID string, profile UserProfile) (*types.User, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error)
	// Resolve finds a user by internal id first, then by platform identity.
	Resolve(dbc dbctx.Context, internalID, whopUserID, companyID string) (*types.User, error)
}

type userService struct {
	log   *logger.Logger
	users repos.UserRepo
}

func NewUserService(baseLog *logger.Logger, users repos.UserRepo) UserService {
	return &userService{
		log:   baseLog.With("service", "UserService"),
		users: users,
	}
}

func (s *userService) GetOrCreate(dbc dbctx.Context, whopUserID, companyID string, profile UserProfile) (*types.User, error) {
	whopUserID = strings.TrimSpace(whopUserID)
	companyID = strings.TrimSpace(companyID)
	if whopUserID == "" || companyID == "" {
		return nil, fmt.Errorf("%w: user and company required", apperr.ErrInvalidArgument)
	}
	existing, err := s.users.GetByWhopIdentity(dbc, whopUserID, companyID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil && !profileChanged(existing, profile) {
		return existing, nil
	}
	u := &types.User{WhopUserID: whopUserID, WhopCompanyID: companyID}
	if e := strings.TrimSpace(profile.Email); e != "" {
		u.Email = pointers.String(e)
	}
	if n := strings.TrimSpace(profile.Username); n != "" {
		u.Username = pointers.String(n)
	}
	out, err := s.users.Upsert(dbc, u)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if existing == nil {
		s.log.Info("user created", "user_id", out.ID, "whop_user_id", whopUserID, "company_id", companyID)
	}
	return out, nil
}

func profileChanged(u *types.User, p UserProfile) bool {
	if e := strings.TrimSpace(p.Email); e != "" && pointers.Deref(u.Email) != e {
		return true
	}
	if n := strings.TrimSpace(p.Username); n != "" && pointers.Deref(u.Username) != n {
		return true
	}
	return false
}

func (s *userService) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	u, err := s.users.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (s *userService) Resolve(dbc dbctx.Context, internalID, whopUserID, companyID string) (*types.User, error) {
	if id, err := uuid.Parse(strings.TrimSpace(internalID)); err == nil {
		u, err := s.users.GetByID(dbc, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	whopUserID = strings.TrimSpace(whopUserID)
	if whopUserID == "" {
		return nil, apperr.ErrNotFound
	}
	if companyID = strings.TrimSpace(companyID); companyID != "" {
		u, err := s.users.GetByWhopIdentity(dbc, whopUserID, companyID)
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	rows, err := s.users.ListByWhopUserID(dbc, whopUserID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperr.ErrNotFound
	}
	return rows[0], nil
}

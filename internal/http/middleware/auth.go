package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

const userKey = "auth.user"

// TokenVerifier resolves the platform identity behind a request.
type TokenVerifier interface {
	Verify(h http.Header) (whop.Identity, error)
}

type AuthMiddleware struct {
	log            *logger.Logger
	verifier       TokenVerifier
	users          services.UserService
	defaultCompany string
}

func NewAuthMiddleware(log *logger.Logger, verifier TokenVerifier, users services.UserService, defaultCompany string) *AuthMiddleware {
	return &AuthMiddleware{
		log:            log.With("middleware", "AuthMiddleware"),
		verifier:       verifier,
		users:          users,
		defaultCompany: strings.TrimSpace(defaultCompany),
	}
}

// RequireAuth verifies the user token, resolves the tenant from the company
// header (falling back to the configured company) and loads or creates the
// tenant-scoped user.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := am.verifier.Verify(c.Request.Header)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			response.RespondErr(c, err)
			return
		}
		companyID := strings.TrimSpace(c.GetHeader(whop.HeaderCompanyID))
		if companyID == "" {
			companyID = am.defaultCompany
		}
		if companyID == "" {
			response.RespondErr(c, fmt.Errorf("%w: missing %s header", apperr.ErrInvalidArgument, whop.HeaderCompanyID))
			return
		}
		user, err := am.users.GetOrCreate(dbctx.Context{Ctx: c.Request.Context()}, id.UserID, companyID, services.UserProfile{})
		if err != nil {
			am.log.Error("resolve user failed", "whop_user_id", id.UserID, "error", err)
			response.RespondErr(c, err)
			return
		}
		ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{
			UserID:     user.ID,
			WhopUserID: user.WhopUserID,
			CompanyID:  user.WhopCompanyID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the user RequireAuth attached, or nil.
func CurrentUser(c *gin.Context) *types.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*types.User)
	return u
}

// SetCurrentUser attaches u to the request; used by tests and internal routes.
func SetCurrentUser(c *gin.Context, u *types.User) {
	c.Set(userKey, u)
}

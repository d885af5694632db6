package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	httpMW "github.com/yungbote/coursebuilder-backend/internal/http/middleware"
	"github.com/yungbote/coursebuilder-backend/internal/http/response"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
)

func dbcFor(c *gin.Context) dbctx.Context {
	return dbctx.Context{Ctx: c.Request.Context()}
}

// requireUser writes 401 and returns nil when no user is attached.
func requireUser(c *gin.Context) *types.User {
	u := httpMW.CurrentUser(c)
	if u == nil {
		response.RespondErr(c, apperr.ErrUnauthorized)
		return nil
	}
	return u
}

// uuidParam parses a path param; on failure it writes 400 and returns false.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		response.RespondErr(c, fmt.Errorf("%w: invalid %s", apperr.ErrInvalidArgument, name))
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.RespondErr(c, fmt.Errorf("%w: %v", apperr.ErrInvalidArgument, err))
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

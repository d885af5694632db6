package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/coursebuilder-backend/internal/platform/apierr"
)

const internalMessage = "internal server error"

// RespondErr classifies err through apierr. Internal failures are not echoed
// to the caller.
func RespondErr(c *gin.Context, err error) {
	RespondErrDetails(c, err, nil)
}

func RespondErrDetails(c *gin.Context, err error, details any) {
	status, code := apierr.Classify(err)
	msg := internalMessage
	if status < 500 || code != "internal" {
		msg = err.Error()
	}
	if status >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: code, Details: details},
	})
}

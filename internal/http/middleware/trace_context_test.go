package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/platform/ctxutil"
)

func TestAttachTraceContextKeepsValidRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AttachTraceContext())
	var seen *ctxutil.TraceData
	r.GET("/x", func(c *gin.Context) {
		seen = ctxutil.GetTraceData(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.NotNil(t, seen)
	require.Equal(t, "req-123", seen.RequestID)
	require.NotEmpty(t, seen.TraceID)
	require.Equal(t, "req-123", rec.Header().Get(headerRequestID))
	require.Equal(t, seen.TraceID, rec.Header().Get(headerTraceID))
}

func TestInboundIDRejectsUnsafeValues(t *testing.T) {
	require.Equal(t, "", inboundID("has space"))
	require.Equal(t, "", inboundID("line\nbreak"))
	require.Equal(t, "", inboundID(strings.Repeat("a", maxInboundIDLen+1)))
	require.Equal(t, "abc-1", inboundID("  abc-1 "))
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	types "github.com/yungbote/coursebuilder-backend/internal/domain"
	httpMW "github.com/yungbote/coursebuilder-backend/internal/http/middleware"
	"github.com/yungbote/coursebuilder-backend/internal/pkg/dbctx"
	apperr "github.com/yungbote/coursebuilder-backend/internal/pkg/errors"
	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
	"github.com/yungbote/coursebuilder-backend/internal/platform/whop"
	"github.com/yungbote/coursebuilder-backend/internal/services"
)

type errorBody struct {
	Error struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func testUser() *types.User {
	return &types.User{ID: uuid.New(), WhopUserID: "user_1", WhopCompanyID: "biz_1"}
}

// newEngine attaches u (when non-nil) the way RequireAuth would.
func newEngine(u *types.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u != nil {
			httpMW.SetCurrentUser(c, u)
		}
		c.Next()
	})
	return r
}

func do(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var out errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type stubGenerations struct {
	services.GenerationService
	startErr error
	started  *services.StartGenerationInput
}

func (s *stubGenerations) Start(dbc dbctx.Context, user *types.User, in services.StartGenerationInput) (*services.StartGenerationResult, error) {
	s.started = &in
	if s.startErr != nil {
		return nil, s.startErr
	}
	return &services.StartGenerationResult{GenerationID: uuid.New(), Status: "processing", EstimatedTimeSeconds: 120}, nil
}

func (s *stubGenerations) GetStatus(dbc dbctx.Context, userID, id uuid.UUID) (*services.GenerationStatus, error) {
	return nil, fmt.Errorf("generation %s: %w", id, apperr.ErrNotFound)
}

type stubPublish struct {
	err error
}

func (s stubPublish) Publish(dbc dbctx.Context, user *types.User, generationID uuid.UUID, in services.PublishInput) (*services.PublishResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.PublishResult{GenerationID: generationID, Mode: in.Mode}, nil
}

func TestStartGeneration(t *testing.T) {
	u := testUser()
	gens := &stubGenerations{}
	h := NewGenerationHandler(logger.Nop(), gens, stubPublish{})
	r := newEngine(u)
	r.POST("/api/generations", h.Start)

	uploadID := uuid.New()
	rec := do(r, http.MethodPost, "/api/generations", gin.H{"pdfUploadId": uploadID, "customTitle": "Intro"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, uploadID, gens.started.PdfUploadID)
	require.Equal(t, "Intro", gens.started.CustomTitle)

	rec = do(r, http.MethodPost, "/api/generations", gin.H{"customTitle": "no upload"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_argument", decodeErr(t, rec).Error.Code)
}

func TestPublishErrorReportsCreatedCounts(t *testing.T) {
	pubErr := &services.PublishError{
		Err:    &whop.APIError{StatusCode: http.StatusBadGateway, Body: "upstream"},
		Counts: services.PublishCounts{Modules: 1, Chapters: 2, Lessons: 3},
	}
	h := NewGenerationHandler(logger.Nop(), &stubGenerations{}, stubPublish{err: pubErr})
	r := newEngine(testUser())
	r.POST("/api/generations/:id/publish", h.Publish)

	rec := do(r, http.MethodPost, "/api/generations/"+uuid.NewString()+"/publish", gin.H{"mode": "fresh"})
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "publish_failed", decodeErr(t, rec).Error.Code)
	var details struct {
		Created services.PublishCounts `json:"created"`
	}
	require.NoError(t, json.Unmarshal(decodeErr(t, rec).Error.Details, &details))
	require.Equal(t, services.PublishCounts{Modules: 1, Chapters: 2, Lessons: 3}, details.Created)
}

func TestPublishConflict(t *testing.T) {
	h := NewGenerationHandler(logger.Nop(), &stubGenerations{}, stubPublish{err: fmt.Errorf("%w: already published", apperr.ErrConflict)})
	r := newEngine(testUser())
	r.POST("/api/generations/:id/publish", h.Publish)

	rec := do(r, http.MethodPost, "/api/generations/"+uuid.NewString()+"/publish", gin.H{"mode": "fresh"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "conflict", decodeErr(t, rec).Error.Code)
}

func TestStatusMapsNotFoundAndBadIDs(t *testing.T) {
	h := NewGenerationHandler(logger.Nop(), &stubGenerations{}, stubPublish{})
	r := newEngine(testUser())
	r.GET("/api/generations/:id/status", h.Status)

	rec := do(r, http.MethodGet, "/api/generations/"+uuid.NewString()+"/status", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(r, http.MethodGet, "/api/generations/not-a-uuid/status", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedHandlersRequireUser(t *testing.T) {
	h := NewGenerationHandler(logger.Nop(), &stubGenerations{}, stubPublish{})
	r := newEngine(nil)
	r.POST("/api/generations", h.Start)

	rec := do(r, http.MethodPost, "/api/generations", gin.H{"pdfUploadId": uuid.New()})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubWebhooks struct {
	gotSig  string
	gotBody []byte
	err     error
}

func (s *stubWebhooks) Handle(ctx context.Context, signature string, body []byte) (*services.WebhookOutcome, error) {
	s.gotSig, s.gotBody = signature, body
	if s.err != nil {
		return nil, s.err
	}
	return &services.WebhookOutcome{EventID: "evt_1", Status: "processed"}, nil
}

func TestWebhookPassesRawBodyAndSignature(t *testing.T) {
	hooks := &stubWebhooks{}
	h := NewWebhookHandler(logger.Nop(), hooks)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/whop", h.Whop)

	raw := []byte(`{"id":"evt_1","action":"payment.succeeded"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/whop", bytes.NewReader(raw))
	req.Header.Set(whop.HeaderSignature, "t=1,v1=abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "t=1,v1=abc", hooks.gotSig)
	require.Equal(t, raw, hooks.gotBody)
	require.Contains(t, rec.Body.String(), `"processed"`)
}

func TestWebhookBadSignatureIs401(t *testing.T) {
	h := NewWebhookHandler(logger.Nop(), &stubWebhooks{err: fmt.Errorf("%w: bad signature", apperr.ErrUnauthorized)})
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/webhooks/whop", h.Whop)

	rec := do(r, http.MethodPost, "/api/webhooks/whop", gin.H{"id": "evt"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadRequiresFileField(t *testing.T) {
	h := NewUploadHandler(logger.Nop(), nil, nil, 1<<20)
	r := newEngine(testUser())
	r.POST("/api/uploads", h.Upload)

	rec := do(r, http.MethodPost, "/api/uploads", gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_argument", decodeErr(t, rec).Error.Code)
}

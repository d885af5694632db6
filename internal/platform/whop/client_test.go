package whop

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/coursebuilder-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(logger.Nop(), ClientConfig{
		APIKey:        "whop_test_key",
		BaseURL:       srv.URL,
		MaxRetries:    2,
		RatePerSecond: 1000,
		Burst:         100,
	})
	require.NoError(t, err)
	return c
}

func TestCreateLessonSendsKeyAndDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/course_lessons", r.URL.Path)
		require.Equal(t, "Bearer whop_test_key", r.Header.Get("Authorization"))
		require.Equal(t, "lesson-123", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "text", body["lesson_type"])
		require.Equal(t, "chap_1", body["chapter_id"])
		_, _ = w.Write([]byte(`{"id":"lesn_9"}`))
	})
	got, err := c.CreateLesson(t.Context(), "lesson-123", CreateLessonInput{ChapterID: "chap_1", Title: "Intro", Content: "# Hi"})
	require.NoError(t, err)
	require.Equal(t, "lesn_9", got.ID)
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"exp_1"}`))
	})
	got, err := c.CreateExperience(t.Context(), "gen", CreateExperienceInput{AppID: "app_1", CompanyID: "biz_1", Name: "Course"})
	require.NoError(t, err)
	require.Equal(t, "exp_1", got.ID)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPostSurfacesAPIError(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"title too long"}}`))
	})
	_, err := c.CreateCourse(t.Context(), "mod", CreateCourseInput{ExperienceID: "exp_1", Title: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.HTTPStatusCode())
	require.Contains(t, err.Error(), "title too long")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCreateRejectsMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	_, err := c.CreateChapter(t.Context(), "ch", CreateChapterInput{CourseID: "cors_1", Title: "x"})
	require.Error(t, err)
}

func TestCreateCheckoutReadsNestedPlanID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/checkout_configurations", r.URL.Path)
		var in CreateCheckoutInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		require.Equal(t, "usd", in.Plan.Currency)
		require.Equal(t, "growth", in.Metadata["purchaseType"])
		_, _ = w.Write([]byte(`{"id":"ch_1","plan":{"id":"plan_7"}}`))
	})
	out, err := c.CreateCheckout(t.Context(), CreateCheckoutInput{
		Plan:     CheckoutPlan{CompanyID: "biz_1", InitialPrice: 29, PlanType: PlanTypeRenewal},
		Metadata: map[string]string{"purchaseType": "growth"},
	})
	require.NoError(t, err)
	require.Equal(t, "ch_1", out.ID)
	require.Equal(t, "plan_7", out.PlanID)
}

func TestCreateProductUpsertsByExternalID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		require.Equal(t, "product:gen_1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, ProductExternalID("biz_1"), body["external_identifier"])
		require.Equal(t, "biz_1", body["company_id"])
		_, _ = w.Write([]byte(`{"id":"prod_7"}`))
	})
	got, err := c.CreateProduct(t.Context(), "product:gen_1", CreateProductInput{
		CompanyID: "biz_1", Title: "Courses", ExternalIdentifier: ProductExternalID("biz_1"),
	})
	require.NoError(t, err)
	require.Equal(t, "prod_7", got.ID)

	_, err = c.CreateProduct(t.Context(), "k", CreateProductInput{CompanyID: "biz_1", Title: "Courses"})
	require.Error(t, err)
}

func TestAttachExperiencePostsProduct(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "/experiences/exp_1/attach", r.URL.Path)
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		require.Equal(t, "prod_7", body["product_id"])
		_, _ = w.Write([]byte(`{}`))
	})
	require.NoError(t, c.AttachExperience(t.Context(), "exp_1", "prod_7"))
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.Error(t, c.AttachExperience(t.Context(), "", "prod_7"))
}

func TestCourseURL(t *testing.T) {
	require.Equal(t, "https://whop.com/hub/biz_1/experiences/exp_2", CourseURL("biz_1", "exp_2"))
	require.Equal(t, "", CourseURL("biz_1", ""))
}

package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LookTrainer/internal/config"
	"LookTrainer/internal/domain"
	"LookTrainer/internal/http/handler"
	"LookTrainer/internal/infrastructure/rulecache"
	"LookTrainer/internal/infrastructure/storage"
	"LookTrainer/internal/ports"
	"LookTrainer/internal/usecase"
)

type fixture struct {
	router *gin.Engine
	store  *storage.MemoryStore
	cache  *rulecache.Cache
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewMemoryStore()
	cache := rulecache.New(time.Hour)
	sessions := usecase.NewReviewSessions(usecase.ReviewSessionDeps{
		Items:    store,
		Sessions: store,
		BaseURL:  "https://looklyy04.vercel.app/training",
	})
	feedback := usecase.NewFeedbackProcessor(usecase.FeedbackDeps{Items: store, Sessions: store})
	compiler := usecase.NewRuleCompiler(usecase.CompilerDeps{
		Patterns: store,
		Training: config.DefaultTraining(),
		Sinks:    []ports.RulesetSink{cache},
	})

	h := handler.NewTrainingHandler(sessions, feedback, compiler, cache, nil)
	router := gin.New()
	router.POST("/review-sessions", h.OpenSession)
	router.GET("/review-status", h.ReviewStatus)
	router.POST("/feedback", h.Feedback)
	router.GET("/queue", h.Queue)
	router.GET("/rules", h.CompileRules)
	router.GET("/rules/:version", h.RulesVersion)

	return fixture{router: router, store: store, cache: cache}
}

func (f fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestOpenSessionAndStatus(t *testing.T) {
	f := newFixture(t)
	f.store.PutItem(domain.Item{ID: "1", NeedsTraining: true, CreatedAt: time.Now()})
	f.store.PutItem(domain.Item{ID: "2", NeedsTraining: true, ReviewStatus: domain.ReviewPending, CreatedAt: time.Now()})

	w, resp := f.do(t, http.MethodPost, "/review-sessions", map[string]string{"review_type": "daily"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, float64(2), resp["images_queued"])
	session := resp["review_session"].(map[string]any)
	sessionID := session["session_id"].(string)
	assert.Contains(t, session["review_url"], "?session="+sessionID)

	w, resp = f.do(t, http.MethodGet, "/review-status?session_id="+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["review_completed"])
	progress := resp["review_progress"].(map[string]any)
	assert.Equal(t, float64(2), progress["images_queued"])
}

func TestOpenSessionWithoutBody(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/review-sessions", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReviewStatusNotFound(t *testing.T) {
	f := newFixture(t)
	w, resp := f.do(t, http.MethodGet, "/review-status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "NotFound", resp["error"].(map[string]any)["kind"])
}

func TestFeedback(t *testing.T) {
	f := newFixture(t)
	f.store.PutItem(domain.Item{ID: "17", NeedsTraining: true, CreatedAt: time.Now()})

	w, resp := f.do(t, http.MethodPost, "/feedback", map[string]any{"imageId": 17, "approved": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp["success"])

	item, err := f.store.GetItem(context.Background(), "17")
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, item.ReviewStatus)

	w, resp = f.do(t, http.MethodPost, "/feedback", map[string]any{"imageId": "17"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidRequest", resp["error"].(map[string]any)["kind"])

	w, resp = f.do(t, http.MethodPost, "/feedback", map[string]any{"imageId": "404", "approved": false})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "UpdateFailed", resp["error"].(map[string]any)["kind"])
}

func TestQueue(t *testing.T) {
	f := newFixture(t)
	f.store.PutItem(domain.Item{ID: "a", CreatedAt: time.Now()})
	f.store.PutItem(domain.Item{ID: "b", NeedsTraining: true, CreatedAt: time.Now()})

	w, resp := f.do(t, http.MethodGet, "/queue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	images := resp["images"].([]any)
	require.Len(t, images, 2)
	assert.Equal(t, "b", images[0].(map[string]any)["id"])
}

func TestRulesAndVersionLookup(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, http.MethodGet, "/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	rules := resp["rules"].(map[string]any)
	assert.Equal(t, []any{}, rules["learned"])
	version := int64(rules["version"].(float64))

	w, resp = f.do(t, http.MethodGet, "/rules/"+jsonInt(version), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(version), resp["rules"].(map[string]any)["version"])

	w, _ = f.do(t, http.MethodGet, "/rules/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodGet, "/rules/latest", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonInt(v int64) string {
	raw, _ := json.Marshal(v)
	return string(raw)
}

type failingRules struct{ err error }

func (r failingRules) Compile(context.Context) (domain.CompiledRuleset, error) {
	return domain.CompiledRuleset{}, r.err
}

func TestFailureKindMatchesStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "Internal"},
		{"store down", domain.NewError(domain.KindStoreUnavailable, "store timeout", nil), http.StatusServiceUnavailable, "StoreUnavailable"},
		{"bad config", domain.NewError(domain.KindCompilationFailed, "no weights", nil), http.StatusInternalServerError, "CompilationFailed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := handler.NewTrainingHandler(nil, nil, failingRules{err: tc.err}, nil, nil)
			router := gin.New()
			router.GET("/rules", h.CompileRules)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rules", nil))

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, resp["success"])
			assert.Equal(t, tc.kind, resp["error"].(map[string]any)["kind"])
		})
	}
}

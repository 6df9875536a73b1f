package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/nutrilog/backend/config"
	"github.com/pageza/nutrilog/backend/internal/api"
	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/middleware"
	"github.com/pageza/nutrilog/backend/internal/model"
	"github.com/pageza/nutrilog/backend/internal/openfoodfacts"
	"github.com/pageza/nutrilog/backend/internal/repository"
	"github.com/pageza/nutrilog/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noProducts struct{}

func (noProducts) Product(_ context.Context, barcode string) (*model.ExternalFood, error) {
	return nil, openfoodfacts.ErrProductNotFound
}

type testServer struct {
	srv    *Server
	db     *gorm.DB
	tokens *service.TokenService
}

func newTestServer(t *testing.T, limiter middleware.Limiter) *testServer {
	t.Helper()
	log := zap.NewNop()
	cfg := &config.Config{
		Environment: config.Test,
		ServerHost:  "127.0.0.1",
		ServerPort:  "0",
		DefaultPage: "dashboard",
		RateLimit:   2,
		Timezone:    "UTC",
	}

	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	foods := repository.NewFoodRepository(db, log)
	meals := repository.NewMealRepository(db, log, time.UTC)
	registry := api.Controllers(
		api.NewFoodController(foods, noProducts{}, nil, log),
		api.NewMealController(meals, time.UTC, log),
	)

	renderer, err := NewHTMLRenderer("", time.UTC)
	require.NoError(t, err)
	d := dispatch.New(registry, renderer, log)
	api.RegisterRoutes(d)
	require.NoError(t, d.Validate())

	tokens := service.NewTokenService("test-secret", time.Hour)
	srv := New(cfg, Deps{
		Dispatcher: d,
		DB:         db,
		Validator:  tokens,
		Limiter:    limiter,
		Log:        log,
	})
	return &testServer{srv: srv, db: db, tokens: tokens}
}

func (ts *testServer) do(t *testing.T, method, target string, form url.Values, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if userID > 0 {
		token, err := ts.tokens.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"database":"up"}}`, w.Body.String())

	require.NoError(t, database.Close(ts.db))
	w = ts.do(t, http.MethodGet, "/health", nil, 0)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDefaultPageRendersDashboard(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, target := range []string{"/", "/index.php", "/?page=dashboard"} {
		w := ts.do(t, http.MethodGet, target, nil, 0)
		assert.Equal(t, http.StatusOK, w.Code, target)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, w.Body.String(), `data-page="dashboard"`)
	}

	w := ts.do(t, http.MethodGet, "/?page=settings", nil, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UTC")
}

func TestUnknownPage(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/?page=nope", nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	w = ts.do(t, http.MethodDelete, "/?page=foods", nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/elsewhere", nil, 0)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMealFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	food := model.FoodItem{Name: "Pomme", Calories: 52}
	require.NoError(t, ts.db.Create(&food).Error)

	w := ts.do(t, http.MethodGet, "/?page=meals", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	form := url.Values{"type": {"dejeuner"}, "food_id": {"1"}, "quantity": {"150"}}
	w = ts.do(t, http.MethodPost, "/?page=meals/add-food", form, 5)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/?page=meals", nil, 5)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	meals := body["meals"].([]any)
	require.Len(t, meals, 1)
	assert.InDelta(t, 78.0, meals[0].(map[string]any)["calories"], 1e-9)

	w = ts.do(t, http.MethodGet, "/?page=meals", nil, 6)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["meals"])
}

func TestRateLimitedDispatch(t *testing.T) {
	limiter := middleware.NewLocalLimiter(middleware.RateLimitConfig{Window: time.Hour, Limit: 2})
	ts := newTestServer(t, limiter)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/?page=foods", nil, 0).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/?page=foods", nil, 0).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.do(t, http.MethodGet, "/?page=foods", nil, 0).Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, 0).Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	ts := newTestServer(t, nil)
	assert.NoError(t, ts.srv.Shutdown(context.Background()))
}

func TestRendererOverrideDir(t *testing.T) {
	_, err := NewHTMLRenderer(t.TempDir(), time.UTC)
	assert.Error(t, err)
}

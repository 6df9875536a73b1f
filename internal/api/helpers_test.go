package api

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
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/middleware"
	"github.com/pageza/nutrilog/backend/internal/model"
	"github.com/pageza/nutrilog/backend/internal/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// MockFoodSource is a testify mock of FoodSource
type MockFoodSource struct {
	mock.Mock
}

func (m *MockFoodSource) Product(ctx context.Context, barcode string) (*model.ExternalFood, error) {
	args := m.Called(ctx, barcode)
	if rec := args.Get(0); rec != nil {
		return rec.(*model.ExternalFood), args.Error(1)
	}
	return nil, args.Error(1)
}

type prefixLinker string

func (p prefixLinker) URL(_ context.Context, key string) (string, error) {
	return string(p) + key, nil
}

type testApp struct {
	db     *gorm.DB
	source *MockFoodSource
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	log := zap.NewNop()

	db, err := database.OpenSQLite("file::memory:", nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { database.Close(db) })

	source := new(MockFoodSource)
	foods := NewFoodController(repository.NewFoodRepository(db, log), source, prefixLinker("https://cdn.test/"), log)
	meals := NewMealController(
		repository.NewMealRepository(db, log, time.UTC, repository.WithClock(func() time.Time { return testNow })),
		time.UTC, log)
	meals.now = func() time.Time { return testNow }

	d := dispatch.New(Controllers(foods, meals), nil, log)
	RegisterRoutes(d)

	router := gin.New()
	router.Any("/", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			var uid int64
			require.NoError(t, json.Unmarshal([]byte(id), &uid))
			c.Set(middleware.UserIDKey, uid)
		}
		if !d.Dispatch(c, c.DefaultQuery("page", "dashboard"), c.Request.Method) {
			c.Status(http.StatusNotFound)
		}
	})
	return &testApp{db: db, source: source, router: router}
}

type call struct {
	method string
	page   string
	query  url.Values
	form   url.Values
	json   string
	user   string
}

func (a *testApp) do(t *testing.T, r call) (int, map[string]any) {
	t.Helper()
	q := url.Values{"page": {r.page}}
	for k, v := range r.query {
		q[k] = v
	}
	target := "/?" + q.Encode()

	var req *http.Request
	switch {
	case r.json != "":
		req = httptest.NewRequest(r.method, target, strings.NewReader(r.json))
		req.Header.Set("Content-Type", "application/json")
	case r.form != nil:
		req = httptest.NewRequest(r.method, target, strings.NewReader(r.form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		req = httptest.NewRequest(r.method, target, nil)
	}
	if r.user != "" {
		req.Header.Set("X-Test-User", r.user)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	}
	return w.Code, body
}

func (a *testApp) food(t *testing.T, name string, kcal float64) *model.FoodItem {
	t.Helper()
	f := &model.FoodItem{Name: name, Calories: kcal}
	require.NoError(t, a.db.Create(f).Error)
	return f
}

package dispatch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubController map[string]Action

func (s stubController) Actions() map[string]Action { return s }

type recordingRenderer struct {
	views []string
}

func (r *recordingRenderer) Render(c *gin.Context, view string) {
	r.views = append(r.views, view)
	c.String(http.StatusOK, "<h1>%s</h1>", view)
}

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestResolveExactBeforePrefix(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.Action("settings", "GET", "settings", "index")
	d.Action("settings/update-email", "POST", "settings", "updateEmail")

	h, ok := d.Resolve("settings/update-email", "POST")
	require.True(t, ok)
	assert.Equal(t, "updateEmail", h.Action)

	h, ok = d.Resolve("settings", "get")
	require.True(t, ok)
	assert.Equal(t, "index", h.Action)
}

func TestResolveNotFound(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.Action("settings/update-email", "POST", "settings", "updateEmail")

	_, ok := d.Resolve("settings", "GET")
	assert.False(t, ok)

	// the prefix matches but not the method
	_, ok = d.Resolve("settings/update-email/confirm", "GET")
	assert.False(t, ok)
}

func TestResolvePrefixFirstRegisteredWins(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.Action("foods", "GET", "food", "list")
	d.Action("foods/s", "POST", "food", "short")
	// registering a new method keeps the token at its first position
	d.Action("foods", "POST", "food", "generic")

	h, ok := d.Resolve("foods/search", "POST")
	require.True(t, ok)
	assert.Equal(t, "generic", h.Action)

	h, ok = d.Resolve("foods/search", "GET")
	require.True(t, ok)
	assert.Equal(t, "list", h.Action)
}

func TestResolveMethodIsCaseInsensitive(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.View("dashboard", "get", "dashboard")

	h, ok := d.Resolve("dashboard", "GET")
	require.True(t, ok)
	assert.Equal(t, KindView, h.Kind)

	_, ok = d.Resolve("dashboard", " Get ")
	assert.True(t, ok)
}

func TestHandleReplacesSameTokenAndMethod(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.Action("foods", "GET", "food", "list")
	d.Action("foods", "GET", "food", "search")

	h, ok := d.Resolve("foods", "GET")
	require.True(t, ok)
	assert.Equal(t, "search", h.Action)
	assert.Len(t, d.Routes(), 1)
}

func TestDispatchSerializesCollections(t *testing.T) {
	ctrl := stubController{
		"list": func(c *gin.Context) any {
			return gin.H{"foods": []string{"apple"}, "total": 1}
		},
		"missing": func(c *gin.Context) any {
			c.Status(http.StatusNotFound)
			return map[string]string{"error": "food not found"}
		},
		"ids": func(c *gin.Context) any {
			return []int{1, 2, 3}
		},
	}
	d := New(Controllers{"food": ctrl}, nil, zap.NewNop())
	d.Action("foods", "GET", "food", "list")
	d.Action("foods/show", "GET", "food", "missing")
	d.Action("foods/ids", "GET", "food", "ids")

	c, w := newTestContext()
	require.True(t, d.Dispatch(c, "foods", "GET"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"foods":["apple"],"total":1}`, w.Body.String())
	assert.True(t, c.IsAborted())

	c, w = newTestContext()
	require.True(t, d.Dispatch(c, "foods/show", "GET"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "food not found", body["error"])

	c, w = newTestContext()
	require.True(t, d.Dispatch(c, "foods/ids", "GET"))
	assert.JSONEq(t, `[1,2,3]`, w.Body.String())
}

func TestDispatchPassesThroughOtherResults(t *testing.T) {
	ctrl := stubController{
		"export": func(c *gin.Context) any {
			c.String(http.StatusOK, "id;name\n1;apple\n")
			return nil
		},
		"count": func(c *gin.Context) any {
			c.String(http.StatusOK, "42")
			return 42
		},
	}
	d := New(Controllers{"food": ctrl}, nil, zap.NewNop())
	d.Action("foods/export", "GET", "food", "export")
	d.Action("foods/count", "GET", "food", "count")

	c, w := newTestContext()
	require.True(t, d.Dispatch(c, "foods/export", "GET"))
	assert.Equal(t, "id;name\n1;apple\n", w.Body.String())
	assert.False(t, c.IsAborted())

	c, w = newTestContext()
	require.True(t, d.Dispatch(c, "foods/count", "GET"))
	assert.Equal(t, "42", w.Body.String())
	assert.NotContains(t, w.Header().Get("Content-Type"), "json")
}

func TestDispatchRendersViews(t *testing.T) {
	renderer := &recordingRenderer{}
	d := New(Controllers{}, renderer, zap.NewNop())
	d.View("dashboard", "GET", "dashboard")

	c, w := newTestContext()
	require.True(t, d.Dispatch(c, "dashboard", "GET"))
	assert.Equal(t, []string{"dashboard"}, renderer.views)
	assert.Equal(t, "<h1>dashboard</h1>", w.Body.String())
	assert.Equal(t, "dashboard", c.GetString("page"))

	c, _ = newTestContext()
	assert.False(t, d.Dispatch(c, "unknown", "GET"))
	assert.Len(t, renderer.views, 1)
}

func TestDispatchUnknownActionPanics(t *testing.T) {
	d := New(Controllers{"food": stubController{}}, nil, zap.NewNop())
	d.Action("foods", "GET", "food", "nope")
	d.Action("meals", "GET", "meal", "day")

	c, _ := newTestContext()
	assert.Panics(t, func() { d.Dispatch(c, "foods", "GET") })
	assert.Panics(t, func() { d.Dispatch(c, "meals", "GET") })
}

func TestValidate(t *testing.T) {
	ctrl := stubController{"list": func(c *gin.Context) any { return nil }}
	d := New(Controllers{"food": ctrl}, nil, zap.NewNop())
	d.Action("foods", "GET", "food", "list")
	require.NoError(t, d.Validate())

	d.Action("foods/delete", "POST", "food", "delete")
	d.Action("meals", "GET", "meal", "day")
	d.View("dashboard", "GET", "dashboard")

	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `controller "food" has no action "delete"`)
	assert.Contains(t, err.Error(), `unknown controller "meal"`)
	assert.Contains(t, err.Error(), `view "dashboard" without renderer`)
}

type knownViews []string

func (k knownViews) Render(c *gin.Context, view string) {}

func (k knownViews) Has(view string) bool {
	for _, v := range k {
		if v == view {
			return true
		}
	}
	return false
}

func TestValidateChecksViews(t *testing.T) {
	d := New(Controllers{}, knownViews{"dashboard"}, zap.NewNop())
	d.View("dashboard", "GET", "dashboard")
	require.NoError(t, d.Validate())

	d.View("settings", "GET", "settings")
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown view "settings"`)
}

func TestRoutesKeepRegistrationOrder(t *testing.T) {
	d := New(Controllers{}, nil, zap.NewNop())
	d.View("dashboard", "GET", "dashboard")
	d.Action("foods", "POST", "food", "save")
	d.Action("foods", "GET", "food", "list")

	routes := d.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "dashboard", routes[0].Token)
	assert.Equal(t, Route{Token: "foods", Method: "GET", Handler: Handler{Kind: KindAction, Controller: "food", Action: "list"}}, routes[1])
	assert.Equal(t, "POST", routes[2].Method)
	assert.Equal(t, "food.save", routes[2].Handler.String())
}

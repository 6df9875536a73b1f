package api

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pageza/nutrilog/backend/internal/model"
	"github.com/pageza/nutrilog/backend/internal/openfoodfacts"
)

func TestFoodList(t *testing.T) {
	app := newTestApp(t)
	app.food(t, "Pomme", 52)
	app.food(t, "banane", 89)
	app.food(t, "Abricot", 48)

	status, body := app.do(t, call{method: http.MethodGet, page: "foods", query: url.Values{"limit": {"2"}}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 3.0, body["total"])
	foods := body["foods"].([]any)
	require.Len(t, foods, 2)
	assert.Equal(t, "Abricot", foods[0].(map[string]any)["name"])
	assert.Equal(t, "banane", foods[1].(map[string]any)["name"])

	status, _ = app.do(t, call{method: http.MethodGet, page: "foods", query: url.Values{"limit": {"x"}}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFoodSearch(t *testing.T) {
	app := newTestApp(t)
	app.food(t, "Pomme", 52)
	app.food(t, "Compote de pommes", 70)
	app.food(t, "Riz", 130)

	status, body := app.do(t, call{method: http.MethodGet, page: "foods/search", query: url.Values{"q": {"POMM"}}})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["foods"], 2)
}

func TestFoodShow(t *testing.T) {
	app := newTestApp(t)
	f := app.food(t, "Pomme", 52)
	key := "foods/1/image.jpg"
	require.NoError(t, app.db.Model(f).Update("image_path", key).Error)

	status, body := app.do(t, call{method: http.MethodGet, page: "foods/show", query: url.Values{"id": {"1"}}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://cdn.test/foods/1/image.jpg", body["image_url"])

	status, body = app.do(t, call{method: http.MethodGet, page: "foods/show", query: url.Values{"id": {"99"}}})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["outcome"])

	status, _ = app.do(t, call{method: http.MethodGet, page: "foods/show"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFoodSave(t *testing.T) {
	app := newTestApp(t)

	status, body := app.do(t, call{method: http.MethodPost, page: "foods/save", json: `{"name":" Yaourt ","calories_100g":59}`})
	require.Equal(t, http.StatusCreated, status)
	food := body["food"].(map[string]any)
	assert.Equal(t, "Yaourt", food["name"])
	assert.Equal(t, 1.0, food["id"])

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/save", json: `{"id":1,"name":"Yaourt nature","calories_100g":61}`})
	assert.Equal(t, http.StatusOK, status)

	status, body = app.do(t, call{method: http.MethodPost, page: "foods/save", json: `{"name":"Bad","fat_100g":-1}`})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid", body["outcome"])

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/save", json: `{"id":42,"name":"Ghost"}`})
	assert.Equal(t, http.StatusNotFound, status)

	// save has no GET handler so the request falls back to the foods list by prefix
	status, body = app.do(t, call{method: http.MethodGet, page: "foods/save"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["total"])
}

func TestFoodImport(t *testing.T) {
	app := newTestApp(t)
	rec := &model.ExternalFood{
		ProductName: "Nutella",
		Code:        "3017620422003",
		Brands:      "Ferrero",
		Nutriments:  model.Nutriments{EnergyKcal: 539, Fat: 30.9},
	}
	app.source.On("Product", mock.Anything, "3017620422003").Return(rec, nil).Once()

	form := url.Values{"barcode": {"3017620422003"}}
	status, body := app.do(t, call{method: http.MethodPost, page: "foods/import", form: form})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, true, body["created"])
	food := body["food"].(map[string]any)
	assert.Equal(t, "Nutella", food["name"])
	assert.Equal(t, "Ferrero", food["extra"].(map[string]any)["brand"])

	// a known barcode is answered from the catalog
	status, body = app.do(t, call{method: http.MethodPost, page: "foods/import", form: form})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["created"])
	app.source.AssertNumberOfCalls(t, "Product", 1)

	var n int64
	require.NoError(t, app.db.Model(&model.FoodItem{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestFoodImportFailures(t *testing.T) {
	app := newTestApp(t)
	app.source.On("Product", mock.Anything, "0000000000000").Return(nil, openfoodfacts.ErrProductNotFound)
	app.source.On("Product", mock.Anything, "1111111111111").Return(nil, errors.New("connection refused"))
	app.source.On("Product", mock.Anything, "2222222222222").Return(&model.ExternalFood{Code: "2222222222222"}, nil)

	status, _ := app.do(t, call{method: http.MethodPost, page: "foods/import", form: url.Values{"barcode": {"0000000000000"}}})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/import", form: url.Values{"barcode": {"1111111111111"}}})
	assert.Equal(t, http.StatusBadGateway, status)

	status, body := app.do(t, call{method: http.MethodPost, page: "foods/import", form: url.Values{"barcode": {"2222222222222"}}})
	assert.Equal(t, http.StatusUnprocessableEntity, status, "products without a name are rejected")
	assert.Equal(t, "invalid", body["outcome"])

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/import", form: url.Values{}})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestFoodLookup(t *testing.T) {
	app := newTestApp(t)
	rec := &model.ExternalFood{ProductName: "Nutella", Code: "3017620422003"}
	app.source.On("Product", mock.Anything, "3017620422003").Return(rec, nil)

	status, body := app.do(t, call{method: http.MethodGet, page: "foods/lookup", query: url.Values{"barcode": {"3017620422003"}}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Nutella", body["product"].(map[string]any)["product_name"])

	var n int64
	require.NoError(t, app.db.Model(&model.FoodItem{}).Count(&n).Error)
	assert.Zero(t, n, "lookup does not store the product")
}

func TestFoodDelete(t *testing.T) {
	app := newTestApp(t)
	used := app.food(t, "Pomme", 52)
	unused := app.food(t, "Riz", 130)
	require.NoError(t, app.db.Exec("INSERT INTO repas (user_id, type_repas, date_heure) VALUES (1, 'dejeuner', ?)", testNow).Error)
	require.NoError(t, app.db.Exec("INSERT INTO repas_aliments (repas_id, aliment_id, quantite_g) VALUES (1, ?, 100)", used.ID).Error)

	status, body := app.do(t, call{method: http.MethodPost, page: "foods/delete", form: url.Values{"id": {"1"}}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid", body["outcome"])

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/delete", form: url.Values{"id": {"2"}}})
	assert.Equal(t, http.StatusOK, status)
	assert.Error(t, app.db.First(&model.FoodItem{}, unused.ID).Error)

	status, _ = app.do(t, call{method: http.MethodPost, page: "foods/delete", form: url.Values{"id": {"2"}}})
	assert.Equal(t, http.StatusNotFound, status)
}

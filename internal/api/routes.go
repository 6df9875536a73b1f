package api

import (
	"net/http"

	"github.com/pageza/nutrilog/backend/internal/dispatch"
)

const (
	FoodControllerName = "food"
	MealControllerName = "meal"
)

// Controllers builds the registry the dispatcher resolves controller names against
func Controllers(foods *FoodController, meals *MealController) dispatch.Controllers {
	return dispatch.Controllers{
		FoodControllerName: foods,
		MealControllerName: meals,
	}
}

// RegisterRoutes registers every page of the application
func RegisterRoutes(d *dispatch.Dispatcher) {
	d.View("dashboard", http.MethodGet, "dashboard").
		Action("foods", http.MethodGet, FoodControllerName, "list").
		Action("foods/search", http.MethodGet, FoodControllerName, "search").
		Action("foods/show", http.MethodGet, FoodControllerName, "show").
		Action("foods/save", http.MethodPost, FoodControllerName, "save").
		Action("foods/import", http.MethodPost, FoodControllerName, "import").
		Action("foods/lookup", http.MethodGet, FoodControllerName, "lookup").
		Action("foods/delete", http.MethodPost, FoodControllerName, "delete").
		Action("meals", http.MethodGet, MealControllerName, "day").
		Action("meals/items", http.MethodGet, MealControllerName, "items").
		Action("meals/add-food", http.MethodPost, MealControllerName, "addFood").
		Action("meals/remove-food", http.MethodPost, MealControllerName, "removeFood").
		View("settings", http.MethodGet, "settings")
}

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pageza/nutrilog/backend/internal/dispatch"
	"github.com/pageza/nutrilog/backend/internal/repository"
)

// MealController exposes the meal journal of the authenticated user
type MealController struct {
	meals *repository.MealRepository
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

// NewMealController creates a new MealController
func NewMealController(meals *repository.MealRepository, loc *time.Location, log *zap.Logger) *MealController {
	return &MealController{
		meals: meals,
		loc:   loc,
		now:   time.Now,
		log:   log.Named("meal_controller"),
	}
}

// Actions implements dispatch.Controller
func (h *MealController) Actions() map[string]dispatch.Action {
	return map[string]dispatch.Action{
		"day":        h.Day,
		"items":      h.Items,
		"addFood":    h.AddFood,
		"removeFood": h.RemoveFood,
	}
}

type addFoodRequest struct {
	Type     string  `form:"type" json:"type" binding:"required"`
	FoodID   int64   `form:"food_id" json:"food_id" binding:"required,gt=0"`
	Quantity float64 `form:"quantity" json:"quantity"`
	Date     string  `form:"date" json:"date"`
}

type removeFoodRequest struct {
	MealID int64 `form:"meal_id" json:"meal_id" binding:"required,gt=0"`
	FoodID int64 `form:"food_id" json:"food_id" binding:"required,gt=0"`
}

// Day lists the user's meals of a calendar day with their aggregates and the day totals
func (h *MealController) Day(c *gin.Context) any {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	day, err := parseDay(c.Query("date"), h.loc, h.now())
	if err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request.Context()
	meals, err := h.meals.MealsForDate(ctx, userID, day)
	if err != nil {
		return failure(c, err)
	}
	totals, err := h.meals.DailyTotals(ctx, userID, day)
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "date": day.Format(time.DateOnly), "meals": meals, "totals": totals}
}

// Items lists the line items of one of the user's meals
func (h *MealController) Items(c *gin.Context) any {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var p struct {
		MealID int64 `form:"meal_id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindQuery(&p); err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request.Context()
	if resp := h.requireOwner(c, userID, p.MealID); resp != nil {
		return resp
	}
	items, err := h.meals.Items(ctx, p.MealID)
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "meal_id": p.MealID, "items": items}
}

// AddFood adds a quantity of food to the user's meal of the given type on the given
// day, creating the meal and its first line item in one transaction when none exists.
func (h *MealController) AddFood(c *gin.Context) any {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req addFoodRequest
	if err := c.ShouldBind(&req); err != nil {
		return badRequest(c, err)
	}
	now := h.now()
	day, err := parseDay(req.Date, h.loc, now)
	if err != nil {
		return badRequest(c, err)
	}

	ctx := c.Request.Context()
	meal, err := h.meals.FindByDateAndType(ctx, userID, day, req.Type)
	switch repository.Classify(err) {
	case repository.OutcomeOK:
		if err := h.meals.AddFoodToMeal(ctx, meal.ID, req.FoodID, req.Quantity); err != nil {
			return failure(c, err)
		}
		return gin.H{"success": true, "meal_id": meal.ID, "created": false}
	case repository.OutcomeNotFound:
	default:
		return failure(c, err)
	}

	at := mealTime(day, now, h.loc)
	mealID, err := h.meals.CreateMealWithFoodAt(ctx, userID, req.Type, at, req.FoodID, req.Quantity)
	if err != nil {
		return failure(c, err)
	}
	h.log.Debug("meal created", zap.Int64("user_id", userID), zap.Int64("meal_id", mealID), zap.String("type", req.Type))
	c.Status(http.StatusCreated)
	return gin.H{"success": true, "meal_id": mealID, "created": true}
}

// RemoveFood removes a food from one of the user's meals
func (h *MealController) RemoveFood(c *gin.Context) any {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	var req removeFoodRequest
	if err := c.ShouldBind(&req); err != nil {
		return badRequest(c, err)
	}
	if resp := h.requireOwner(c, userID, req.MealID); resp != nil {
		return resp
	}
	removed, err := h.meals.RemoveFoodFromMeal(c.Request.Context(), req.MealID, req.FoodID)
	if err != nil {
		return failure(c, err)
	}
	return gin.H{"success": true, "removed": removed}
}

// requireOwner answers 404 for meals of other users so their ids are not disclosed
func (h *MealController) requireOwner(c *gin.Context, userID, mealID int64) gin.H {
	meal, err := h.meals.FindByID(c.Request.Context(), mealID)
	if err != nil {
		return failure(c, err)
	}
	if meal.UserID != userID {
		c.Status(http.StatusNotFound)
		return gin.H{"success": false, "error": "meal not found", "outcome": repository.OutcomeNotFound.String()}
	}
	return nil
}

// mealTime is now for today's meals and noon of the day otherwise
func mealTime(day, now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	d := day.In(loc)
	if d.Year() == n.Year() && d.YearDay() == n.YearDay() {
		return now
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc)
}

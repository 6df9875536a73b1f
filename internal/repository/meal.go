package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/nutrilog/backend/internal/database"
	"github.com/pageza/nutrilog/backend/internal/model"
)

const mealsForDateSQL = `
SELECT r.id, r.user_id, r.type_repas, r.date_heure,
	COALESCE(SUM(a.calories_100g * ra.quantite_g / 100), 0) AS calories,
	COALESCE(SUM(a.proteines_100g * ra.quantite_g / 100), 0) AS proteins,
	COALESCE(SUM(a.glucides_100g * ra.quantite_g / 100), 0) AS carbohydrates,
	COALESCE(SUM(a.lipides_100g * ra.quantite_g / 100), 0) AS fat,
	COALESCE(SUM(a.fibres_100g * ra.quantite_g / 100), 0) AS fiber,
	COALESCE(SUM(a.sucres_100g * ra.quantite_g / 100), 0) AS sugars,
	COALESCE(SUM(a.acides_gras_satures_100g * ra.quantite_g / 100), 0) AS saturated_fat,
	COALESCE(SUM(a.sodium_100g * ra.quantite_g / 100), 0) AS sodium,
	COUNT(ra.id) AS item_count
FROM repas r
LEFT JOIN repas_aliments ra ON ra.repas_id = r.id
LEFT JOIN aliments a ON a.id = ra.aliment_id
WHERE r.user_id = ? AND r.date_heure >= ? AND r.date_heure < ?
GROUP BY r.id, r.user_id, r.type_repas, r.date_heure
ORDER BY r.date_heure DESC, r.id DESC`

const mealItemsSQL = `
SELECT ra.id AS link_id, a.id AS food_id, a.nom AS name, ra.quantite_g AS quantity,
	a.calories_100g * ra.quantite_g / 100 AS calories,
	a.proteines_100g * ra.quantite_g / 100 AS proteins,
	a.glucides_100g * ra.quantite_g / 100 AS carbohydrates,
	a.lipides_100g * ra.quantite_g / 100 AS fat,
	a.fibres_100g * ra.quantite_g / 100 AS fiber,
	a.sucres_100g * ra.quantite_g / 100 AS sugars,
	a.acides_gras_satures_100g * ra.quantite_g / 100 AS saturated_fat,
	a.sodium_100g * ra.quantite_g / 100 AS sodium
FROM repas_aliments ra
JOIN aliments a ON a.id = ra.aliment_id
WHERE ra.repas_id = ?
ORDER BY ra.id`

// MealRepository reads and writes meals and their food line items
type MealRepository struct {
	db  *gorm.DB
	log *zap.Logger
	loc *time.Location
	now func() time.Time
}

// MealOption customizes a MealRepository
type MealOption func(*MealRepository)

// WithClock replaces the time source used for new meal timestamps
func WithClock(now func() time.Time) MealOption {
	return func(r *MealRepository) {
		r.now = now
	}
}

// NewMealRepository creates a new MealRepository. loc defines calendar days.
func NewMealRepository(db *gorm.DB, log *zap.Logger, loc *time.Location, opts ...MealOption) *MealRepository {
	if loc == nil {
		loc = time.UTC
	}
	r := &MealRepository{db: db, log: log.Named("meals"), loc: loc, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stamp normalizes a timestamp to the stored precision
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// dayBounds returns the UTC half-open range [start, end) of the calendar day containing t
func (r *MealRepository) dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(r.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, r.loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

func (r *MealRepository) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(r.loc).Date()
	by, bm, bd := b.In(r.loc).Date()
	return ay == by && am == bm && ad == bd
}

// Create inserts a meal without line items. A zero EatenAt means now.
func (r *MealRepository) Create(ctx context.Context, meal *model.Meal) error {
	if err := validateMeal(meal.UserID, meal.Type); err != nil {
		return fail(r.log, "create meal", err)
	}
	if meal.EatenAt.IsZero() {
		meal.EatenAt = r.now()
	}
	meal.EatenAt = stamp(meal.EatenAt)
	meal.Type = strings.TrimSpace(meal.Type)

	if err := r.db.WithContext(ctx).Create(meal).Error; err != nil {
		return fail(r.log, "create meal", err, zap.Int64("user_id", meal.UserID))
	}
	return nil
}

// FindByID returns the meal with the given id
func (r *MealRepository) FindByID(ctx context.Context, id int64) (*model.Meal, error) {
	var meal model.Meal
	if err := r.db.WithContext(ctx).Take(&meal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = notFound("meal %d", id)
		}
		return nil, fail(r.log, "find meal", err, zap.Int64("meal_id", id))
	}
	return &meal, nil
}

// FindByDateAndType returns the most recent meal of the user with the given type on date's calendar day
func (r *MealRepository) FindByDateAndType(ctx context.Context, userID int64, date time.Time, mealType string) (*model.Meal, error) {
	start, end := r.dayBounds(date)
	var meal model.Meal
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type_repas = ? AND date_heure >= ? AND date_heure < ?", userID, strings.TrimSpace(mealType), start, end).
		Order("date_heure DESC, id DESC").
		Take(&meal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = notFound("no %s meal for user %d on %s", mealType, userID, start.In(r.loc).Format(time.DateOnly))
		}
		return nil, fail(r.log, "find meal by date and type", err, zap.Int64("user_id", userID), zap.String("type", mealType))
	}
	return &meal, nil
}

// CreateMealWithFood creates a meal stamped now holding one food line item
func (r *MealRepository) CreateMealWithFood(ctx context.Context, userID int64, mealType string, foodID int64, grams float64) (int64, error) {
	return r.CreateMealWithFoodAt(ctx, userID, mealType, r.now(), foodID, grams)
}

// CreateMealWithFoodAt inserts a meal and its first line item in one transaction.
// Either both rows are committed or neither is.
func (r *MealRepository) CreateMealWithFoodAt(ctx context.Context, userID int64, mealType string, at time.Time, foodID int64, grams float64) (int64, error) {
	fields := []zap.Field{zap.Int64("user_id", userID), zap.String("type", mealType), zap.Int64("food_id", foodID), zap.Float64("grams", grams)}
	if err := validateMeal(userID, mealType); err != nil {
		return 0, fail(r.log, "create meal with food", err, fields...)
	}
	if grams <= 0 {
		return 0, fail(r.log, "create meal with food", invalid("quantity must be positive, got %v", grams), fields...)
	}

	meal := model.Meal{UserID: userID, Type: strings.TrimSpace(mealType), EatenAt: stamp(at)}
	err := database.WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := requireFood(tx, foodID); err != nil {
			return err
		}
		if err := tx.Create(&meal).Error; err != nil {
			return err
		}
		link := model.MealFoodLink{MealID: meal.ID, FoodID: foodID, Quantity: grams}
		return tx.Create(&link).Error
	})
	if err != nil {
		return 0, fail(r.log, "create meal with food", err, fields...)
	}
	return meal.ID, nil
}

// AddFoodToMeal attaches a quantity of food to an existing meal.
// When the meal was logged today its timestamp is moved to now; that refresh is
// best effort and never fails the call.
func (r *MealRepository) AddFoodToMeal(ctx context.Context, mealID, foodID int64, grams float64) error {
	fields := []zap.Field{zap.Int64("meal_id", mealID), zap.Int64("food_id", foodID), zap.Float64("grams", grams)}
	if grams <= 0 {
		return fail(r.log, "add food to meal", invalid("quantity must be positive, got %v", grams), fields...)
	}

	var meal model.Meal
	err := database.WithTransaction(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Take(&meal, mealID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("meal %d", mealID)
			}
			return err
		}
		if err := requireFood(tx, foodID); err != nil {
			return err
		}
		return tx.Create(&model.MealFoodLink{MealID: mealID, FoodID: foodID, Quantity: grams}).Error
	})
	if err != nil {
		return fail(r.log, "add food to meal", err, fields...)
	}

	r.refreshIfToday(ctx, &meal)
	return nil
}

// refreshIfToday bumps the meal timestamp to now when it falls on the current day
func (r *MealRepository) refreshIfToday(ctx context.Context, meal *model.Meal) {
	now := r.now()
	if !r.sameDay(meal.EatenAt, now) {
		return
	}
	err := r.db.WithContext(ctx).Model(&model.Meal{}).Where("id = ?", meal.ID).Update("date_heure", stamp(now)).Error
	if err != nil {
		r.log.Warn("failed to refresh meal timestamp", zap.Int64("meal_id", meal.ID), zap.Error(err))
		return
	}
	meal.EatenAt = stamp(now)
}

// RemoveFoodFromMeal deletes the line items of food in meal and reports whether any row was removed
func (r *MealRepository) RemoveFoodFromMeal(ctx context.Context, mealID, foodID int64) (bool, error) {
	res := r.db.WithContext(ctx).Where("repas_id = ? AND aliment_id = ?", mealID, foodID).Delete(&model.MealFoodLink{})
	if res.Error != nil {
		return false, fail(r.log, "remove food from meal", res.Error, zap.Int64("meal_id", mealID), zap.Int64("food_id", foodID))
	}
	return res.RowsAffected > 0, nil
}

// MealsForDate returns every meal of the user on date's calendar day with its
// derived nutrition totals, newest first. Meals without items have zero totals.
func (r *MealRepository) MealsForDate(ctx context.Context, userID int64, date time.Time) ([]model.MealWithAggregates, error) {
	start, end := r.dayBounds(date)
	meals := []model.MealWithAggregates{}
	if err := r.db.WithContext(ctx).Raw(mealsForDateSQL, userID, start, end).Scan(&meals).Error; err != nil {
		return []model.MealWithAggregates{}, fail(r.log, "meals for date", err, zap.Int64("user_id", userID), zap.Time("date", start))
	}
	return meals, nil
}

// Items returns the line items of a meal with the nutrition of each quantity
func (r *MealRepository) Items(ctx context.Context, mealID int64) ([]model.MealItem, error) {
	items := []model.MealItem{}
	if err := r.db.WithContext(ctx).Raw(mealItemsSQL, mealID).Scan(&items).Error; err != nil {
		return []model.MealItem{}, fail(r.log, "meal items", err, zap.Int64("meal_id", mealID))
	}
	return items, nil
}

// DailyTotals sums the nutrition of all meals of the user on date's calendar day
func (r *MealRepository) DailyTotals(ctx context.Context, userID int64, date time.Time) (model.DailyTotals, error) {
	start, _ := r.dayBounds(date)
	totals := model.DailyTotals{Date: start.In(r.loc).Format(time.DateOnly)}

	meals, err := r.MealsForDate(ctx, userID, date)
	if err != nil {
		return totals, err
	}
	totals.Meals = len(meals)
	for _, m := range meals {
		totals.Add(m.Nutrition)
	}
	return totals, nil
}

func validateMeal(userID int64, mealType string) error {
	if userID <= 0 {
		return invalid("user id must be positive")
	}
	if strings.TrimSpace(mealType) == "" {
		return invalid("meal type is required")
	}
	return nil
}

// requireFood checks that the food exists within the caller's transaction
func requireFood(tx *gorm.DB, foodID int64) error {
	var n int64
	if err := tx.Model(&model.FoodItem{}).Where("id = ?", foodID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound("food %d", foodID)
	}
	return nil
}

package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/nutrilog/backend/internal/model"
)

// Migrate creates or updates the food, meal and meal-food tables.
// repas_aliments declares its foreign keys: deleting a meal cascades to its
// line items and deleting a referenced food is restricted.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.FoodItem{},
		&model.Meal{},
		&model.MealFoodLink{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

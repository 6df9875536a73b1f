package model

import (
	"errors"
	"strings"
)

// FoodItem is a catalog entry with per-100g nutrition facts
type FoodItem struct {
	ID            int64      `gorm:"primaryKey;column:id" json:"id"`
	Name          string     `gorm:"column:nom;size:255;not null;index" json:"name"`
	CategoryID    *int64     `gorm:"column:category_id" json:"category_id,omitempty"`
	Calories      float64    `gorm:"column:calories_100g;not null" json:"calories_100g"`
	Proteins      float64    `gorm:"column:proteines_100g;not null" json:"proteins_100g"`
	Carbohydrates float64    `gorm:"column:glucides_100g;not null" json:"carbohydrates_100g"`
	Sugars        float64    `gorm:"column:sucres_100g;not null" json:"sugars_100g"`
	Fat           float64    `gorm:"column:lipides_100g;not null" json:"fat_100g"`
	SaturatedFat  float64    `gorm:"column:acides_gras_satures_100g;not null" json:"saturated_fat_100g"`
	Fiber         float64    `gorm:"column:fibres_100g;not null" json:"fiber_100g"`
	Sodium        float64    `gorm:"column:sodium_100g;not null" json:"sodium_100g"`
	Barcode       *string    `gorm:"column:openfoodfacts_id;size:64;uniqueIndex" json:"barcode,omitempty"`
	ImagePath     *string    `gorm:"column:image_path;size:255" json:"image_path,omitempty"`
	Extra         Attributes `gorm:"column:autres_infos;type:text" json:"extra,omitempty"`
}

func (FoodItem) TableName() string {
	return "aliments"
}

// Validate checks the invariants of a catalog entry before it is written
func (f *FoodItem) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("name is required")
	}
	facts := map[string]float64{
		"calories":      f.Calories,
		"proteins":      f.Proteins,
		"carbohydrates": f.Carbohydrates,
		"sugars":        f.Sugars,
		"fat":           f.Fat,
		"saturated fat": f.SaturatedFat,
		"fiber":         f.Fiber,
		"sodium":        f.Sodium,
	}
	for name, v := range facts {
		if v < 0 {
			return errors.New(name + " must not be negative")
		}
	}
	return nil
}

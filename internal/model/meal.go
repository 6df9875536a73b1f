package model

import "time"

// Meal is a logged eating event of a user
type Meal struct {
	ID      int64     `gorm:"primaryKey;column:id" json:"id"`
	UserID  int64     `gorm:"column:user_id;not null;index:idx_repas_user_date,priority:1" json:"user_id"`
	Type    string    `gorm:"column:type_repas;size:50;not null" json:"type"`
	EatenAt time.Time `gorm:"column:date_heure;not null;index:idx_repas_user_date,priority:2" json:"eaten_at"`
}

func (Meal) TableName() string {
	return "repas"
}

// MealFoodLink is a quantity of a food within a meal
type MealFoodLink struct {
	ID       int64   `gorm:"primaryKey;column:id" json:"id"`
	MealID   int64   `gorm:"column:repas_id;not null;index" json:"meal_id"`
	FoodID   int64   `gorm:"column:aliment_id;not null;index" json:"food_id"`
	Quantity float64 `gorm:"column:quantite_g;not null" json:"quantity_g"`

	Meal *Meal     `gorm:"foreignKey:MealID;constraint:OnDelete:CASCADE" json:"-"`
	Food *FoodItem `gorm:"foreignKey:FoodID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (MealFoodLink) TableName() string {
	return "repas_aliments"
}

// Nutrition is a set of absolute nutrition amounts, already scaled by quantity
type Nutrition struct {
	Calories      float64 `gorm:"column:calories" json:"calories"`
	Proteins      float64 `gorm:"column:proteins" json:"proteins"`
	Carbohydrates float64 `gorm:"column:carbohydrates" json:"carbohydrates"`
	Fat           float64 `gorm:"column:fat" json:"fat"`
	Fiber         float64 `gorm:"column:fiber" json:"fiber"`
	Sugars        float64 `gorm:"column:sugars" json:"sugars"`
	SaturatedFat  float64 `gorm:"column:saturated_fat" json:"saturated_fat"`
	Sodium        float64 `gorm:"column:sodium" json:"sodium"`
}

// Add accumulates n into the receiver
func (t *Nutrition) Add(n Nutrition) {
	t.Calories += n.Calories
	t.Proteins += n.Proteins
	t.Carbohydrates += n.Carbohydrates
	t.Fat += n.Fat
	t.Fiber += n.Fiber
	t.Sugars += n.Sugars
	t.SaturatedFat += n.SaturatedFat
	t.Sodium += n.Sodium
}

// MealWithAggregates is a meal with the nutrition totals derived from its line items
type MealWithAggregates struct {
	Meal
	Nutrition
	ItemCount int64 `gorm:"column:item_count" json:"item_count"`
}

// MealItem is one line item of a meal joined with its food
type MealItem struct {
	LinkID   int64   `gorm:"column:link_id" json:"link_id"`
	FoodID   int64   `gorm:"column:food_id" json:"food_id"`
	Name     string  `gorm:"column:name" json:"name"`
	Quantity float64 `gorm:"column:quantity" json:"quantity_g"`
	Nutrition
}

// DailyTotals sums the nutrition of every meal of a user on one day
type DailyTotals struct {
	Date  string `json:"date"`
	Meals int    `json:"meals"`
	Nutrition
}

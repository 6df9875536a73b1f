package model

// ExternalFood is a product record as returned by the external food-data provider
type ExternalFood struct {
	ProductName string     `json:"product_name"`
	Code        string     `json:"code"`
	Brands      string     `json:"brands"`
	ImageURL    string     `json:"image_url"`
	Nutriments  Nutriments `json:"nutriments"`
}

// Nutriments are per-100g values; missing values are zero
type Nutriments struct {
	EnergyKcal    float64 `json:"energy-kcal_100g"`
	Proteins      float64 `json:"proteins_100g"`
	Carbohydrates float64 `json:"carbohydrates_100g"`
	Sugars        float64 `json:"sugars_100g"`
	Fat           float64 `json:"fat_100g"`
	SaturatedFat  float64 `json:"saturated-fat_100g"`
	Fiber         float64 `json:"fiber_100g"`
	Sodium        float64 `json:"sodium_100g"`
}

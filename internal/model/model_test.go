package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesScan(t *testing.T) {
	var a Attributes
	require.NoError(t, a.Scan(nil))
	assert.Empty(t, a)

	require.NoError(t, a.Scan([]byte(`{"brand":"Bonne Maman","source":"openfoodfacts"}`)))
	assert.Equal(t, "Bonne Maman", a["brand"])

	require.NoError(t, a.Scan(""))
	assert.Empty(t, a)

	assert.Error(t, a.Scan(42))
}

func TestAttributesValue(t *testing.T) {
	v, err := Attributes(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = Attributes{"brand": "Andros"}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"brand":"Andros"}`, v.(string))
}

func TestFoodItemValidate(t *testing.T) {
	assert.Error(t, (&FoodItem{Name: "  "}).Validate())
	assert.Error(t, (&FoodItem{Name: "Apple", Sugars: -1}).Validate())
	assert.NoError(t, (&FoodItem{Name: "Apple", Calories: 52}).Validate())
}

func TestNutritionAdd(t *testing.T) {
	total := Nutrition{Calories: 10}
	total.Add(Nutrition{Calories: 5, Proteins: 1.5, Sodium: 0.2})
	assert.Equal(t, 15.0, total.Calories)
	assert.Equal(t, 1.5, total.Proteins)
	assert.Equal(t, 0.2, total.Sodium)
}

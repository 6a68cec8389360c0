package usda

import "github.com/nutricam/backend/internal/domain"

// USDA nutrient IDs for the macros we extract. Values for these IDs are
// already per 100 grams in search responses.
const (
	nutrientIDEnergy       = 1008 // kcal
	nutrientIDProtein      = 1003 // g
	nutrientIDCarbohydrate = 1005 // g
	nutrientIDTotalFat     = 1004 // g
	nutrientIDFiber        = 1079 // g
	nutrientIDSugar        = 2000 // g
	nutrientIDSodium       = 1093 // mg
)

// mapFood converts a USDA search hit into a FoodHit, or nil when the food
// reports no calorie value at all.
func mapFood(food *searchFood) *domain.FoodHit {
	facts := domain.NutritionFacts{}

	for _, nutrient := range food.Nutrients {
		switch nutrient.NutrientID {
		case nutrientIDEnergy:
			if nutrient.UnitName == "" || nutrient.UnitName == "KCAL" {
				facts.Calories = domain.Float(nutrient.Value)
			}
		case nutrientIDProtein:
			facts.Protein = domain.Float(nutrient.Value)
		case nutrientIDCarbohydrate:
			facts.Carbs = domain.Float(nutrient.Value)
		case nutrientIDTotalFat:
			facts.Fat = domain.Float(nutrient.Value)
		case nutrientIDFiber:
			facts.Fiber = domain.Float(nutrient.Value)
		case nutrientIDSugar:
			facts.Sugar = domain.Float(nutrient.Value)
		case nutrientIDSodium:
			facts.Sodium = domain.Float(nutrient.Value)
		}
	}

	if !facts.HasCalories() {
		return nil
	}

	return &domain.FoodHit{
		Name:   food.Description,
		Brand:  food.BrandOwner,
		Per100: facts,
	}
}

package usecase

import "github.com/nutricam/backend/internal/domain"

// Tolerance band for cross-source calorie agreement. A primary result
// whose calories differ from an independent secondary source by more than
// 2x in either direction is distrusted wholesale.
const (
	calorieRatioMin = 0.5
	calorieRatioMax = 2.0
)

// Reconcile decides the trusted per-100g values given a primary result
// and an optional secondary result from an independent provider.
//
// The step is asymmetric in trust: the primary is favored whenever
// plausible because it is typically the product-specific source (label
// data), while the secondary is a generic reference value. The secondary
// only displaces the primary when the primary has no calorie value or its
// calories fall outside the tolerance band.
func Reconcile(
	primary *domain.NutritionFacts, primarySource domain.Source,
	secondary *domain.NutritionFacts, secondarySource domain.Source,
) (*domain.NutritionFacts, domain.Source) {
	if primary.IsEmpty() && secondary.IsEmpty() {
		return nil, ""
	}
	if secondary.IsEmpty() {
		return primary.Clone(), primarySource
	}
	if primary.IsEmpty() {
		return secondary.Clone(), secondarySource
	}

	if !primary.HasCalories() {
		// Partial macros without calories are not worth defending when
		// the secondary supplies a full calorie value.
		if secondary.HasCalories() {
			return secondary.Clone(), secondarySource
		}
		return primary.Clone(), primarySource
	}
	if !secondary.HasCalories() {
		return primary.Clone(), primarySource
	}

	ratio := *primary.Calories / *secondary.Calories
	if ratio < calorieRatioMin || ratio > calorieRatioMax {
		return secondary.Clone(), secondarySource
	}

	merged := primary.Clone()
	merged.FillFrom(secondary)
	return merged, primarySource.Verified()
}

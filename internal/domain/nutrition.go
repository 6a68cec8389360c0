package domain

import "time"

// NutritionFacts holds macronutrient values normalized to 100 grams.
// Fields are pointers so a value a provider never reported stays
// distinguishable from a true zero.
type NutritionFacts struct {
	Calories *float64 `json:"calories,omitempty"` // kcal
	Protein  *float64 `json:"protein,omitempty"`  // grams
	Carbs    *float64 `json:"carbs,omitempty"`    // grams
	Fat      *float64 `json:"fat,omitempty"`      // grams
	Fiber    *float64 `json:"fiber,omitempty"`    // grams
	Sugar    *float64 `json:"sugar,omitempty"`    // grams
	Sodium   *float64 `json:"sodium,omitempty"`   // milligrams
}

// Float returns a pointer to v, for building NutritionFacts literals.
func Float(v float64) *float64 {
	return &v
}

// HasCalories reports whether a positive calorie value is present.
func (f *NutritionFacts) HasCalories() bool {
	return f != nil && f.Calories != nil && *f.Calories > 0
}

// IsEmpty reports whether no field carries a value.
func (f *NutritionFacts) IsEmpty() bool {
	if f == nil {
		return true
	}
	return f.Calories == nil && f.Protein == nil && f.Carbs == nil &&
		f.Fat == nil && f.Fiber == nil && f.Sugar == nil && f.Sodium == nil
}

// FillFrom copies every field that is unset in f from other.
func (f *NutritionFacts) FillFrom(other *NutritionFacts) {
	if other == nil {
		return
	}
	if f.Calories == nil {
		f.Calories = other.Calories
	}
	if f.Protein == nil {
		f.Protein = other.Protein
	}
	if f.Carbs == nil {
		f.Carbs = other.Carbs
	}
	if f.Fat == nil {
		f.Fat = other.Fat
	}
	if f.Fiber == nil {
		f.Fiber = other.Fiber
	}
	if f.Sugar == nil {
		f.Sugar = other.Sugar
	}
	if f.Sodium == nil {
		f.Sodium = other.Sodium
	}
}

// Clone returns a deep copy of the facts.
func (f *NutritionFacts) Clone() *NutritionFacts {
	if f == nil {
		return nil
	}
	clone := func(src *float64) *float64 {
		if src == nil {
			return nil
		}
		v := *src
		return &v
	}
	return &NutritionFacts{
		Calories: clone(f.Calories),
		Protein:  clone(f.Protein),
		Carbs:    clone(f.Carbs),
		Fat:      clone(f.Fat),
		Fiber:    clone(f.Fiber),
		Sugar:    clone(f.Sugar),
		Sodium:   clone(f.Sodium),
	}
}

// Source identifies which provider(s) a nutrition result came from.
type Source string

const (
	SourceOpenFoodFacts Source = "openfoodfacts"
	SourceUSDA          Source = "usda"
	SourceCNF           Source = "cnf"
	SourceAPINinjas     Source = "api-ninjas"
	SourceCache         Source = "cache"
)

// Verified tags a source as cross-checked by a second independent provider
// that agreed within tolerance.
func (s Source) Verified() Source {
	return s + "+verified"
}

// TextResult is the outcome of a free-text nutrition lookup. Brand is
// set only for branded-food hits.
type TextResult struct {
	Name   string         `json:"name"`
	Brand  string         `json:"brand,omitempty"`
	Per100 NutritionFacts `json:"per100g"`
	Source Source         `json:"source"`
}

// BarcodeResult is the outcome of a barcode nutrition lookup.
type BarcodeResult struct {
	Identity   ProductIdentity `json:"identity"`
	Per100     NutritionFacts  `json:"per100g"`
	PerServing NutritionFacts  `json:"perServing"`
	Serving    ServingInfo     `json:"servingInfo"`
	Source     Source          `json:"source"`
}

// CacheEntry is one cached text-lookup result keyed by normalized query.
type CacheEntry struct {
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	Brand     string         `json:"brand,omitempty"`
	Source    Source         `json:"source"`
	Facts     NutritionFacts `json:"facts"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

// Expired reports whether the entry is past its TTL at the given instant.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ReferenceFood is one entry of a language-specific reference food list.
// Description is comma-segmented with the most specific segment last,
// e.g. "Sweets, sugars, granulated". Code joins the two language lists.
type ReferenceFood struct {
	Code        int    `json:"food_code"`
	Description string `json:"food_description"`
}

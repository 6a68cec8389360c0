package openfoodfacts

import (
	"strconv"
	"strings"

	"github.com/nutricam/backend/internal/domain"
)

// kJPerKcal is the standard conversion used when a product reports only
// kilojoules.
const kJPerKcal = 4.184

// mapProduct converts an OFF product payload into a ProductRecord, or nil
// when the payload has no usable name.
func mapProduct(code string, payload *productResponse) *domain.ProductRecord {
	p := &payload.Product

	name := firstNonEmpty(p.ProductName, p.ProductNameEn, p.GenericName)
	if name == "" {
		return nil
	}

	record := &domain.ProductRecord{
		Identity: domain.ProductIdentity{
			Name:     name,
			Brand:    firstBrand(p.Brands),
			ImageURL: p.ImageURL,
			Barcode:  code,
		},
		Per100:             extractNutriments(p.Nutriments),
		ServingLabel:       p.ServingSize,
		NameEnglish:        p.ProductNameEn,
		GenericNameEnglish: p.GenericNameEn,
		GenericName:        p.GenericName,
		CategoriesEnglish:  englishCategories(p.CategoriesTagsEn, p.CategoriesTags),
	}
	return record
}

// extractNutriments pulls per-100g macros out of the nutriments map.
// Calories prefer energy-kcal_100g with an energy-kj_100g fallback.
func extractNutriments(nutriments map[string]any) domain.NutritionFacts {
	facts := domain.NutritionFacts{}

	if v, ok := extractFloat(nutriments, "energy-kcal_100g"); ok {
		facts.Calories = domain.Float(v)
	} else if v, ok := extractFloat(nutriments, "energy-kj_100g"); ok {
		facts.Calories = domain.Float(v / kJPerKcal)
	}
	if v, ok := extractFloat(nutriments, "proteins_100g"); ok {
		facts.Protein = domain.Float(v)
	}
	if v, ok := extractFloat(nutriments, "carbohydrates_100g"); ok {
		facts.Carbs = domain.Float(v)
	}
	if v, ok := extractFloat(nutriments, "fat_100g"); ok {
		facts.Fat = domain.Float(v)
	}
	if v, ok := extractFloat(nutriments, "fiber_100g"); ok {
		facts.Fiber = domain.Float(v)
	}
	if v, ok := extractFloat(nutriments, "sugars_100g"); ok {
		facts.Sugar = domain.Float(v)
	}
	// OFF reports sodium in grams; the domain unit is milligrams.
	if v, ok := extractFloat(nutriments, "sodium_100g"); ok {
		facts.Sodium = domain.Float(v * 1000)
	}

	return facts
}

// extractFloat coerces a nutriments value to float64; OFF mixes numbers
// and numeric strings in the same field across products.
func extractFloat(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// englishCategories returns the English category tags ordered most
// specific first. OFF lists categories general-to-specific; the tagged
// list falls back to stripping "en:" prefixes from the raw tags.
func englishCategories(tagged, raw []string) []string {
	source := tagged
	if len(source) == 0 {
		for _, tag := range raw {
			if rest, ok := strings.CutPrefix(tag, "en:"); ok {
				source = append(source, strings.ReplaceAll(rest, "-", " "))
			}
		}
	}

	out := make([]string, 0, len(source))
	for i := len(source) - 1; i >= 0; i-- {
		if source[i] != "" {
			out = append(out, source[i])
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// firstBrand takes the first entry of OFF's comma-separated brands field.
func firstBrand(brands string) string {
	if idx := strings.Index(brands, ","); idx >= 0 {
		brands = brands[:idx]
	}
	return strings.TrimSpace(brands)
}

package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/nutricam/backend/internal/domain"
)

// Plausibility limits for a declared serving. Anything implying more
// than 800 kcal per serving, or more than 500 g, is almost always the
// whole multi-serving package printed where one serving should be.
const (
	maxPlausibleServingKcal  = 800.0
	maxPlausibleServingGrams = 500.0
	defaultServingGrams      = 100.0
)

// Category gram estimates used when a declared serving is implausible.
const (
	podServingGrams      = 15.0
	barServingGrams      = 40.0
	packetServingGrams   = 28.0
	fallbackServingGrams = 30.0
)

// Package-level compiled regex patterns.
var (
	parentheticalGramsRegex = regexp.MustCompile(`(?i)\((\d+(?:[.,]\d+)?)\s*(?:g|ml)\)`)
	bareGramsRegex          = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?)\s*(?:g|ml)\b`)

	podNameRegex    = regexp.MustCompile(`(?i)\b(pods?|capsules?|single[- ]serve)\b`)
	packetNameRegex = regexp.MustCompile(`(?i)\b(packets?|sachets?|pouch(es)?)\b`)
)

// CorrectServing validates a product's declared serving against its
// per-100g calories and substitutes a category-based estimate when the
// declared value is implausible. It returns the serving info and the
// per-serving facts scaled from per-100g.
func CorrectServing(productName, servingLabel string, per100 *domain.NutritionFacts) (domain.ServingInfo, domain.NutritionFacts) {
	grams, parsed := parseServingGrams(servingLabel)
	if !parsed {
		grams = defaultServingGrams
	}

	info := domain.ServingInfo{
		DisplayLabel: strings.TrimSpace(servingLabel),
		Grams:        grams,
	}
	if info.DisplayLabel == "" {
		info.DisplayLabel = "100 g"
	}

	impliedKcal := 0.0
	if per100.HasCalories() {
		impliedKcal = *per100.Calories * grams / 100
	}

	if impliedKcal > maxPlausibleServingKcal || grams > maxPlausibleServingGrams {
		estimated := estimateServingGrams(productName, per100)
		info.WasCorrected = true
		info.CorrectionReason = correctionReason(grams, impliedKcal, estimated)
		info.Grams = estimated
		info.DisplayLabel = fmt.Sprintf("%.0f g (estimated)", estimated)
	}

	return info, scaleToServing(per100, info.Grams)
}

// parseServingGrams extracts a gram (or millilitre) amount from a declared
// serving string, preferring a parenthetical form like "2 cookies (28g)"
// over a bare "28 g" token.
func parseServingGrams(label string) (float64, bool) {
	for _, re := range []*regexp.Regexp{parentheticalGramsRegex, bareGramsRegex} {
		if m := re.FindStringSubmatch(label); m != nil {
			raw := strings.ReplaceAll(m[1], ",", ".")
			if grams, err := strconv.ParseFloat(raw, 64); err == nil && grams > 0 {
				return grams, true
			}
		}
	}
	return 0, false
}

// estimateServingGrams re-estimates one serving from product-name
// heuristics, falling back to calorie density when no category matches.
func estimateServingGrams(productName string, per100 *domain.NutritionFacts) float64 {
	switch {
	case podNameRegex.MatchString(productName):
		return podServingGrams
	case strings.Contains(strings.ToLower(productName), "bar"):
		return barServingGrams
	case packetNameRegex.MatchString(productName):
		return packetServingGrams
	}

	if per100.HasCalories() {
		// Target a ~150 kcal serving, clamped to a sane gram range.
		grams := math.Round(150 / *per100.Calories * 100)
		return math.Min(200, math.Max(10, grams))
	}
	return fallbackServingGrams
}

func correctionReason(declaredGrams, impliedKcal, estimated float64) string {
	if impliedKcal > maxPlausibleServingKcal {
		return fmt.Sprintf(
			"declared serving of %.0f g implies %.0f kcal, likely the whole package; estimated %.0f g instead",
			declaredGrams, impliedKcal, estimated)
	}
	return fmt.Sprintf(
		"declared serving of %.0f g exceeds %.0f g, likely the whole package; estimated %.0f g instead",
		declaredGrams, maxPlausibleServingGrams, estimated)
}

// scaleToServing converts per-100g facts to per-serving facts. Calories
// round to whole units, every other field to one decimal place.
func scaleToServing(per100 *domain.NutritionFacts, grams float64) domain.NutritionFacts {
	factor := grams / 100

	roundWhole := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return domain.Float(math.Round(*v * factor))
	}
	roundTenth := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return domain.Float(math.Round(*v*factor*10) / 10)
	}

	if per100 == nil {
		return domain.NutritionFacts{}
	}
	return domain.NutritionFacts{
		Calories: roundWhole(per100.Calories),
		Protein:  roundTenth(per100.Protein),
		Carbs:    roundTenth(per100.Carbs),
		Fat:      roundTenth(per100.Fat),
		Fiber:    roundTenth(per100.Fiber),
		Sugar:    roundTenth(per100.Sugar),
		Sodium:   roundTenth(per100.Sodium),
	}
}

package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutricam/backend/internal/domain"
)

func facts(calories float64) *domain.NutritionFacts {
	return &domain.NutritionFacts{Calories: domain.Float(calories)}
}

func TestReconcile_DistrustsPrimaryOutsideToleranceBand(t *testing.T) {
	// 50 vs 387 kcal: ratio 0.13, far below 0.5. The secondary wins
	// wholesale and the provenance is the secondary's, not "+verified".
	primary := facts(50)
	secondary := facts(387)
	secondary.Carbs = domain.Float(100)

	merged, source := Reconcile(primary, domain.SourceOpenFoodFacts, secondary, domain.SourceUSDA)

	require.NotNil(t, merged)
	assert.Equal(t, 387.0, *merged.Calories)
	assert.Equal(t, 100.0, *merged.Carbs)
	assert.Equal(t, domain.SourceUSDA, source)
}

func TestReconcile_TrustsPrimaryWithinTolerance(t *testing.T) {
	// 400 vs 387 kcal: ratio ~1.03. The primary wins, missing fields are
	// filled from the secondary, and the provenance gains "+verified".
	primary := facts(400)
	primary.Protein = domain.Float(8)
	secondary := facts(387)
	secondary.Protein = domain.Float(7.5)
	secondary.Fiber = domain.Float(2.1)

	merged, source := Reconcile(primary, domain.SourceOpenFoodFacts, secondary, domain.SourceUSDA)

	require.NotNil(t, merged)
	assert.Equal(t, 400.0, *merged.Calories)
	assert.Equal(t, 8.0, *merged.Protein, "primary fields are never overwritten")
	require.NotNil(t, merged.Fiber)
	assert.Equal(t, 2.1, *merged.Fiber, "missing fields are filled from the secondary")
	assert.Equal(t, domain.Source("openfoodfacts+verified"), source)
}

func TestReconcile_RatioExactlyDoubleStaysTrusted(t *testing.T) {
	merged, source := Reconcile(facts(200), domain.SourceOpenFoodFacts, facts(100), domain.SourceUSDA)

	require.NotNil(t, merged)
	assert.Equal(t, 200.0, *merged.Calories)
	assert.Equal(t, domain.SourceOpenFoodFacts.Verified(), source)
}

func TestReconcile_PrimaryWithoutCaloriesSwitchesWholesale(t *testing.T) {
	primary := &domain.NutritionFacts{Protein: domain.Float(5), Fat: domain.Float(3)}
	secondary := facts(250)

	merged, source := Reconcile(primary, domain.SourceOpenFoodFacts, secondary, domain.SourceAPINinjas)

	require.NotNil(t, merged)
	assert.Equal(t, 250.0, *merged.Calories)
	assert.Nil(t, merged.Protein, "wholesale switch, not a merge")
	assert.Equal(t, domain.SourceAPINinjas, source)
}

func TestReconcile_OnlyOneSideHasData(t *testing.T) {
	merged, source := Reconcile(facts(120), domain.SourceOpenFoodFacts, nil, domain.SourceUSDA)
	require.NotNil(t, merged)
	assert.Equal(t, 120.0, *merged.Calories)
	assert.Equal(t, domain.SourceOpenFoodFacts, source)

	merged, source = Reconcile(nil, domain.SourceOpenFoodFacts, facts(99), domain.SourceUSDA)
	require.NotNil(t, merged)
	assert.Equal(t, 99.0, *merged.Calories)
	assert.Equal(t, domain.SourceUSDA, source)
}

func TestReconcile_NeitherSideHasData(t *testing.T) {
	merged, source := Reconcile(nil, domain.SourceOpenFoodFacts, nil, domain.SourceUSDA)
	assert.Nil(t, merged)
	assert.Equal(t, domain.Source(""), source)
}

func TestReconcile_SecondaryWithoutCaloriesLeavesPrimaryUnverified(t *testing.T) {
	secondary := &domain.NutritionFacts{Protein: domain.Float(7)}

	merged, source := Reconcile(facts(400), domain.SourceOpenFoodFacts, secondary, domain.SourceUSDA)

	require.NotNil(t, merged)
	assert.Equal(t, 400.0, *merged.Calories)
	assert.Equal(t, domain.SourceOpenFoodFacts, source, "no agreement, no +verified")
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	primary := facts(400)
	secondary := facts(387)
	secondary.Fiber = domain.Float(1)

	merged, _ := Reconcile(primary, domain.SourceUSDA, secondary, domain.SourceAPINinjas)
	*merged.Calories = 1

	assert.Equal(t, 400.0, *primary.Calories)
	assert.Nil(t, primary.Fiber)
}

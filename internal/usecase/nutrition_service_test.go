package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nutricam/backend/internal/domain"
)

// MockCache is a hand-rolled domain.CacheRepository.
type MockCache struct {
	mu   sync.Mutex
	data map[string]*domain.CacheEntry
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string]*domain.CacheEntry)}
}

func (m *MockCache) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.data[key]; ok && !entry.Expired(time.Now()) {
		return entry, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCache) GetMany(ctx context.Context, keys []string) (map[string]*domain.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := make(map[string]*domain.CacheEntry)
	for _, key := range keys {
		if entry, ok := m.data[key]; ok && !entry.Expired(time.Now()) {
			found[key] = entry
		}
	}
	return found, nil
}

func (m *MockCache) Upsert(ctx context.Context, entry *domain.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[entry.Key] = entry
	return nil
}

// MockBarcodeProvider is a hand-rolled domain.BarcodeProvider.
type MockBarcodeProvider struct {
	records map[string]*domain.ProductRecord
	err     error
	calls   atomic.Int64
}

func (m *MockBarcodeProvider) FetchProduct(ctx context.Context, code string) (*domain.ProductRecord, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.records[code], nil
}

// MockTextProvider is a hand-rolled domain.TextSearchProvider.
type MockTextProvider struct {
	source     domain.Source
	hits       map[string]*domain.FoodHit
	defaultHit *domain.FoodHit
	err        error
	delay      time.Duration

	calls       atomic.Int64
	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (m *MockTextProvider) Source() domain.Source { return m.source }
func (m *MockTextProvider) Available() bool       { return true }

func (m *MockTextProvider) Search(ctx context.Context, term string) (*domain.FoodHit, error) {
	m.calls.Add(1)
	current := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		max := m.maxInFlight.Load()
		if current <= max || m.maxInFlight.CompareAndSwap(max, current) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return nil, m.err
	}
	if hit, ok := m.hits[term]; ok {
		return hit, nil
	}
	return m.defaultHit, nil
}

func hit(name string, calories float64) *domain.FoodHit {
	return &domain.FoodHit{
		Name:   name,
		Per100: domain.NutritionFacts{Calories: domain.Float(calories)},
	}
}

func newService(
	cache *MockCache,
	barcode *MockBarcodeProvider,
	reference *MockReferenceListClient,
	providers ...domain.TextSearchProvider,
) *NutritionService {
	return NewNutritionService(
		cache, barcode, reference, providers,
		NewCallLimiter(5), zap.NewNop(),
		NutritionServiceConfig{LookupTimeout: time.Second},
	)
}

func emptyReference() *MockReferenceListClient {
	return &MockReferenceListClient{}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  Granulated   Sugar ", "granulated sugar"},
		{"MILK", "milk"},
		{"a\tb\nc", "a b c"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.in); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLookup_InvalidQuery(t *testing.T) {
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference())

	_, err := svc.Lookup(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestLookup_ReferenceIndexPath(t *testing.T) {
	reference := referenceLists()
	reference.nutrients = map[int]*domain.NutritionFacts{
		4294: {Calories: domain.Float(387), Carbs: domain.Float(100)},
	}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, reference)

	result, err := svc.Lookup(context.Background(), "granulated sugar")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}
	if result.Source != domain.SourceCNF {
		t.Errorf("source = %s, want cnf", result.Source)
	}
	if result.Name != "Sweets, sugars, granulated" {
		t.Errorf("name = %q", result.Name)
	}
	if result.Per100.Calories == nil || *result.Per100.Calories != 387 {
		t.Errorf("calories = %v, want 387", result.Per100.Calories)
	}
}

func TestLookup_SecondCallHitsCacheWithZeroProviderCalls(t *testing.T) {
	reference := referenceLists()
	reference.nutrients = map[int]*domain.NutritionFacts{
		4294: {Calories: domain.Float(387)},
	}
	provider := &MockTextProvider{source: domain.SourceUSDA}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, reference, provider)

	first, err := svc.Lookup(context.Background(), "Granulated  Sugar")
	if err != nil || first == nil {
		t.Fatalf("first lookup failed: %v, %v", first, err)
	}

	nameCalls := reference.nameCalls.Load()
	nutrientCalls := reference.nutrientCalls.Load()

	// Different spelling, same normalized key.
	second, err := svc.Lookup(context.Background(), "granulated sugar")
	if err != nil || second == nil {
		t.Fatalf("second lookup failed: %v, %v", second, err)
	}
	if second.Source != domain.SourceCache {
		t.Errorf("source = %s, want cache", second.Source)
	}
	if reference.nameCalls.Load() != nameCalls || reference.nutrientCalls.Load() != nutrientCalls {
		t.Error("cache hit performed outbound reference calls")
	}
	if provider.calls.Load() != 0 {
		t.Errorf("cache hit performed %d provider calls", provider.calls.Load())
	}
}

func TestLookup_ProviderPathWithCrossValidation(t *testing.T) {
	usda := &MockTextProvider{
		source: domain.SourceUSDA,
		hits:   map[string]*domain.FoodHit{"rye crispbread": hit("Crispbread, rye", 400)},
	}
	ninjas := &MockTextProvider{
		source: domain.SourceAPINinjas,
		hits:   map[string]*domain.FoodHit{"rye crispbread": hit("rye crispbread", 387)},
	}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(), usda, ninjas)

	result, err := svc.Lookup(context.Background(), "rye crispbread")
	if err != nil || result == nil {
		t.Fatalf("lookup failed: %v, %v", result, err)
	}
	if result.Source != domain.SourceUSDA.Verified() {
		t.Errorf("source = %s, want usda+verified", result.Source)
	}
	if *result.Per100.Calories != 400 {
		t.Errorf("calories = %v, want primary's 400", *result.Per100.Calories)
	}
}

func TestLookup_DistrustedPrimaryFollowsSecondary(t *testing.T) {
	usda := &MockTextProvider{
		source: domain.SourceUSDA,
		hits:   map[string]*domain.FoodHit{"diet soda": hit("Cola, low calorie", 50)},
	}
	ninjas := &MockTextProvider{
		source: domain.SourceAPINinjas,
		hits:   map[string]*domain.FoodHit{"diet soda": hit("cola syrup", 387)},
	}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(), usda, ninjas)

	result, err := svc.Lookup(context.Background(), "diet soda")
	if err != nil || result == nil {
		t.Fatalf("lookup failed: %v, %v", result, err)
	}
	if result.Source != domain.SourceAPINinjas {
		t.Errorf("source = %s, want api-ninjas", result.Source)
	}
	if *result.Per100.Calories != 387 {
		t.Errorf("calories = %v, want 387", *result.Per100.Calories)
	}
	if result.Name != "cola syrup" {
		t.Errorf("name = %q, want the trusted source's name", result.Name)
	}
}

func TestLookup_ProviderTransportFailureFallsThrough(t *testing.T) {
	failing := &MockTextProvider{source: domain.SourceUSDA, err: errors.New("timeout")}
	working := &MockTextProvider{
		source: domain.SourceAPINinjas,
		hits:   map[string]*domain.FoodHit{"oat milk": hit("oat milk", 47)},
	}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(), failing, working)

	result, err := svc.Lookup(context.Background(), "oat milk")
	if err != nil {
		t.Fatalf("transport failure must not surface: %v", err)
	}
	if result == nil || result.Source != domain.SourceAPINinjas {
		t.Fatalf("expected api-ninjas result, got %+v", result)
	}
}

func TestLookup_AllProvidersMissIsNilNotError(t *testing.T) {
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(),
		&MockTextProvider{source: domain.SourceUSDA})

	result, err := svc.Lookup(context.Background(), "unobtainium stew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestLookupBarcode_InvalidCode(t *testing.T) {
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference())

	_, err := svc.LookupBarcode(context.Background(), "not-a-code")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func podRecord() *domain.ProductRecord {
	return &domain.ProductRecord{
		Identity: domain.ProductIdentity{
			Name:    "Espresso Coffee Pods",
			Brand:   "Brewco",
			Barcode: "036000291452",
		},
		Per100:       domain.NutritionFacts{Calories: domain.Float(400)},
		ServingLabel: "236 g",
		NameEnglish:  "Espresso coffee pods",
	}
}

func TestLookupBarcode_VerifiedWithServingCorrection(t *testing.T) {
	barcode := &MockBarcodeProvider{
		records: map[string]*domain.ProductRecord{"036000291452": podRecord()},
	}
	usda := &MockTextProvider{
		source: domain.SourceUSDA,
		hits:   map[string]*domain.FoodHit{"espresso coffee pods": hit("Coffee, espresso", 387)},
	}
	svc := newService(NewMockCache(), barcode, emptyReference(), usda)

	result, err := svc.LookupBarcode(context.Background(), "036000291452")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a result")
	}

	if result.Source != domain.SourceOpenFoodFacts.Verified() {
		t.Errorf("source = %s, want openfoodfacts+verified", result.Source)
	}
	if result.Identity.Name != "Espresso Coffee Pods" {
		t.Errorf("identity name = %q, primary identity must win", result.Identity.Name)
	}

	// 236 g at 400 kcal/100g implies 944 kcal: corrected to the pod
	// estimate and rescaled.
	if !result.Serving.WasCorrected {
		t.Fatal("expected serving correction")
	}
	if result.Serving.Grams != 15 {
		t.Errorf("serving grams = %v, want 15", result.Serving.Grams)
	}
	if *result.PerServing.Calories != 60 {
		t.Errorf("per-serving calories = %v, want 60", *result.PerServing.Calories)
	}
}

func TestLookupBarcode_KeyedProviderMissResolvedBySecondary(t *testing.T) {
	barcode := &MockBarcodeProvider{} // no products at all
	usda := &MockTextProvider{
		source: domain.SourceUSDA,
		hits: map[string]*domain.FoodHit{
			"737628064502": {
				Name:   "Pad thai noodle kit",
				Brand:  "Thai Kitchen",
				Per100: domain.NutritionFacts{Calories: domain.Float(385)},
			},
		},
	}
	svc := newService(NewMockCache(), barcode, emptyReference(), usda)

	result, err := svc.LookupBarcode(context.Background(), "737628064502")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected the secondary source to resolve the lookup")
	}
	if result.Source != domain.SourceUSDA {
		t.Errorf("source = %s, want usda", result.Source)
	}
	if result.Identity.Name != "Pad thai noodle kit" {
		t.Errorf("identity name = %q, want the secondary's name", result.Identity.Name)
	}
	if result.Identity.Brand != "Thai Kitchen" {
		t.Errorf("identity brand = %q, want the secondary's brand", result.Identity.Brand)
	}
	if result.Identity.Barcode != "737628064502" {
		t.Errorf("identity barcode = %q", result.Identity.Barcode)
	}
	if barcode.calls.Load() == 0 {
		t.Error("expected barcode variants to be tried first")
	}
}

func TestLookupBarcode_NothingResolvesIsNilNotError(t *testing.T) {
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(),
		&MockTextProvider{source: domain.SourceUSDA})

	result, err := svc.LookupBarcode(context.Background(), "0000000000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestBatchLookup_BoundedConcurrencyAndCompleteResults(t *testing.T) {
	provider := &MockTextProvider{
		source:     domain.SourceUSDA,
		defaultHit: hit("generic food", 100),
		delay:      25 * time.Millisecond,
	}
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference(), provider)

	queries := []string{
		"apple", "banana", "carrot", "dates",
		"eggs", "figs", "grapes", "honey",
	}
	results, err := svc.BatchLookup(context.Background(), queries)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 8 {
		t.Fatalf("got %d entries, want 8", len(results))
	}
	for _, query := range queries {
		if _, ok := results[query]; !ok {
			t.Errorf("missing entry for original query %q", query)
		}
	}
	if max := provider.maxInFlight.Load(); max > 5 {
		t.Errorf("%d provider calls in flight, ceiling is 5", max)
	}
}

func TestBatchLookup_CachedQueriesSkipProviders(t *testing.T) {
	cache := NewMockCache()
	_ = cache.Upsert(context.Background(), &domain.CacheEntry{
		Key:       "apple",
		Name:      "Apple, raw",
		Source:    domain.SourceCNF,
		Facts:     domain.NutritionFacts{Calories: domain.Float(52)},
		ExpiresAt: time.Now().Add(time.Hour),
	})
	provider := &MockTextProvider{source: domain.SourceUSDA, defaultHit: hit("generic", 100)}
	svc := newService(cache, &MockBarcodeProvider{}, emptyReference(), provider)

	results, err := svc.BatchLookup(context.Background(), []string{"Apple", "pear"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	apple := results["Apple"]
	if apple == nil || apple.Source != domain.SourceCache {
		t.Fatalf("cached query = %+v, want cache-sourced result", apple)
	}
	if pear := results["pear"]; pear == nil || pear.Source != domain.SourceUSDA {
		t.Fatalf("uncached query = %+v, want usda result", pear)
	}
	if calls := provider.calls.Load(); calls != 1 {
		t.Errorf("provider called %d times, want 1 (only the miss)", calls)
	}
}

func TestBatchLookup_EmptyInput(t *testing.T) {
	svc := newService(NewMockCache(), &MockBarcodeProvider{}, emptyReference())

	_, err := svc.BatchLookup(context.Background(), nil)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
}

func TestLookup_ReferenceLoadBoundedByLookupTimeout(t *testing.T) {
	svc := NewNutritionService(
		NewMockCache(), &MockBarcodeProvider{}, &blockingReferenceClient{}, nil,
		NewCallLimiter(5), zap.NewNop(),
		NutritionServiceConfig{LookupTimeout: 50 * time.Millisecond},
	)

	type outcome struct {
		result *domain.TextResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := svc.Lookup(context.Background(), "granulated sugar")
		done <- outcome{result, err}
	}()

	select {
	case out := <-done:
		if out.err != nil || out.result != nil {
			t.Errorf("got (%+v, %v), want a clean miss when the reference load times out", out.result, out.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lookup still blocked; the reference load ignores the lookup timeout")
	}
}

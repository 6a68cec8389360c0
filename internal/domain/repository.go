package domain

import "context"

// CacheRepository defines the interface for the nutrition lookup cache.
// Keys are normalized query strings; expired entries behave as absent.
type CacheRepository interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	GetMany(ctx context.Context, keys []string) (map[string]*CacheEntry, error)
	Upsert(ctx context.Context, entry *CacheEntry) error
}

// ProductRecord is a barcode-keyed provider's view of one product: fixed
// identity, per-100g facts, and the naming metadata the search-term
// extractor draws from.
type ProductRecord struct {
	Identity     ProductIdentity
	Per100       NutritionFacts
	ServingLabel string

	NameEnglish        string
	GenericNameEnglish string
	GenericName        string
	CategoriesEnglish  []string // most specific first
}

// BarcodeProvider resolves a single barcode candidate to a product.
// A miss (unknown code, unusable payload) is (nil, nil); only transport
// failures surface as errors, and callers treat those as misses too.
type BarcodeProvider interface {
	FetchProduct(ctx context.Context, code string) (*ProductRecord, error)
}

// FoodHit is one text-search provider result.
type FoodHit struct {
	Name   string
	Brand  string
	Per100 NutritionFacts
}

// TextSearchProvider resolves a free-text term to per-100g facts.
// Same soft-miss contract as BarcodeProvider. Available reports whether
// the provider is usable (e.g. its credential is configured).
type TextSearchProvider interface {
	Source() Source
	Available() bool
	Search(ctx context.Context, term string) (*FoodHit, error)
}

// ReferenceListClient fetches the bilingual reference food lists and the
// per-100g nutrient amounts for a matched reference food.
type ReferenceListClient interface {
	FetchFoodNames(ctx context.Context, lang string) ([]ReferenceFood, error)
	FetchNutrients(ctx context.Context, foodCode int) (*NutritionFacts, error)
}

// Limiter bounds the number of simultaneous outbound provider calls.
type Limiter interface {
	Acquire(ctx context.Context) error
	Release()
}

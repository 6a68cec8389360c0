package usecase

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nutricam/backend/internal/domain"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey normalizes a free-text query for cache keying: lowercase,
// trimmed, internal whitespace collapsed.
func NormalizeKey(query string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(strings.ToLower(query)), " ")
}

// NutritionServiceConfig holds configuration for the nutrition service.
type NutritionServiceConfig struct {
	CacheTTL      time.Duration // text-lookup TTL, default 7 days
	LookupTimeout time.Duration // per outbound call, default 10s
	MaxConcurrent int           // batch fan-out width, default 5
}

// NutritionService resolves nutrition facts for foods identified by
// barcode or free text, querying independent providers, reconciling
// disagreements, and caching text lookups.
//
// Text flow: cache -> reference index (cnf) -> text providers in priority
// order with cross-validation between the first two hits -> cache write.
// Barcode flow: barcode provider over code variants -> secondary text
// lookup by best English term (shared cache) -> reconciler -> serving
// corrector. The barcode result itself is not cached.
type NutritionService struct {
	cache     domain.CacheRepository
	barcode   domain.BarcodeProvider
	reference domain.ReferenceListClient
	index     *ReferenceIndex
	providers []domain.TextSearchProvider
	limiter   domain.Limiter
	logger    *zap.Logger

	cacheTTL      time.Duration
	lookupTimeout time.Duration
	maxConcurrent int
}

// NewNutritionService creates a nutrition service. providers are the
// text-search providers in priority order.
func NewNutritionService(
	cache domain.CacheRepository,
	barcode domain.BarcodeProvider,
	reference domain.ReferenceListClient,
	providers []domain.TextSearchProvider,
	limiter domain.Limiter,
	logger *zap.Logger,
	config NutritionServiceConfig,
) *NutritionService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	lookupTimeout := config.LookupTimeout
	if lookupTimeout == 0 {
		lookupTimeout = 10 * time.Second
	}
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &NutritionService{
		cache:         cache,
		barcode:       barcode,
		reference:     reference,
		index:         NewReferenceIndex(reference, lookupTimeout, logger),
		providers:     providers,
		limiter:       limiter,
		logger:        logger.Named("nutrition"),
		cacheTTL:      cacheTTL,
		lookupTimeout: lookupTimeout,
		maxConcurrent: maxConcurrent,
	}
}

// Lookup resolves nutrition facts for a free-text query. A result that
// cannot be resolved by any provider is (nil, nil), not an error.
func (s *NutritionService) Lookup(ctx context.Context, query string) (*domain.TextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrInvalidRequest
	}

	result, fromCache := s.resolveText(ctx, query)
	if result == nil {
		return nil, nil
	}
	if fromCache {
		result.Source = domain.SourceCache
	}
	return result, nil
}

// LookupBarcode resolves a scanned barcode to identity, per-100g and
// per-serving nutrition. Unresolvable codes are (nil, nil).
func (s *NutritionService) LookupBarcode(ctx context.Context, code string) (*domain.BarcodeResult, error) {
	variants := domain.BarcodeVariants(code)
	if len(variants) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	record := s.fetchProduct(ctx, variants)

	// Secondary validation by text search. With a product in hand the
	// best English term describes it; without, the digits themselves can
	// still hit a provider that indexes barcodes. Either way the call
	// shares the text cache.
	term := BestSearchTerm(record)
	if term == "" {
		term = variants[0]
	}
	secondary, _ := s.resolveText(ctx, term)

	var primaryFacts *domain.NutritionFacts
	if record != nil {
		primaryFacts = &record.Per100
	}
	var secondaryFacts *domain.NutritionFacts
	secondarySource := domain.Source("")
	if secondary != nil {
		secondaryFacts = &secondary.Per100
		secondarySource = secondary.Source
	}

	facts, source := Reconcile(primaryFacts, domain.SourceOpenFoodFacts, secondaryFacts, secondarySource)
	if facts == nil {
		return nil, nil
	}

	identity := domain.ProductIdentity{Barcode: code}
	servingLabel := ""
	if record != nil {
		identity = record.Identity
		servingLabel = record.ServingLabel
	} else {
		identity.Name = secondary.Name
		identity.Brand = secondary.Brand
	}

	serving, perServing := CorrectServing(identity.Name, servingLabel, facts)

	return &domain.BarcodeResult{
		Identity:   identity,
		Per100:     *facts,
		PerServing: perServing,
		Serving:    serving,
		Source:     source,
	}, nil
}

// BatchLookup resolves N free-text queries: one cache pass first, then a
// bounded fan-out over the misses. The result map holds exactly one entry
// per input query, keyed by the original (non-normalized) string.
func (s *NutritionService) BatchLookup(ctx context.Context, queries []string) (map[string]*domain.TextResult, error) {
	if len(queries) == 0 {
		return nil, domain.ErrInvalidRequest
	}

	results := make(map[string]*domain.TextResult, len(queries))

	keys := make([]string, 0, len(queries))
	for _, query := range queries {
		keys = append(keys, NormalizeKey(query))
	}
	cached, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		s.logger.Warn("batch cache read failed", zap.Error(err))
		cached = nil
	}

	var missed []string
	for i, query := range queries {
		if entry, ok := cached[keys[i]]; ok {
			results[query] = &domain.TextResult{
				Name:   entry.Name,
				Brand:  entry.Brand,
				Per100: entry.Facts,
				Source: domain.SourceCache,
			}
		} else {
			missed = append(missed, query)
		}
	}

	var mu sync.Mutex
	g := &errgroup.Group{}
	g.SetLimit(s.maxConcurrent)
	for _, query := range missed {
		g.Go(func() error {
			result, _ := s.Lookup(ctx, query)
			mu.Lock()
			results[query] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// resolveText runs the cached text flow and reports whether the result
// came from the cache. The returned source is the resolving provider's
// tag; Lookup rewrites it to "cache" for cache hits.
func (s *NutritionService) resolveText(ctx context.Context, query string) (*domain.TextResult, bool) {
	key := NormalizeKey(query)
	if key == "" {
		return nil, false
	}

	if entry, err := s.cache.Get(ctx, key); err == nil {
		return &domain.TextResult{
			Name:   entry.Name,
			Brand:  entry.Brand,
			Per100: entry.Facts,
			Source: entry.Source,
		}, true
	}

	result := s.resolveUncached(ctx, key)
	if result == nil {
		return nil, false
	}

	entry := &domain.CacheEntry{
		Key:       key,
		Name:      result.Name,
		Brand:     result.Brand,
		Source:    result.Source,
		Facts:     result.Per100,
		ExpiresAt: time.Now().Add(s.cacheTTL),
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}

	return result, false
}

// resolveUncached tries the reference index first, then the text
// providers in priority order with cross-validation between the first
// two that answer.
func (s *NutritionService) resolveUncached(ctx context.Context, query string) *domain.TextResult {
	if match := s.index.Match(ctx, query); match != nil {
		facts := s.fetchReferenceNutrients(ctx, match.Code)
		if facts != nil {
			return &domain.TextResult{
				Name:   match.DisplayName,
				Per100: *facts,
				Source: domain.SourceCNF,
			}
		}
	}

	primaryHit, primarySource, remaining := s.firstProviderHit(ctx, query, s.providers)
	if primaryHit == nil {
		return nil
	}

	validationHit, validationSource, _ := s.firstProviderHit(ctx, query, remaining)
	if validationHit == nil {
		return &domain.TextResult{
			Name:   primaryHit.Name,
			Brand:  primaryHit.Brand,
			Per100: primaryHit.Per100,
			Source: primarySource,
		}
	}

	facts, source := Reconcile(&primaryHit.Per100, primarySource, &validationHit.Per100, validationSource)
	name, brand := primaryHit.Name, primaryHit.Brand
	if source == validationSource {
		// The primary was distrusted; the identity follows the data.
		name, brand = validationHit.Name, validationHit.Brand
	}
	return &domain.TextResult{Name: name, Brand: brand, Per100: *facts, Source: source}
}

// firstProviderHit walks providers in order and returns the first hit,
// its source, and the providers after it. Transport failures and schema
// mismatches are logged and treated as misses for that provider only.
func (s *NutritionService) firstProviderHit(
	ctx context.Context, query string, providers []domain.TextSearchProvider,
) (*domain.FoodHit, domain.Source, []domain.TextSearchProvider) {
	for i, provider := range providers {
		if !provider.Available() {
			continue
		}
		hit, err := s.searchProvider(ctx, provider, query)
		if err != nil {
			s.logger.Warn("text provider failed",
				zap.String("provider", string(provider.Source())),
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		if hit != nil {
			return hit, provider.Source(), providers[i+1:]
		}
	}
	return nil, "", nil
}

func (s *NutritionService) searchProvider(
	ctx context.Context, provider domain.TextSearchProvider, query string,
) (*domain.FoodHit, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	callCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return provider.Search(callCtx, query)
}

// fetchProduct tries each barcode variant in order, stopping at the
// first hit. Transport failures are misses for that variant only.
func (s *NutritionService) fetchProduct(ctx context.Context, variants []string) *domain.ProductRecord {
	for _, variant := range variants {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil
		}

		callCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
		record, err := s.barcode.FetchProduct(callCtx, variant)
		cancel()
		s.limiter.Release()

		if err != nil {
			s.logger.Warn("barcode provider failed",
				zap.String("variant", variant),
				zap.Error(err))
			continue
		}
		if record != nil {
			return record
		}
	}
	return nil
}

func (s *NutritionService) fetchReferenceNutrients(ctx context.Context, code int) *domain.NutritionFacts {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil
	}
	defer s.limiter.Release()

	callCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	facts, err := s.reference.FetchNutrients(callCtx, code)
	if err != nil {
		s.logger.Warn("reference nutrient fetch failed",
			zap.Int("foodCode", code),
			zap.Error(err))
		return nil
	}
	return facts
}

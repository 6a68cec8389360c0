package apininjas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nutricam/backend/internal/domain"
)

// Client handles communication with the API Ninjas nutrition endpoint.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new API Ninjas client. An empty API key leaves the
// client constructed but unavailable; lookups skip it.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	limiter := rate.NewLimiter(rate.Limit(1), 5)

	return &Client{
		httpClient:  &http.Client{},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
		logger:      logger.Named("apininjas"),
	}
}

// Source identifies this provider in provenance tags.
func (c *Client) Source() domain.Source {
	return domain.SourceAPINinjas
}

// Available reports whether the client has a credential to use.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// nutritionItem is one element of the API Ninjas response array. Values
// are reported against ServingSizeG, not a fixed 100 g.
type nutritionItem struct {
	Name         string   `json:"name"`
	ServingSizeG float64  `json:"serving_size_g"`
	Calories     *float64 `json:"calories"`
	ProteinG     *float64 `json:"protein_g"`
	CarbsTotalG  *float64 `json:"carbohydrates_total_g"`
	FatTotalG    *float64 `json:"fat_total_g"`
	FiberG       *float64 `json:"fiber_g"`
	SugarG       *float64 `json:"sugar_g"`
	SodiumMg     *float64 `json:"sodium_mg"`
}

// Search queries the nutrition endpoint and returns the first item with a
// calorie value, rescaled to per-100g, or (nil, nil) when nothing matched.
func (c *Client) Search(ctx context.Context, term string) (*domain.FoodHit, error) {
	if !c.Available() {
		return nil, nil
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1/nutrition?query=%s", c.baseURL, url.QueryEscape(term))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", "NutriCam/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("unexpected status",
			zap.String("term", term),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var items []nutritionItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		c.logger.Warn("schema mismatch", zap.String("term", term), zap.Error(err))
		return nil, nil
	}

	for i := range items {
		if hit := mapItem(&items[i]); hit != nil {
			return hit, nil
		}
	}
	return nil, nil
}

// mapItem rescales an item's values to per-100g. Items without a calorie
// value or a usable serving size are dropped.
func mapItem(item *nutritionItem) *domain.FoodHit {
	if item.Calories == nil || *item.Calories <= 0 {
		return nil
	}

	size := item.ServingSizeG
	if size <= 0 {
		size = 100
	}
	factor := 100 / size

	scale := func(v *float64) *float64 {
		if v == nil {
			return nil
		}
		return domain.Float(*v * factor)
	}

	return &domain.FoodHit{
		Name: item.Name,
		Per100: domain.NutritionFacts{
			Calories: scale(item.Calories),
			Protein:  scale(item.ProteinG),
			Carbs:    scale(item.CarbsTotalG),
			Fat:      scale(item.FatTotalG),
			Fiber:    scale(item.FiberG),
			Sugar:    scale(item.SugarG),
			Sodium:   scale(item.SodiumMg),
		},
	}
}

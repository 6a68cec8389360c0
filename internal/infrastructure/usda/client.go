package usda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nutricam/backend/internal/domain"
)

// searchMaxAttempts bounds retries of transient failures per search.
const searchMaxAttempts = 3

// Client handles communication with the USDA FoodData Central API.
type Client struct {
	httpClient   *http.Client
	apiKey       string
	baseURL      string
	rateLimiter  *rate.Limiter
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewClient creates a new USDA API client. An empty API key leaves the
// client constructed but unavailable; lookups skip it.
func NewClient(apiKey, baseURL string, logger *zap.Logger) *Client {
	// USDA allows 1000 requests per hour: 1000/3600 ≈ 0.278 req/sec.
	limiter := rate.NewLimiter(rate.Limit(0.278), 10)

	return &Client{
		httpClient:   &http.Client{},
		apiKey:       apiKey,
		baseURL:      baseURL,
		rateLimiter:  limiter,
		retryBackoff: 500 * time.Millisecond,
		logger:       logger.Named("usda"),
	}
}

// Source identifies this provider in provenance tags.
func (c *Client) Source() domain.Source {
	return domain.SourceUSDA
}

// Available reports whether the client has a credential to use.
func (c *Client) Available() bool {
	return c.apiKey != ""
}

// searchResponse is the USDA food search payload subset we read.
type searchResponse struct {
	Foods []searchFood `json:"foods"`
}

type searchFood struct {
	FdcID       int64          `json:"fdcId"`
	Description string         `json:"description"`
	BrandOwner  string         `json:"brandOwner"`
	DataType    string         `json:"dataType"`
	Nutrients   []foodNutrient `json:"foodNutrients"`
}

type foodNutrient struct {
	NutrientID int     `json:"nutrientId"`
	UnitName   string  `json:"unitName"`
	Value      float64 `json:"value"`
}

// Search queries FoodData Central and returns the first usable hit as
// per-100g facts, or (nil, nil) when nothing matched. Transient failures
// are retried up to 3 times with backoff before the transport error
// surfaces.
func (c *Client) Search(ctx context.Context, term string) (*domain.FoodHit, error) {
	if !c.Available() {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/foods/search", c.baseURL)
	params := url.Values{}
	params.Add("query", term)
	params.Add("api_key", c.apiKey)
	params.Add("dataType", "Survey (FNDDS),Foundation,SR Legacy,Branded")
	params.Add("pageSize", "5")
	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	var lastErr error
	for attempt := 1; attempt <= searchMaxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		hit, retryable, err := c.doSearch(ctx, reqURL, term)
		if err == nil {
			return hit, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}

		c.logger.Warn("transient failure",
			zap.String("term", term),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < searchMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.retryBackoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctx.Err())
			}
		}
	}

	return nil, lastErr
}

// doSearch performs one search attempt. retryable marks errors worth
// another attempt (network failures and non-404 error statuses).
func (c *Client) doSearch(ctx context.Context, reqURL, term string) (*domain.FoodHit, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "NutriCam/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("unexpected status",
			zap.String("term", term),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, true, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("schema mismatch", zap.String("term", term), zap.Error(err))
		return nil, false, nil
	}

	for _, food := range payload.Foods {
		if hit := mapFood(&food); hit != nil {
			c.logger.Debug("matched food",
				zap.String("term", term),
				zap.Int64("fdcId", food.FdcID),
				zap.String("description", food.Description))
			return hit, false, nil
		}
	}

	return nil, false, nil
}

package openfoodfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nutricam/backend/internal/domain"
)

// Client handles communication with the Open Food Facts product API.
// Open Food Facts is keyed by barcode and requires no credential.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new Open Food Facts client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	// OFF asks product clients to stay under ~100 req/min.
	limiter := rate.NewLimiter(rate.Limit(1.5), 10)

	return &Client{
		httpClient:  &http.Client{},
		baseURL:     baseURL,
		rateLimiter: limiter,
		logger:      logger.Named("openfoodfacts"),
	}
}

// productResponse is the subset of the OFF v2 product payload we read.
type productResponse struct {
	Status  json.Number `json:"status"`
	Product struct {
		ProductName      string         `json:"product_name"`
		ProductNameEn    string         `json:"product_name_en"`
		GenericName      string         `json:"generic_name"`
		GenericNameEn    string         `json:"generic_name_en"`
		Brands           string         `json:"brands"`
		ImageURL         string         `json:"image_url"`
		ServingSize      string         `json:"serving_size"`
		CategoriesTagsEn []string       `json:"categories_tags_en"`
		CategoriesTags   []string       `json:"categories_tags"`
		Nutriments       map[string]any `json:"nutriments"`
	} `json:"product"`
}

// FetchProduct resolves one barcode candidate. Unknown codes and payloads
// that fail validation are a (nil, nil) miss; only transport failures
// return an error, and callers treat those as misses as well.
func (c *Client) FetchProduct(ctx context.Context, code string) (*domain.ProductRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	reqURL := fmt.Sprintf("%s/api/v2/product/%s.json", c.baseURL, code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "NutriCam/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("unexpected status",
			zap.String("code", code),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.logger.Warn("schema mismatch", zap.String("code", code), zap.Error(err))
		return nil, nil
	}

	if status, _ := payload.Status.Int64(); status != 1 {
		return nil, nil
	}

	record := mapProduct(code, &payload)
	if record == nil {
		c.logger.Debug("product unusable", zap.String("code", code))
	}
	return record, nil
}

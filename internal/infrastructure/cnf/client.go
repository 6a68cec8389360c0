package cnf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/nutricam/backend/internal/domain"
)

// CNF nutrient IDs for the macros we extract (per 100 g).
const (
	nutrientIDEnergy  = 208 // kcal
	nutrientIDProtein = 203 // g
	nutrientIDFat     = 204 // g
	nutrientIDCarbs   = 205 // g
	nutrientIDSugar   = 269 // g
	nutrientIDFiber   = 291 // g
	nutrientIDSodium  = 307 // mg
)

// Client fetches the Canadian Nutrient File food-name lists and per-food
// nutrient amounts. The CNF API is public and requires no credential.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *zap.Logger
}

// NewClient creates a new Canadian Nutrient File client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		logger:     logger.Named("cnf"),
	}
}

// FetchFoodNames downloads the full food-name list for one language
// ("en" or "fr"). The list is a few thousand rows and is fetched once per
// process by the reference index.
func (c *Client) FetchFoodNames(ctx context.Context, lang string) ([]domain.ReferenceFood, error) {
	reqURL := fmt.Sprintf("%s/food/?lang=%s&type=json", c.baseURL, lang)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var foods []domain.ReferenceFood
	if err := json.Unmarshal(body, &foods); err != nil {
		return nil, fmt.Errorf("failed to decode food list: %w", err)
	}

	c.logger.Info("fetched food name list",
		zap.String("lang", lang),
		zap.Int("count", len(foods)))
	return foods, nil
}

// nutrientAmount is one row of the CNF nutrientamount payload.
type nutrientAmount struct {
	NutrientNameID int     `json:"nutrient_name_id"`
	NutrientValue  float64 `json:"nutrient_value"`
}

// FetchNutrients returns the per-100g macros for a reference food, or
// (nil, nil) when the food has no rows or no calorie value.
func (c *Client) FetchNutrients(ctx context.Context, foodCode int) (*domain.NutritionFacts, error) {
	reqURL := fmt.Sprintf("%s/nutrientamount/?lang=en&type=json&id=%d", c.baseURL, foodCode)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var amounts []nutrientAmount
	if err := json.Unmarshal(body, &amounts); err != nil {
		c.logger.Warn("schema mismatch",
			zap.Int("foodCode", foodCode),
			zap.Error(err))
		return nil, nil
	}

	facts := &domain.NutritionFacts{}
	for _, amount := range amounts {
		switch amount.NutrientNameID {
		case nutrientIDEnergy:
			facts.Calories = domain.Float(amount.NutrientValue)
		case nutrientIDProtein:
			facts.Protein = domain.Float(amount.NutrientValue)
		case nutrientIDCarbs:
			facts.Carbs = domain.Float(amount.NutrientValue)
		case nutrientIDFat:
			facts.Fat = domain.Float(amount.NutrientValue)
		case nutrientIDFiber:
			facts.Fiber = domain.Float(amount.NutrientValue)
		case nutrientIDSugar:
			facts.Sugar = domain.Float(amount.NutrientValue)
		case nutrientIDSodium:
			facts.Sodium = domain.Float(amount.NutrientValue)
		}
	}

	if !facts.HasCalories() {
		return nil, nil
	}
	return facts, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

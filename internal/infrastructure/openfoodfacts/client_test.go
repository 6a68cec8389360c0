package openfoodfacts

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchProduct_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/product/737628064502.json", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"status": 1,
			"product": {
				"product_name": "Pad thaï aux crevettes",
				"product_name_en": "Shrimp pad thai",
				"brands": "Thai Kitchen,Simply Asia",
				"image_url": "https://images.example/737628064502.jpg",
				"serving_size": "1/2 box (113g)",
				"categories_tags_en": ["Meals", "Noodle dishes"],
				"nutriments": {
					"energy-kcal_100g": 385,
					"proteins_100g": 9.6,
					"carbohydrates_100g": 71.2,
					"fat_100g": 6.1,
					"sugars_100g": "11.5",
					"sodium_100g": 0.78
				}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "737628064502")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Pad thaï aux crevettes", record.Identity.Name)
	assert.Equal(t, "Thai Kitchen", record.Identity.Brand)
	assert.Equal(t, "737628064502", record.Identity.Barcode)
	assert.Equal(t, "1/2 box (113g)", record.ServingLabel)
	assert.Equal(t, "Shrimp pad thai", record.NameEnglish)
	// Most specific category first.
	assert.Equal(t, []string{"Noodle dishes", "Meals"}, record.CategoriesEnglish)

	require.NotNil(t, record.Per100.Calories)
	assert.Equal(t, 385.0, *record.Per100.Calories)
	require.NotNil(t, record.Per100.Sugar) // numeric string coerced
	assert.Equal(t, 11.5, *record.Per100.Sugar)
	require.NotNil(t, record.Per100.Sodium)
	assert.InDelta(t, 780.0, *record.Per100.Sodium, 0.001) // grams to mg
	assert.Nil(t, record.Per100.Fiber)                     // absent, not zero
}

func TestFetchProduct_DerivesKcalFromKilojoules(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"status": 1,
			"product": {
				"product_name": "Mystery biscuit",
				"nutriments": {"energy-kj_100g": 2092}
			}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "123")

	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.Per100.Calories)
	assert.InDelta(t, 500.0, *record.Per100.Calories, 0.1)
}

func TestFetchProduct_UnknownCodeIsAMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "0000000000000")

	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchProduct_NotFoundStatusIsAMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "404")

	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchProduct_MalformedPayloadIsAMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 1, "product": "not an object"`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "123")

	assert.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetchProduct_ServerErrorIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "123")

	assert.Error(t, err)
	assert.Nil(t, record)
}

func TestFetchProduct_ProductWithoutNameIsAMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 1, "product": {"nutriments": {"energy-kcal_100g": 100}}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zap.NewNop())
	record, err := client.FetchProduct(context.Background(), "123")

	assert.NoError(t, err)
	assert.Nil(t, record)
}

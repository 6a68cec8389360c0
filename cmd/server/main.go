package main

import (
	"fmt"
	"log"

	"go.uber.org/zap"

	"github.com/nutricam/backend/config"
	httpDelivery "github.com/nutricam/backend/internal/delivery/http"
	"github.com/nutricam/backend/internal/domain"
	"github.com/nutricam/backend/internal/infrastructure/apininjas"
	"github.com/nutricam/backend/internal/infrastructure/cache"
	"github.com/nutricam/backend/internal/infrastructure/cnf"
	"github.com/nutricam/backend/internal/infrastructure/openfoodfacts"
	"github.com/nutricam/backend/internal/infrastructure/usda"
	"github.com/nutricam/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Server.Environment)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting nutricam backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port))

	memoryCache := cache.NewMemoryStore()

	offClient := openfoodfacts.NewClient(cfg.Providers.OpenFoodFacts.BaseURL, logger)
	cnfClient := cnf.NewClient(cfg.Providers.CNF.BaseURL, logger)
	usdaClient := usda.NewClient(cfg.Providers.USDA.APIKey, cfg.Providers.USDA.BaseURL, logger)
	ninjasClient := apininjas.NewClient(cfg.Providers.APINinjas.APIKey, cfg.Providers.APINinjas.BaseURL, logger)

	for name, available := range map[string]bool{
		"usda":       usdaClient.Available(),
		"api-ninjas": ninjasClient.Available(),
	} {
		if !available {
			logger.Warn("text provider has no API key and will be skipped",
				zap.String("provider", name))
		}
	}

	// Providers in priority order; all outbound calls share one ceiling.
	providers := []domain.TextSearchProvider{usdaClient, ninjasClient}
	limiter := usecase.NewCallLimiter(int64(cfg.Lookup.MaxConcurrent))

	nutritionService := usecase.NewNutritionService(
		memoryCache,
		offClient,
		cnfClient,
		providers,
		limiter,
		logger,
		usecase.NutritionServiceConfig{
			CacheTTL:      cfg.Cache.TTL,
			LookupTimeout: cfg.Lookup.Timeout,
			MaxConcurrent: cfg.Lookup.MaxConcurrent,
		},
	)

	handler := httpDelivery.NewHandler(nutritionService, cfg.Lookup.BatchMax, logger)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProductionConfig().Build()
	}
	return zap.NewDevelopmentConfig().Build()
}

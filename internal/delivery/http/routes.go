package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nutricam/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		nutrition := v1.Group("/nutrition")
		{
			nutrition.GET("/search", handler.SearchNutrition)
			nutrition.GET("/barcode/:code", handler.LookupBarcode)
			nutrition.POST("/batch", handler.BatchLookup)
		}
	}

	return router
}

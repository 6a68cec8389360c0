package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nutricam/backend/internal/domain"
)

// NutritionResolver is the usecase surface the handlers depend on
type NutritionResolver interface {
	Lookup(ctx context.Context, query string) (*domain.TextResult, error)
	LookupBarcode(ctx context.Context, code string) (*domain.BarcodeResult, error)
	BatchLookup(ctx context.Context, queries []string) (map[string]*domain.TextResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	nutrition NutritionResolver
	batchMax  int
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(nutrition NutritionResolver, batchMax int, logger *zap.Logger) *Handler {
	if batchMax <= 0 {
		batchMax = 50
	}
	return &Handler{
		nutrition: nutrition,
		batchMax:  batchMax,
		logger:    logger.Named("http"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "nutricam-backend",
		"version": "1.0.0",
	})
}

// SearchNutrition resolves a free-text food query.
// GET /api/v1/nutrition/search?q=granulated+sugar
func (h *Handler) SearchNutrition(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	result, err := h.nutrition.Lookup(c.Request.Context(), query)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no nutrition data found", "query": query})
		return
	}

	c.JSON(http.StatusOK, result)
}

// LookupBarcode resolves a scanned barcode.
// GET /api/v1/nutrition/barcode/036000291452
func (h *Handler) LookupBarcode(c *gin.Context) {
	code := c.Param("code")

	result, err := h.nutrition.LookupBarcode(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no nutrition data found", "barcode": code})
		return
	}

	c.JSON(http.StatusOK, result)
}

// batchRequest is the body of POST /api/v1/nutrition/batch
type batchRequest struct {
	Queries []string `json:"queries" binding:"required"`
}

// BatchLookup resolves up to batchMax free-text queries in one call.
// Unresolvable queries come back as null entries, not errors.
func (h *Handler) BatchLookup(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.Queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "queries must not be empty"})
		return
	}
	if len(req.Queries) > h.batchMax {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "too many queries",
			"max":   h.batchMax,
		})
		return
	}

	results, err := h.nutrition.BatchLookup(c.Request.Context(), req.Queries)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, domain.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream provider unavailable"})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

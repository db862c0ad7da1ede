package sampling

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hmarstrand/ledgersample/internal/validation"
)

// Handlers exposes the sampling engine over HTTP.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the sampling API under the given router group.
func (h *Handlers) RegisterRoutes(r gin.IRouter) {
	group := r.Group("/v1/sampling")
	group.POST("/plans", h.generatePlan)
	group.GET("/plans", h.listPlans)
	group.GET("/plans/:id", h.getPlan)
	group.POST("/size", h.previewSize)
	group.GET("/health", h.health)
}

func (h *Handlers) generatePlan(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body is not valid JSON: " + err.Error(),
		})
		return
	}

	result, err := h.service.GeneratePlan(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) previewSize(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "request body is not valid JSON: " + err.Error(),
		})
		return
	}

	size, err := h.service.PreviewSize(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recommendedSampleSize": size,
		"populationSize":        req.PopulationSize,
		"testType":              req.TestType,
		"confidenceLevel":       confidenceOrDefault(req.ConfidenceLevel),
	})
}

func (h *Handlers) getPlan(c *gin.Context) {
	plan, items, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"plan":  plan,
		"items": items,
	})
}

func (h *Handlers) listPlans(c *gin.Context) {
	clientID := c.Query("clientId")
	if clientID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "clientId query parameter is required",
		})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	plans, next, hasMore, err := h.service.ListPlans(c.Request.Context(), clientID, limit, c.Query("cursor"))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{
		"plans":   plans,
		"hasMore": hasMore,
	}
	if hasMore {
		resp["nextCursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) health(c *gin.Context) {
	resp := gin.H{
		"status":               "ok",
		"timestamp":            time.Now().UTC(),
		"cacheEntries":         h.service.cache.Len(),
		"persistenceAvailable": h.service.store != nil,
	}
	if last := h.service.LastPlan(); last != nil {
		resp["lastPlan"] = last
	}
	c.JSON(http.StatusOK, resp)
}

// respondError maps engine errors to HTTP status codes and a stable error
// envelope.
func respondError(c *gin.Context, err error) {
	var verrs validation.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": verrs.Error(),
			"details": verrs,
		})
	case errors.Is(err, ErrInvalidDeviationRates):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_deviation_rates",
			"message": err.Error(),
		})
	case errors.Is(err, ErrEmptyPopulation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "empty_population",
			"message": err.Error(),
		})
	case errors.Is(err, ErrPopulationTooLarge):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "population_too_large",
			"message": err.Error(),
		})
	case errors.Is(err, ErrPopulationFetch):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "population_fetch_failed",
			"message": err.Error(),
		})
	case errors.Is(err, ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "plan_not_found",
			"message": err.Error(),
		})
	case errors.Is(err, ErrPersistenceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "persistence_unavailable",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "an unexpected error occurred",
		})
	}
}

package api

import (
	"net/http"
	"strconv"
	"time"

	"pos-service/internal/service"
	"pos-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains HTTP handlers
type Handler struct {
	carts     *service.CartService
	sales     *service.SaleService
	dashboard *service.DashboardService
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(carts *service.CartService, sales *service.SaleService, dashboard *service.DashboardService) *Handler {
	return &Handler{
		carts:     carts,
		sales:     sales,
		dashboard: dashboard,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cart := router.Group("/cart")
	{
		cart.POST("/create", h.createCart)
		cart.POST("/add-item", h.addItem)
		cart.POST("/update-quantity", h.updateQuantity)
		cart.POST("/remove-item", h.removeItem)
		cart.POST("/clear-if-empty", h.clearIfEmpty)
		cart.GET("/active", h.activeCart)
		cart.GET("/complete", h.completeCart)
	}

	router.POST("/sale/create", h.createSale)

	dashboard := router.Group("/dashboard")
	{
		dashboard.GET("/tables", h.dashboardTables)
		dashboard.GET("/deliveries", h.dashboardDeliveries)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// dashboardTables returns the restaurant's tables with occupancy state
func (h *Handler) dashboardTables(c *gin.Context) {
	restaurantID, err := strconv.ParseInt(c.Query("restaurantId"), 10, 64)
	if err != nil || restaurantID <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	tables, err := h.dashboard.Tables(c.Request.Context(), restaurantID)
	if err != nil {
		h.logger.Error("Failed to load dashboard tables", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load tables")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "tables": tables})
}

// dashboardDeliveries returns the restaurant's deliveries with active carts
func (h *Handler) dashboardDeliveries(c *gin.Context) {
	restaurantID, err := strconv.ParseInt(c.Query("restaurantId"), 10, 64)
	if err != nil || restaurantID <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid restaurant ID")
		return
	}

	deliveries, err := h.dashboard.Deliveries(c.Request.Context(), restaurantID)
	if err != nil {
		h.logger.Error("Failed to load dashboard deliveries", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Failed to load deliveries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deliveries": deliveries})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = JSONErrorHandler()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)          // Health check endpoint
	v1.GET("/orders", h.Orders)          // Full order list
	v1.GET("/orders/:id", h.Order)       // Single order lookup
	v1.GET("/queue", h.Queue)            // Enrichment queue diagnostics
	v1.GET("/executed", h.Executed)      // Fully enriched closed orders
	v1.GET("/stats", h.Overview)         // Aggregate overview
	v1.GET("/leaderboard", h.Leaderboard)
	v1.GET("/latest", h.Latest)   // Most recently updated orders
	v1.GET("/defects", h.Defects) // Closed orders missing valuations
	v1.GET("/tokens", h.Tokens)   // Per-token usage counts

	// Admin endpoints with rate limiting
	admin := v1.Group("")
	admin.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(1),   // 1 request per second
		Burst:     5,               // Allow burst of 5 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	admin.POST("/batch", h.TriggerBatch) // Manually trigger a reconciliation run
	admin.GET("/blacklist", h.BlacklistList)
	admin.POST("/blacklist/tokens/:token", h.BlacklistToken)
	admin.DELETE("/blacklist/tokens/:token", h.UnblacklistToken)
	admin.POST("/blacklist/orders/:id", h.SuppressOrder)
	admin.DELETE("/blacklist/orders/:id", h.UnsuppressOrder)

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}

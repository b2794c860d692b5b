package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/usemate/order-stats-api/internal/blacklist"
	"github.com/usemate/order-stats-api/internal/queue"
	"github.com/usemate/order-stats-api/internal/stats"
	"github.com/usemate/order-stats-api/internal/storage"
)

const latestUpdatedLimit = 25

// BatchService triggers reconciliation runs and reports queue state.
type BatchService interface {
	RunBatch(ctx context.Context) error
	QueueState() queue.State
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Store     storage.OrderStore  // Persisted order records
	Stats     *stats.Service      // Aggregate projections
	Batch     BatchService        // Reconciliation scheduler
	Blacklist *blacklist.Registry // Token/order blacklist
	DevMode   bool                // Enable detailed error responses in development
	Logger    *logrus.Logger      // Structured logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// Health returns a simple health check endpoint
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Orders returns every tracked order record
func (h *Handlers) Orders(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Store.FindAll(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list orders", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Order returns a single order by id, case-insensitive
func (h *Handlers) Order(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return h.err(c, http.StatusBadRequest, "invalid order id", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	order, err := h.Store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "order not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get order", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"order": order})
}

// TriggerBatch kicks off a reconciliation run in the background
// The run outlives the request; progress is observable via /queue
func (h *Handlers) TriggerBatch(c echo.Context) error {
	go func() {
		if err := h.Batch.RunBatch(context.Background()); err != nil {
			h.Logger.WithError(err).Error("manual batch failed")
		}
	}()
	return c.JSON(http.StatusAccepted, BatchResponse{Started: true})
}

// Queue reports the enrichment queue diagnostics
func (h *Handlers) Queue(c echo.Context) error {
	state := h.Batch.QueueState()
	return c.JSON(http.StatusOK, QueueResponse{
		Pending: state.Pending,
		Running: state.Running,
		IsEmpty: state.IsEmpty,
	})
}

// Executed returns the fully enriched closed orders
func (h *Handlers) Executed(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Stats.ExecutedOrders(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get executed orders", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Overview returns the aggregate order book overview
func (h *Handlers) Overview(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	overview, err := h.Stats.Overview(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to compute stats", nil)
	}
	return c.JSON(http.StatusOK, overview)
}

// Leaderboard returns the top orders by size and savings
func (h *Handlers) Leaderboard(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	board, err := h.Stats.Leaderboard(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to compute leaderboard", nil)
	}
	return c.JSON(http.StatusOK, board)
}

// Latest returns the most recently updated orders
// Accepts limit query parameter (default: 25, range: 1-200)
func (h *Handlers) Latest(c echo.Context) error {
	limit := latestUpdatedLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 200 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 200"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Stats.LatestUpdated(ctx, limit)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get latest orders", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Defects returns closed orders still missing valuation data
func (h *Handlers) Defects(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Stats.Defects(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get defect orders", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Tokens returns per-token usage counts across all orders
func (h *Handlers) Tokens(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	usage, err := h.Stats.TokenUsage(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get token usage", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"tokens": usage})
}

// BlacklistList returns the current blacklist contents
func (h *Handlers) BlacklistList(c echo.Context) error {
	return c.JSON(http.StatusOK, BlacklistResponse{
		Tokens: h.Blacklist.Tokens(),
		Orders: h.Blacklist.Orders(),
	})
}

// BlacklistToken adds a token address to the blacklist
func (h *Handlers) BlacklistToken(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	h.Blacklist.BlacklistToken(ctx, token)
	return c.NoContent(http.StatusNoContent)
}

// UnblacklistToken removes a token address from the blacklist
func (h *Handlers) UnblacklistToken(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	h.Blacklist.UnblacklistToken(ctx, token)
	return c.NoContent(http.StatusNoContent)
}

// SuppressOrder adds an order id to the blacklist
func (h *Handlers) SuppressOrder(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return h.err(c, http.StatusBadRequest, "invalid order id", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	h.Blacklist.SuppressOrder(ctx, id)
	return c.NoContent(http.StatusNoContent)
}

// UnsuppressOrder removes an order id from the blacklist
func (h *Handlers) UnsuppressOrder(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return h.err(c, http.StatusBadRequest, "invalid order id", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	h.Blacklist.UnsuppressOrder(ctx, id)
	return c.NoContent(http.StatusNoContent)
}

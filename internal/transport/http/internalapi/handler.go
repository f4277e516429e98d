// Package internalapi provides HTTP handlers for operator-only APIs.
// These routes are served on the internal port and are not exposed to clients.
package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/service"
)

// ConnectionCounter reports live websocket connections.
type ConnectionCounter interface {
	ConnectionCount() int
	UserCount() int
}

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
	conns   ConnectionCounter
	log     *logger.Logger
}

// NewHandler creates a new internal API handler. conns may be nil.
func NewHandler(svc *service.Service, conns ConnectionCounter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		service: svc,
		conns:   conns,
		log:     log,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/internal/stats", h.Stats)
	e.POST("/internal/retention/sweep", h.SweepRetention)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// StatsResponse is the body of GET /internal/stats.
type StatsResponse struct {
	*domain.Stats
	Connections int `json:"connections"`
	OnlineUsers int `json:"online_users"`
}

// Stats returns store counters and live connection counts.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		h.log.Error("stats failed", "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal server error"})
	}
	resp := StatsResponse{Stats: stats}
	if h.conns != nil {
		resp.Connections = h.conns.ConnectionCount()
		resp.OnlineUsers = h.conns.UserCount()
	}
	return c.JSON(http.StatusOK, resp)
}

// SweepRetention deletes stale empty sessions immediately.
func (h *Handler) SweepRetention(c echo.Context) error {
	n, err := h.service.SweepStaleSessions(c.Request().Context())
	if err != nil {
		h.log.Error("retention sweep failed", "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal server error"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deleted": n})
}

// Package v1 provides the public HTTP API handlers.
package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	// Public API
	api.GET("/health", h.Health)
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)

	auth := api.Group("", h.RequireAuth)

	// Chat API
	auth.POST("/chat", h.SubmitChat)
	auth.POST("/chat/message", h.SubmitChat)
	auth.POST("/chat/stream", h.StreamChat)
	auth.GET("/chat/chat-history", h.ChatHistory)
	auth.GET("/chat/latest-chat", h.LatestChat)
	auth.POST("/chat/sessions", h.CreateSession)
	auth.GET("/chat/chats/:chat_id/messages", h.GetSessionMessages)
	auth.PUT("/chat/chats/:chat_id", h.RenameSession)
	auth.DELETE("/chat/empty", h.PurgeEmptySessions)
	auth.DELETE("/chat/:chat_id", h.DeleteSession)

	// Image API
	auth.POST("/image", h.GenerateImage)
	auth.GET("/image/history", h.ImageHistory)
	auth.GET("/image/:id", h.GetImage)

	// User API
	auth.GET("/user", h.GetUser)
	auth.PUT("/user/:id", h.UpdateUser)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC(),
	})
}

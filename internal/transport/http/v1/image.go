package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/service"
)

type imageTurn struct {
	ID        int64    `json:"id"`
	ChatID    int64    `json:"chat_id"`
	ImageURLs []string `json:"imageUrls"`
	Timestamp string   `json:"timestamp"`
}

func toImageTurn(t domain.Turn) imageTurn {
	return imageTurn{
		ID:        t.TurnID,
		ChatID:    t.SessionID,
		ImageURLs: strings.Split(t.Text(), "\n"),
		Timestamp: t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// GenerateImage creates images for a prompt and records them in a session.
// POST /api/image
func (h *Handler) GenerateImage(c echo.Context) error {
	var req domain.ImageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest(c, "Prompt is required")
	}

	out, err := h.service.GenerateImage(c.Request().Context(), service.GenerateImageInput{
		UserID:    currentUser(c),
		SessionID: req.ChatID,
		Prompt:    req.Prompt,
		Width:     req.Width,
		Height:    req.Height,
		N:         req.N,
	})
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.ImageResponse{ImageURLs: out.ImageURLs, ChatID: out.SessionID})
}

// ImageHistory lists the caller's generated images, newest first.
// GET /api/image/history
func (h *Handler) ImageHistory(c echo.Context) error {
	turns, err := h.service.ListImageTurns(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}

	images := make([]imageTurn, 0, len(turns))
	for _, t := range turns {
		if t.Role() == domain.RoleAssistant {
			images = append(images, toImageTurn(t))
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"images": images})
}

// GetImage returns one image turn.
// GET /api/image/:id
func (h *Handler) GetImage(c echo.Context) error {
	turnID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid image id")
	}

	turn, err := h.service.GetImageTurn(c.Request().Context(), currentUser(c), turnID)
	if err != nil {
		return h.respondError(c, err)
	}
	if turn.Role() != domain.RoleAssistant {
		return c.JSON(http.StatusOK, turn)
	}
	return c.JSON(http.StatusOK, toImageTurn(*turn))
}

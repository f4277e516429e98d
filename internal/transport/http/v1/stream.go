package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/service"
)

type streamEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// StreamChat runs one exchange and streams the reply as server-sent events.
// POST /api/chat/stream
func (h *Handler) StreamChat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest(c, "Prompt is required")
	}

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "streaming not supported"})
	}

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	write := func(ev streamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	out, err := h.service.SubmitPrompt(c.Request().Context(), service.SubmitPromptInput{
		UserID:    currentUser(c),
		SessionID: req.ChatID,
		Prompt:    req.Prompt,
	}, func(content string) error {
		return write(streamEvent{Type: "delta", Content: content})
	})

	// Status is already sent, so failures travel as events.
	if err != nil {
		ev := streamEvent{Type: "error", Error: "Internal server error"}
		var de *domain.Error
		if errors.As(err, &de) {
			ev.Error = errorMessages[de.Code]
			ev.ChatID = de.SessionID
			ev.Retryable = de.Retryable
		} else {
			h.log.Error("stream chat failed", "error", err)
		}
		if out != nil {
			ev.Content = out.AssistantText
		}
		_ = write(ev)
	} else {
		_ = write(streamEvent{Type: "done", Content: out.AssistantText, ChatID: out.SessionID, Kind: string(out.Kind)})
	}

	fmt.Fprintf(c.Response().Writer, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}

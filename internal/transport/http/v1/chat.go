package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/service"
)

// SubmitChat runs one exchange.
// POST /api/chat
func (h *Handler) SubmitChat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.Sender) == "" {
		return badRequest(c, "Prompt and sender are required")
	}

	out, err := h.service.SubmitPrompt(c.Request().Context(), service.SubmitPromptInput{
		UserID:    currentUser(c),
		SessionID: req.ChatID,
		Prompt:    req.Prompt,
	}, nil)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.ChatResponse{
		Message:  "Message received",
		Response: out.AssistantText,
		ChatID:   out.SessionID,
	})
}

// ChatHistory lists the caller's sessions, most recently active first.
// GET /api/chat/chat-history
func (h *Handler) ChatHistory(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if len(sessions) == 0 {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"message": "No chat history found",
			"chats":   sessions,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"chats": sessions})
}

// LatestChat returns the id of the caller's newest session.
// GET /api/chat/latest-chat
func (h *Handler) LatestChat(c echo.Context) error {
	session, err := h.service.LatestSession(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	if session == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"chat_id": nil,
			"message": "No chats available",
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"chat_id": session.SessionID,
		"name":    session.Label,
		"message": "Latest chat found",
	})
}

// CreateSession opens a new session, optionally with a first message.
// POST /api/chat/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	sessionID, out, err := h.service.CreateSession(c.Request().Context(), currentUser(c), req.InitialMessage)
	if err != nil {
		return h.respondError(c, err)
	}

	resp := domain.CreateSessionResponse{ChatID: sessionID}
	if out != nil {
		resp.Response = out.AssistantText
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSessionMessages returns the turns of one session.
// GET /api/chat/chats/:chat_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sessionID, ok := pathID(c, "chat_id")
	if !ok {
		return badRequest(c, "invalid chat_id")
	}

	turns, err := h.service.GetSessionTurns(c.Request().Context(), currentUser(c), sessionID)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, turns)
}

// RenameSession sets a label chosen by the user.
// PUT /api/chat/chats/:chat_id
func (h *Handler) RenameSession(c echo.Context) error {
	sessionID, ok := pathID(c, "chat_id")
	if !ok {
		return badRequest(c, "invalid chat_id")
	}
	var req domain.RenameSessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	label := req.Label
	if label == "" {
		label = req.Name
	}

	session, err := h.service.RenameSession(c.Request().Context(), currentUser(c), sessionID, label)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession removes a session and its turns.
// DELETE /api/chat/:chat_id
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID, ok := pathID(c, "chat_id")
	if !ok {
		return badRequest(c, "invalid chat_id")
	}

	if err := h.service.DeleteSession(c.Request().Context(), currentUser(c), sessionID); err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Chat deleted successfully",
		"chat_id": sessionID,
	})
}

// PurgeEmptySessions deletes the caller's sessions that have no turns.
// DELETE /api/chat/empty
func (h *Handler) PurgeEmptySessions(c echo.Context) error {
	n, err := h.service.PurgeEmptySessions(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Empty chats deleted",
		"deleted": n,
	})
}

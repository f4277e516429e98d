package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/service"
)

// GetUser returns the caller's profile.
// GET /api/user
func (h *Handler) GetUser(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, user)
}

// UpdateUser changes the caller's profile.
// PUT /api/user/:id
func (h *Handler) UpdateUser(c echo.Context) error {
	userID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	if userID != currentUser(c) {
		return c.JSON(http.StatusForbidden, domain.ErrorResponse{Error: "You can only update your own profile"})
	}

	var req domain.UpdateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	user, err := h.service.UpdateUser(c.Request().Context(), userID, service.UpdateUserInput{
		Username:        req.Username,
		Email:           req.Email,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

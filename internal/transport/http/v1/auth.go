package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
)

const userIDKey = "user_id"

// RequireAuth rejects requests without a valid bearer token and stores the caller's user id.
func (h *Handler) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token := ""
		if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Error: "Authentication token required"})
		}

		userID, err := h.service.ParseToken(token)
		if err != nil {
			return c.JSON(http.StatusForbidden, domain.ErrorResponse{Error: "Invalid or expired token"})
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func currentUser(c echo.Context) int64 {
	id, _ := c.Get(userIDKey).(int64)
	return id
}

// Register creates an account.
// POST /api/register
func (h *Handler) Register(c echo.Context) error {
	var req domain.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return badRequest(c, "Username and password are required")
	}

	user, err := h.service.Register(c.Request().Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if domain.CodeOf(err) == domain.ErrorConflict {
			return c.JSON(http.StatusConflict, domain.ErrorResponse{Error: "Username already exists"})
		}
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"userId":  user.UserID,
	})
}

// Login issues an access token.
// POST /api/login
func (h *Handler) Login(c echo.Context) error {
	var req domain.LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return badRequest(c, "Username and password are required")
	}

	user, token, err := h.service.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if domain.CodeOf(err) == domain.ErrorUnauthorized {
			return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{Error: "Invalid username or password"})
		}
		return h.respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.LoginResponse{
		Message:   "Login successful",
		Token:     token,
		ExpiresIn: int64(h.service.TokenTTL().Seconds()),
		User:      *user,
	})
}

// Logout is a no-op; tokens are stateless and dropped by the client.
// POST /api/logout
func (h *Handler) Logout(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

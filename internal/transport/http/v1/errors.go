package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/domain"
)

var errorMessages = map[domain.ErrorCode]string{
	domain.ErrorValidation:            "Invalid request",
	domain.ErrorAuthorizationMismatch: "Access denied to this chat",
	domain.ErrorUnauthorized:          "Authentication required",
	domain.ErrorNotFound:              "Not found",
	domain.ErrorConflict:              "Already exists",
	domain.ErrorStorage:               "Internal server error",
	domain.ErrorUpstream:              "AI service request failed",
	domain.ErrorInternal:              "Internal server error",
}

// statusFor maps a service error to its HTTP status.
func statusFor(de *domain.Error) int {
	switch de.Code {
	case domain.ErrorValidation:
		return http.StatusBadRequest
	case domain.ErrorAuthorizationMismatch:
		return http.StatusForbidden
	case domain.ErrorUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorNotFound:
		return http.StatusNotFound
	case domain.ErrorConflict:
		return http.StatusConflict
	case domain.ErrorUpstream:
		switch {
		case de.TimedOut:
			return http.StatusGatewayTimeout
		case de.Reason == "rate_limited":
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error body for err.
func (h *Handler) respondError(c echo.Context, err error) error {
	var de *domain.Error
	if !errors.As(err, &de) {
		h.log.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal server error"})
	}

	status := statusFor(de)
	resp := domain.ErrorResponse{
		Error:     errorMessages[de.Code],
		Retryable: de.Retryable,
		ChatID:    de.SessionID,
	}
	if de.Code != domain.ErrorStorage && de.Code != domain.ErrorInternal {
		resp.Details = de.Reason
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.Path(), "code", de.Code, "error", err)
	}
	return c.JSON(status, resp)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: message})
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

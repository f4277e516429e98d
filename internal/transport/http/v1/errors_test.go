package v1

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/domain"
)

func TestRespondErrorHidesInternalReasons(t *testing.T) {
	h := NewHandler(nil, nil)
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"internal", domain.InternalError("session_policy", errors.New("rego failed")), http.StatusInternalServerError},
		{"storage", domain.StorageError("create_session", errors.New("disk full")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, h.respondError(c, tt.err))
			assert.Equal(t, tt.status, rec.Code)

			var resp domain.ErrorResponse
			decode(t, rec, &resp)
			assert.Equal(t, "Internal server error", resp.Error)
			assert.Empty(t, resp.Details)
		})
	}
}

package v1

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/domain"
)

func TestGenerateImageAndHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.login(t, "alice")
	_, bobToken := env.login(t, "bob")

	rec := env.do(t, http.MethodPost, "/api/image", token, map[string]interface{}{"prompt": "a red fox", "n": 2, "width": 512, "height": 512})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.ImageResponse
	decode(t, rec, &resp)
	require.Len(t, resp.ImageURLs, 2)
	assert.Contains(t, resp.ImageURLs[0], "512x512")

	rec = env.do(t, http.MethodGet, "/api/image/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Images []struct {
			ID        int64    `json:"id"`
			ChatID    int64    `json:"chat_id"`
			ImageURLs []string `json:"imageUrls"`
		} `json:"images"`
	}
	decode(t, rec, &history)
	require.Len(t, history.Images, 1)
	assert.Equal(t, resp.ImageURLs, history.Images[0].ImageURLs)
	assert.Equal(t, resp.ChatID, history.Images[0].ChatID)

	path := fmt.Sprintf("/api/image/%d", history.Images[0].ID)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path, token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, path, bobToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/image/999", token, nil).Code)
}

func TestGenerateImageValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.login(t, "alice")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/image", token, map[string]interface{}{"prompt": ""}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/image", token, map[string]interface{}{"prompt": "fox", "n": 10}).Code)
}

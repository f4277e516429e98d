package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/domain"
)

func TestGenerateImageRecordsImageExchange(t *testing.T) {
	ctx := context.Background()
	var got *llm.ImageGenerationRequest
	client := &stubLLM{images: func(_ context.Context, req *llm.ImageGenerationRequest) (*llm.ImageGenerationResponse, error) {
		got = req
		return &llm.ImageGenerationResponse{Data: []llm.ImageData{
			{URL: "https://img.example/1.png"},
			{B64JSON: "AAAA"},
		}}, nil
	}}
	svc, db := newTestService(t, client, "default")
	alice := newUser(t, db, "alice")

	out, err := svc.GenerateImage(ctx, GenerateImageInput{UserID: alice, Prompt: "a red fox", N: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/1.png", "data:image/png;base64,AAAA"}, out.ImageURLs)
	assert.Equal(t, 1024, got.Width)
	assert.Equal(t, 1024, got.Height)
	assert.Equal(t, "test-image-model", got.Model)

	images, err := svc.ListImageTurns(ctx, alice)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://img.example/1.png\ndata:image/png;base64,AAAA", images[0].Text())

	turn, err := svc.GetImageTurn(ctx, alice, images[0].TurnID)
	require.NoError(t, err)
	assert.Equal(t, out.SessionID, turn.SessionID)
}

func TestGenerateImageValidation(t *testing.T) {
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")

	for _, in := range []GenerateImageInput{
		{UserID: alice, Prompt: ""},
		{UserID: alice, Prompt: "fox", Width: 10},
		{UserID: alice, Prompt: "fox", Height: 4096},
		{UserID: alice, Prompt: "fox", N: 9},
	} {
		_, err := svc.GenerateImage(context.Background(), in)
		assert.Equal(t, domain.ErrorValidation, domain.CodeOf(err), "%+v", in)
	}
}

func TestGenerateImageFailureRecordsErrorExchange(t *testing.T) {
	ctx := context.Background()
	client := &stubLLM{images: func(context.Context, *llm.ImageGenerationRequest) (*llm.ImageGenerationResponse, error) {
		return nil, &llm.UpstreamError{StatusCode: http.StatusTooManyRequests, Message: "rate limit"}
	}}
	svc, db := newTestService(t, client, "default")
	alice := newUser(t, db, "alice")

	_, err := svc.GenerateImage(ctx, GenerateImageInput{UserID: alice, Prompt: "a red fox"})
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	sessions, err := svc.ListSessions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	turns, err := db.ListTurns(ctx, sessions[0].SessionID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.TurnKindError, turns[1].Kind)
}

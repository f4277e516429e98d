package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Errorf("expected non-streaming request")
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"llama","choices":[{"index":0,"message":{"role":"assistant","content":"Hi there!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", time.Second)
	resp, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "llama",
		Messages: []ChatMessage{{Role: "user", Content: "Hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", resp.FirstContent())
	assert.Equal(t, 3, resp.Usage.TotalTokens)
}

func TestClientCreateChatCompletionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit exceeded","type":"rate_limit"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Model:    "llama",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	})
	require.Error(t, err)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusTooManyRequests, upErr.HTTPStatusCode())
	assert.True(t, IsRateLimited(err))
	assert.True(t, IsRetryable(err))
}

func TestClientCreateChatCompletionMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"c1","choices":[]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	_, err := client.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Model: "llama"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.False(t, IsRetryable(err))
}

func TestClientCreateChatCompletionTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.CreateChatCompletion(ctx, &ChatCompletionRequest{Model: "llama"})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsRetryable(err))
}

func TestClientCreateChatCompletionStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"llama\",\"choices\":[{\"index\":0,\"delta\":{\"role\":\"assistant\",\"content\":\"Hi \"}}]}\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"llama\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"there!\"}}],\"usage\":{\"prompt_tokens\":4,\"completion_tokens\":2,\"total_tokens\":6}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	var text string
	usage, err := client.CreateChatCompletionStream(context.Background(), &ChatCompletionRequest{
		Model:    "llama",
		Messages: []ChatMessage{{Role: "user", Content: "hello"}},
	}, func(chunk *StreamChunk) error {
		text += chunk.DeltaContent()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", text)
	require.NotNil(t, usage)
	assert.Equal(t, 6, usage.TotalTokens)
}

func TestClientGenerateImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req ImageGenerationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Width != 512 || req.N != 2 {
			t.Errorf("unexpected request: %+v", req)
		}
		fmt.Fprint(w, `{"id":"img1","model":"flux","data":[{"index":0,"url":"https://img/0.png"},{"index":1,"b64_json":"AAAA"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second)
	resp, err := client.GenerateImages(context.Background(), &ImageGenerationRequest{
		Model: "flux", Prompt: "a cat", Width: 512, Height: 512, N: 2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "https://img/0.png", resp.Data[0].Reference())
	assert.Equal(t, "data:image/png;base64,AAAA", resp.Data[1].Reference())
}

func TestIsRetryableClassification(t *testing.T) {
	assert.True(t, IsRetryable(&UpstreamError{StatusCode: http.StatusServiceUnavailable, Message: "busy"}))
	assert.True(t, IsRetryable(&UpstreamError{StatusCode: 500, Message: "model overloaded"}))
	assert.True(t, IsRetryable(&UpstreamError{StatusCode: http.StatusBadGateway}))
	assert.False(t, IsRetryable(&UpstreamError{StatusCode: http.StatusBadRequest, Message: "bad prompt"}))
	assert.False(t, IsRetryable(nil))
}

func TestMockClientEchoesLastUserMessage(t *testing.T) {
	m := NewMockClient()
	resp, err := m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{
		Messages: []ChatMessage{{Role: "system", Content: "x"}, {Role: "user", Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.FirstContent(), `"ping"`)
}

func TestMockClientCountsHistory(t *testing.T) {
	m := NewMockClient()
	msgs := []ChatMessage{
		{Role: "system", Content: "identity"},
		{Role: "system", Content: "behavior"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}
	resp, err := m.CreateChatCompletion(context.Background(), &ChatCompletionRequest{Messages: msgs})
	require.NoError(t, err)
	assert.Equal(t, `[MOCK] You said "second" with 2 earlier messages in context.`, resp.FirstContent())
}

func TestMockClientStreamMatchesCompletion(t *testing.T) {
	m := NewMockClient()
	req := &ChatCompletionRequest{Messages: []ChatMessage{{Role: "user", Content: "stream me"}}}

	var sb strings.Builder
	chunks := 0
	_, err := m.CreateChatCompletionStream(context.Background(), req, func(chunk *StreamChunk) error {
		chunks++
		sb.WriteString(chunk.DeltaContent())
		return nil
	})
	require.NoError(t, err)

	resp, err := m.CreateChatCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, resp.FirstContent(), sb.String())
	assert.Greater(t, chunks, 1)
}

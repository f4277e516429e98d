package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const mockReplyMaxRunes = 100

// MockClient answers deterministically without network access.
// Selected with AETHERON_MODE=MOCK and used throughout the tests.
type MockClient struct {
	seq atomic.Int64
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion echoes the latest user input and the amount of context it received.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := mockReply(req.Messages)
	return &ChatCompletionResponse{
		ID:      m.nextID("mock-chat"),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Message:      &ChatMessage{Role: "assistant", Content: reply},
			FinishReason: "stop",
		}},
		Usage: estimateUsage(req.Messages, reply),
	}, nil
}

// CreateChatCompletionStream delivers the same reply as CreateChatCompletion one word at a time.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	reply := mockReply(req.Messages)
	id := m.nextID("mock-chat")
	words := strings.SplitAfter(reply, " ")

	for i, word := range words {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		choice := Choice{Delta: &ChatMessage{Role: "assistant", Content: word}}
		if i == len(words)-1 {
			choice.FinishReason = "stop"
		}
		if err := callback(&StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   req.Model,
			Choices: []Choice{choice},
		}); err != nil {
			return nil, err
		}
	}
	return estimateUsage(req.Messages, reply), nil
}

// GenerateImages returns placeholder URLs that encode the requested size.
func (m *MockClient) GenerateImages(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := req.N
	if n <= 0 {
		n = 1
	}
	resp := &ImageGenerationResponse{ID: m.nextID("mock-img"), Model: req.Model}
	for i := 0; i < n; i++ {
		resp.Data = append(resp.Data, ImageData{
			Index: i,
			URL:   fmt.Sprintf("https://mock.invalid/images/%dx%d/%d.png", req.Width, req.Height, i),
		})
	}
	return resp, nil
}

func (m *MockClient) nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, m.seq.Add(1))
}

// mockReply quotes the last user message and counts the history entries before it.
func mockReply(messages []ChatMessage) string {
	last := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			last = i
			break
		}
	}
	if last < 0 {
		return "[MOCK] No user message was provided."
	}

	history := 0
	for _, msg := range messages[:last] {
		if msg.Role != "system" {
			history++
		}
	}
	return fmt.Sprintf("[MOCK] You said %q with %d earlier messages in context.",
		clip(messages[last].Content, mockReplyMaxRunes), history)
}

// estimateUsage approximates token counts at four bytes per token.
func estimateUsage(messages []ChatMessage, reply string) *Usage {
	prompt := 0
	for _, msg := range messages {
		prompt += len(msg.Content) / 4
	}
	completion := len(reply) / 4
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

func clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// Package llm provides clients for an OpenAI-compatible completion and image service.
package llm

import "context"

// LLMClient defines the interface for completion service operations.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateChatCompletionStream sends a streaming chat completion request.
	// The callback is called for each chunk received.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error)

	// GenerateImages requests one or more images for a prompt.
	GenerateImages(ctx context.Context, req *ImageGenerationRequest) (*ImageGenerationResponse, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)

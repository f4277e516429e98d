package service

import (
	"context"
	"strings"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/domain"
)

const (
	defaultImageSize = 1024
	minImageSize     = 64
	maxImageSize     = 2048
	maxImageCount    = 4
)

type GenerateImageInput struct {
	UserID    int64
	SessionID *int64
	Prompt    string
	Width     int
	Height    int
	N         int
}

type GenerateImageOutput struct {
	SessionID int64
	ImageURLs []string
}

func (in *GenerateImageInput) normalize() error {
	if strings.TrimSpace(in.Prompt) == "" {
		return domain.ValidationError("empty_prompt")
	}
	if in.Width == 0 {
		in.Width = defaultImageSize
	}
	if in.Height == 0 {
		in.Height = defaultImageSize
	}
	if in.N == 0 {
		in.N = 1
	}
	if in.Width < minImageSize || in.Width > maxImageSize || in.Height < minImageSize || in.Height > maxImageSize {
		return domain.ValidationError("image_dimensions_out_of_range")
	}
	if in.N < 1 || in.N > maxImageCount {
		return domain.ValidationError("image_count_out_of_range")
	}
	return nil
}

// GenerateImage asks the image service for pictures and records the outcome as an image
// exchange, or an error exchange when the service fails.
func (s *Service) GenerateImage(ctx context.Context, in GenerateImageInput) (*GenerateImageOutput, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	sessionID, unlock, err := s.claimSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	urls, callErr := s.generateImages(ctx, in)

	recordCtx := context.WithoutCancel(ctx)
	exchange := domain.Exchange{
		User:      domain.UserTurn{Text: in.Prompt},
		Assistant: domain.AssistantTurn{Text: strings.Join(urls, "\n")},
		Kind:      domain.TurnKindImage,
	}

	var upstream *domain.Error
	if callErr != nil {
		upstream = upstreamFailure("image_generation_failed", callErr, sessionID)
		exchange.Assistant.Text = failureReply(upstream)
		exchange.Kind = domain.TurnKindError
		s.log.Warn("image generation failed", "session_id", sessionID, "retryable", upstream.Retryable, "error", callErr)
	}

	if err := s.RecordExchange(recordCtx, sessionID, exchange); err != nil {
		s.log.Error("failed to record image exchange", "session_id", sessionID, "error", err)
		return nil, err
	}
	_, _ = s.MaybeUpdateLabel(recordCtx, sessionID)

	if upstream != nil {
		return nil, upstream
	}
	return &GenerateImageOutput{SessionID: sessionID, ImageURLs: urls}, nil
}

func (s *Service) generateImages(ctx context.Context, in GenerateImageInput) ([]string, error) {
	callCtx := ctx
	if s.config.ImageTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.ImageTimeout)
		defer cancel()
	}

	resp, err := s.llmClient.GenerateImages(callCtx, &llm.ImageGenerationRequest{
		Model:  s.config.ImageModel,
		Prompt: in.Prompt,
		Width:  in.Width,
		Height: in.Height,
		N:      in.N,
	})
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if ref := d.Reference(); ref != "" {
			urls = append(urls, ref)
		}
	}
	if len(urls) == 0 {
		return nil, llm.ErrMalformedResponse
	}
	return urls, nil
}

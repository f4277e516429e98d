package service

import (
	"context"
	"errors"
	"strings"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/domain"
)

const (
	timedOutReply   = "The AI service timed out before answering. Please try again."
	overloadedReply = "The AI service is currently experiencing high demand. Please try again in a moment."
	failedReply     = "There was an issue with the AI service. Please try again."
)

type SubmitPromptInput struct {
	UserID    int64
	SessionID *int64
	Prompt    string
}

type SubmitPromptOutput struct {
	SessionID     int64
	AssistantText string
	Kind          domain.TurnKind
}

// DeltaFunc receives streamed reply fragments.
type DeltaFunc func(content string) error

// SubmitPrompt runs one exchange: resolve the session, assemble history, ask the completion
// service, record the exchange and refresh the session label. Upstream failures are recorded
// as error exchanges and returned as *domain.Error with SessionID set.
func (s *Service) SubmitPrompt(ctx context.Context, in SubmitPromptInput, onDelta DeltaFunc) (*SubmitPromptOutput, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, domain.ValidationError("empty_prompt")
	}

	sessionID, unlock, err := s.claimSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	messages, err := s.BuildContext(ctx, sessionID, in.Prompt)
	if err != nil {
		return nil, err
	}

	reply, callErr := s.complete(ctx, messages, onDelta)

	// The exchange is recorded even if the caller went away.
	recordCtx := context.WithoutCancel(ctx)
	out := &SubmitPromptOutput{SessionID: sessionID, AssistantText: reply, Kind: domain.TurnKindText}

	var upstream *domain.Error
	if callErr != nil {
		upstream = upstreamFailure("completion_failed", callErr, sessionID)
		out.AssistantText = failureReply(upstream)
		out.Kind = domain.TurnKindError
		s.log.Warn("completion failed",
			"session_id", sessionID,
			"retryable", upstream.Retryable,
			"timed_out", upstream.TimedOut,
			"error", callErr,
		)
	}

	exchange := domain.Exchange{
		User:      domain.UserTurn{Text: in.Prompt},
		Assistant: domain.AssistantTurn{Text: out.AssistantText},
		Kind:      out.Kind,
	}
	if err := s.RecordExchange(recordCtx, sessionID, exchange); err != nil {
		s.log.Error("failed to record exchange", "session_id", sessionID, "error", err)
		return nil, err
	}
	_, _ = s.MaybeUpdateLabel(recordCtx, sessionID)

	if upstream != nil {
		return out, upstream
	}
	return out, nil
}

func (s *Service) complete(ctx context.Context, messages []llm.ChatMessage, onDelta DeltaFunc) (string, error) {
	callCtx := ctx
	if s.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.config.LLMTimeout)
		defer cancel()
	}

	temperature := s.config.LLMTemperature
	maxTokens := s.config.LLMMaxTokens
	req := &llm.ChatCompletionRequest{
		Model:       s.config.LLMModel,
		Messages:    messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	if onDelta == nil {
		resp, err := s.llmClient.CreateChatCompletion(callCtx, req)
		if err != nil {
			return "", err
		}
		reply := resp.FirstContent()
		if strings.TrimSpace(reply) == "" {
			return "", llm.ErrMalformedResponse
		}
		return reply, nil
	}

	// A failing sink only stops delivery; the reply is still read to the end and recorded.
	req.Stream = true
	var sb strings.Builder
	var sinkErr error
	_, err := s.llmClient.CreateChatCompletionStream(callCtx, req, func(chunk *llm.StreamChunk) error {
		delta := chunk.DeltaContent()
		if delta == "" {
			return nil
		}
		sb.WriteString(delta)
		if sinkErr == nil {
			if sinkErr = onDelta(delta); sinkErr != nil {
				s.log.Debug("stopped delivering reply deltas", "error", sinkErr)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", llm.ErrMalformedResponse
	}
	return sb.String(), nil
}

// upstreamFailure classifies a completion service error.
func upstreamFailure(reason string, err error, sessionID int64) *domain.Error {
	e := domain.NewError(domain.ErrorUpstream, reason, err)
	e.SessionID = sessionID
	e.TimedOut = llm.IsTimeout(err)
	e.Retryable = llm.IsRetryable(err)
	switch {
	case e.TimedOut:
		e.Reason = "timeout"
	case llm.IsRateLimited(err):
		e.Reason = "rate_limited"
	case errors.Is(err, llm.ErrMalformedResponse):
		e.Reason = "malformed_response"
	}
	return e
}

func failureReply(e *domain.Error) string {
	switch {
	case e.TimedOut:
		return timedOutReply
	case e.Retryable:
		return overloadedReply
	default:
		return failedReply
	}
}

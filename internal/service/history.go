package service

import (
	"context"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/domain"
)

// BuildContext assembles the prompt context for a new user input: two system preambles,
// the session's prior turns oldest first, then the new prompt.
func (s *Service) BuildContext(ctx context.Context, sessionID int64, prompt string) ([]llm.ChatMessage, error) {
	turns, err := s.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, domain.StorageError("load_history", err)
	}

	history := make([]llm.ChatMessage, 0, len(turns))
	for _, t := range turns {
		if t.Body == nil {
			continue
		}
		history = append(history, llm.ChatMessage{Role: string(t.Role()), Content: t.Text()})
	}
	history = windowHistory(history, s.config.HistoryWindowExchanges)

	messages := make([]llm.ChatMessage, 0, len(history)+3)
	messages = append(messages,
		llm.ChatMessage{Role: string(domain.RoleSystem), Content: s.config.IdentityPreamble},
		llm.ChatMessage{Role: string(domain.RoleSystem), Content: s.config.BehaviorPreamble},
	)
	messages = append(messages, history...)
	messages = append(messages, llm.ChatMessage{Role: string(domain.RoleUser), Content: prompt})
	return messages, nil
}

// windowHistory keeps the newest n exchanges. The result never starts with an assistant entry.
func windowHistory(history []llm.ChatMessage, n int) []llm.ChatMessage {
	if n <= 0 || len(history) <= 2*n {
		return history
	}
	out := history[len(history)-2*n:]
	for len(out) > 0 && out[0].Role != string(domain.RoleUser) {
		out = out[1:]
	}
	return out
}

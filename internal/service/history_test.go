package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/domain"
)

func TestBuildContextLayout(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")
	sessionID, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RecordExchange(ctx, sessionID, domain.Exchange{
		User:      domain.UserTurn{Text: "Hello"},
		Assistant: domain.AssistantTurn{Text: "Hi there!"},
		Kind:      domain.TurnKindText,
	}))

	messages, err := svc.BuildContext(ctx, sessionID, "What's 2+2?")
	require.NoError(t, err)
	assert.Equal(t, []llm.ChatMessage{
		{Role: "system", Content: "identity"},
		{Role: "system", Content: "behavior"},
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there!"},
		{Role: "user", Content: "What's 2+2?"},
	}, messages)
}

func TestBuildContextIsDeterministic(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")
	sessionID, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.RecordExchange(ctx, sessionID, domain.Exchange{
			User:      domain.UserTurn{Text: fmt.Sprintf("q%d", i)},
			Assistant: domain.AssistantTurn{Text: fmt.Sprintf("a%d", i)},
			Kind:      domain.TurnKindText,
		}))
	}

	first, err := svc.BuildContext(ctx, sessionID, "next")
	require.NoError(t, err)
	second, err := svc.BuildContext(ctx, sessionID, "next")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 2+10+1)
}

func TestBuildContextEmptySession(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")
	sessionID, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	messages, err := svc.BuildContext(ctx, sessionID, "Hello")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, llm.ChatMessage{Role: "user", Content: "Hello"}, messages[2])
}

func TestWindowHistory(t *testing.T) {
	history := []llm.ChatMessage{
		{Role: "user", Content: "q1"}, {Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"}, {Role: "assistant", Content: "a2"},
		{Role: "user", Content: "q3"}, {Role: "assistant", Content: "a3"},
	}

	assert.Equal(t, history, windowHistory(history, 0))
	assert.Equal(t, history, windowHistory(history, 5))
	assert.Equal(t, history[2:], windowHistory(history, 2))

	// An odd tail must not start on an assistant entry.
	skewed := append([]llm.ChatMessage{{Role: "assistant", Content: "orphan"}}, history[:4]...)
	got := windowHistory(skewed[1:], 1)
	assert.Equal(t, "q2", got[0].Content)
	got = windowHistory(skewed[:4], 1)
	assert.Equal(t, []llm.ChatMessage{{Role: "user", Content: "q2"}}, got)
}

package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/repository"
	"github.com/xiaot623/aetheron/policy"
	"github.com/xiaot623/aetheron/tests/helpers"
)

// stubLLM records requests and answers with the configured functions.
type stubLLM struct {
	mu       sync.Mutex
	requests []*llm.ChatCompletionRequest
	chat     func(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error)
	images   func(ctx context.Context, req *llm.ImageGenerationRequest) (*llm.ImageGenerationResponse, error)
}

func reply(text string) func(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	return func(context.Context, *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
		return &llm.ChatCompletionResponse{Choices: []llm.Choice{{Message: &llm.ChatMessage{Role: "assistant", Content: text}}}}, nil
	}
}

func (s *stubLLM) CreateChatCompletion(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.chat(ctx, req)
}

func (s *stubLLM) CreateChatCompletionStream(ctx context.Context, req *llm.ChatCompletionRequest, callback llm.StreamCallback) (*llm.Usage, error) {
	resp, err := s.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	for _, word := range splitWords(resp.FirstContent()) {
		if err := callback(&llm.StreamChunk{Choices: []llm.Choice{{Delta: &llm.ChatMessage{Content: word}}}}); err != nil {
			return nil, err
		}
	}
	return &llm.Usage{}, nil
}

func (s *stubLLM) GenerateImages(ctx context.Context, req *llm.ImageGenerationRequest) (*llm.ImageGenerationResponse, error) {
	return s.images(ctx, req)
}

func (s *stubLLM) lastRequest() *llm.ChatCompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func splitWords(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == ' ' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []domain.Session
}

func (n *recordingNotifier) NotifySessionUpdated(userID int64, session domain.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, session)
}

func testConfig() *config.Config {
	return &config.Config{
		LLMModel:         "test-model",
		ImageModel:       "test-image-model",
		LLMTemperature:   0.3,
		LLMMaxTokens:     256,
		IdentityPreamble: "identity",
		BehaviorPreamble: "behavior",
		SessionPolicy:    "default",
		JWTSecret:        "test-secret",
		JWTTTL:           time.Hour,
		LLMTimeout:       time.Second,
		ImageTimeout:     time.Second,
		RetentionGrace:   time.Hour,
	}
}

func newTestService(t *testing.T, client *stubLLM, policyName string) (*Service, *store.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngineByName(context.Background(), policyName)
	require.NoError(t, err)
	if client.chat == nil {
		client.chat = reply("ok")
	}
	return New(db, client, testConfig(), engine, nil), db
}

func newUser(t *testing.T, db *store.SQLiteStore, name string) int64 {
	t.Helper()
	u := &domain.User{Username: name, PasswordHash: "x"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u.UserID
}

// faultyStore fails selected operations and delegates the rest.
type faultyStore struct {
	store.Store
	labelErr error
	purgeErr error
}

func (f *faultyStore) UpdateAutoLabel(ctx context.Context, sessionID int64, label string) (bool, error) {
	if f.labelErr != nil {
		return false, f.labelErr
	}
	return f.Store.UpdateAutoLabel(ctx, sessionID, label)
}

func (f *faultyStore) PurgeEmptySessions(ctx context.Context, userID int64, exclude []int64) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	return f.Store.PurgeEmptySessions(ctx, userID, exclude)
}

func (f *faultyStore) PurgeStaleEmptySessions(ctx context.Context, createdBefore time.Time, exclude []int64) (int64, error) {
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	return f.Store.PurgeStaleEmptySessions(ctx, createdBefore, exclude)
}

func newFaultyService(t *testing.T, client *stubLLM, faults *faultyStore) (*Service, *store.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngineByName(context.Background(), "default")
	require.NoError(t, err)
	if client.chat == nil {
		client.chat = reply("ok")
	}
	faults.Store = db
	return New(faults, client, testConfig(), engine, nil), db
}

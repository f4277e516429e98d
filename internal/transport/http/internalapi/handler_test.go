package internalapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/service"
	"github.com/xiaot623/aetheron/policy"
	"github.com/xiaot623/aetheron/tests/helpers"
)

type fixedCounter struct{ conns, users int }

func (f fixedCounter) ConnectionCount() int { return f.conns }
func (f fixedCounter) UserCount() int       { return f.users }

func newTestServer(t *testing.T, grace time.Duration) (*echo.Echo, *service.Service) {
	t.Helper()
	cfg := &config.Config{
		LLMModel:       "test-model",
		JWTSecret:      "test-secret",
		JWTTTL:         time.Hour,
		LLMTimeout:     time.Second,
		RetentionGrace: grace,
	}
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc := service.New(helpers.NewTestSQLiteStore(t), llm.NewMockClient(), cfg, policyEngine, nil)

	e := echo.New()
	NewHandler(svc, fixedCounter{conns: 3, users: 2}, nil).RegisterRoutes(e)
	return e, svc
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestStats(t *testing.T) {
	e, svc := newTestServer(t, time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "secret1")
	require.NoError(t, err)
	_, err = svc.SubmitPrompt(ctx, service.SubmitPromptInput{UserID: user.UserID, Prompt: "Hello"}, nil)
	require.NoError(t, err)
	_, _, err = svc.CreateSession(ctx, user.UserID, "")
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/internal/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp["users"])
	assert.EqualValues(t, 2, resp["sessions"])
	assert.EqualValues(t, 1, resp["empty_sessions"])
	assert.EqualValues(t, 2, resp["turns"])
	assert.EqualValues(t, 3, resp["connections"])
	assert.EqualValues(t, 2, resp["online_users"])
}

func TestSweepRetention(t *testing.T) {
	// A negative grace puts the cutoff in the future so every empty session is stale.
	e, svc := newTestServer(t, -time.Minute)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "", "secret1")
	require.NoError(t, err)
	_, _, err = svc.CreateSession(ctx, user.UserID, "")
	require.NoError(t, err)
	_, err = svc.SubmitPrompt(ctx, service.SubmitPromptInput{UserID: user.UserID, Prompt: "Hello"}, nil)
	require.NoError(t, err)

	rec := serve(e, http.MethodPost, "/internal/retention/sweep")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":1}`, rec.Body.String())

	sessions, err := svc.ListSessions(ctx, user.UserID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestHealth(t *testing.T) {
	e, _ := newTestServer(t, time.Hour)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/health").Code)
}

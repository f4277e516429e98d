package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/policy"
)

func TestResolveSessionCreatesWhenNoneRequested(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")

	id, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	session, err := db.GetSession(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, alice, session.UserID)
	assert.Equal(t, domain.DefaultSessionLabel, session.Label)
}

func TestResolveSessionReusesOwnedSession(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")

	first, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)
	again, err := svc.ResolveSession(ctx, alice, &first)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestResolveSessionNeverHandsOutForeignSession(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")

	aliceSession, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	got, err := svc.ResolveSession(ctx, bob, &aliceSession)
	require.NoError(t, err)
	assert.NotEqual(t, aliceSession, got)

	session, err := db.GetSession(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, bob, session.UserID)
}

func TestResolveSessionMissingIDCreatesFresh(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "strict")
	alice := newUser(t, db, "alice")

	missing := int64(424242)
	got, err := svc.ResolveSession(ctx, alice, &missing)
	require.NoError(t, err)
	assert.NotEqual(t, missing, got)
}

func TestResolveSessionStrictPolicyDeniesForeignSession(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "strict")
	alice := newUser(t, db, "alice")
	bob := newUser(t, db, "bob")

	aliceSession, err := svc.ResolveSession(ctx, alice, nil)
	require.NoError(t, err)

	_, err = svc.ResolveSession(ctx, bob, &aliceSession)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorAuthorizationMismatch, domain.CodeOf(err))

	sessions, err := db.ListSessions(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestResolveSessionPolicyFailureIsInternal(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t, &stubLLM{}, "default")
	alice := newUser(t, db, "alice")

	broken, err := policy.NewEngine(ctx, `
package session_policy

decision = "maybe" { true }
`)
	require.NoError(t, err)
	svc.policyEngine = broken

	_, err = svc.ResolveSession(ctx, alice, nil)
	require.Error(t, err)
	assert.Equal(t, domain.ErrorInternal, domain.CodeOf(err))
	assert.NotEqual(t, domain.ErrorStorage, domain.CodeOf(err))

	sessions, err := db.ListSessions(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

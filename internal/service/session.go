package service

import (
	"context"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/policy"
)

// ResolveSession returns the session the exchange belongs to. A missing or foreign requested
// session is handled by the session access policy: either a fresh session is created or the
// request is rejected.
func (s *Service) ResolveSession(ctx context.Context, userID int64, requested *int64) (int64, error) {
	input := policy.Input{UserID: userID}
	if requested != nil {
		input.Requested = true
		existing, err := s.store.GetSession(ctx, *requested)
		if err != nil {
			return 0, domain.StorageError("load_session", err)
		}
		if existing != nil {
			input.Exists = true
			input.OwnerID = existing.UserID
		}
	}

	decision, err := s.policyEngine.Evaluate(ctx, input)
	if err != nil {
		s.log.Error("session policy evaluation failed", "user_id", userID, "error", err)
		return 0, domain.InternalError("session_policy", err)
	}

	mismatch := input.Exists && input.OwnerID != userID
	if mismatch {
		s.log.Warn("session owned by another user",
			"code", domain.ErrorAuthorizationMismatch,
			"user_id", userID,
			"owner_id", input.OwnerID,
			"session_id", *requested,
			"decision", decision,
		)
	} else if input.Requested && !input.Exists {
		s.log.Info("requested session not found", "session_id", *requested, "decision", decision)
	}

	switch decision {
	case domain.SessionDecisionReuse:
		return *requested, nil
	case domain.SessionDecisionDeny:
		return 0, domain.AuthorizationMismatch("session_not_owned")
	default:
		session := &domain.Session{UserID: userID, CreatedAt: s.now()}
		if err := s.store.CreateSession(ctx, session); err != nil {
			return 0, domain.StorageError("create_session", err)
		}
		s.log.Debug("session created", "session_id", session.SessionID, "user_id", userID)
		return session.SessionID, nil
	}
}

// ownedSession loads a session and checks that userID owns it.
func (s *Service) ownedSession(ctx context.Context, userID, sessionID int64) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, domain.StorageError("load_session", err)
	}
	if session == nil {
		return nil, domain.NotFound("session_not_found")
	}
	if session.UserID != userID {
		s.log.Warn("session access denied", "code", domain.ErrorAuthorizationMismatch, "user_id", userID, "session_id", sessionID)
		return nil, domain.AuthorizationMismatch("session_not_owned")
	}
	return session, nil
}

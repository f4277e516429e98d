package service

import (
	"context"
	"strings"

	"github.com/xiaot623/aetheron/internal/domain"
)

func (s *Service) ListSessions(ctx context.Context, userID int64) ([]domain.SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, domain.StorageError("list_sessions", err)
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	return sessions, nil
}

// LatestSession returns the user's newest session or nil when there is none.
func (s *Service) LatestSession(ctx context.Context, userID int64) (*domain.Session, error) {
	session, err := s.store.LatestSession(ctx, userID)
	if err != nil {
		return nil, domain.StorageError("latest_session", err)
	}
	return session, nil
}

func (s *Service) GetSessionTurns(ctx context.Context, userID, sessionID int64) ([]domain.Turn, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	turns, err := s.store.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, domain.StorageError("list_turns", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

// CreateSession opens an empty session. With an initial message the first exchange is run
// right away and its outcome returned.
func (s *Service) CreateSession(ctx context.Context, userID int64, initialMessage string) (int64, *SubmitPromptOutput, error) {
	if strings.TrimSpace(initialMessage) == "" {
		sessionID, err := s.ResolveSession(ctx, userID, nil)
		return sessionID, nil, err
	}
	out, err := s.SubmitPrompt(ctx, SubmitPromptInput{UserID: userID, Prompt: initialMessage}, nil)
	if out == nil {
		return 0, nil, err
	}
	return out.SessionID, out, err
}

func (s *Service) RenameSession(ctx context.Context, userID, sessionID int64, label string) (*domain.Session, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.ValidationError("empty_label")
	}
	if len([]rune(label)) > labelMaxRunes {
		return nil, domain.ValidationError("label_too_long")
	}
	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := s.store.SetUserLabel(ctx, sessionID, label); err != nil {
		return nil, domain.StorageError("rename_session", err)
	}
	session.Label = label
	session.LabelUserSet = true
	if s.notifier != nil {
		s.notifier.NotifySessionUpdated(userID, *session)
	}
	return session, nil
}

func (s *Service) DeleteSession(ctx context.Context, userID, sessionID int64) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	deleted, err := s.store.DeleteSession(ctx, sessionID)
	if err != nil {
		return domain.StorageError("delete_session", err)
	}
	if !deleted {
		return domain.NotFound("session_not_found")
	}
	s.log.Info("session deleted", "session_id", sessionID, "user_id", userID)
	return nil
}

// ListImageTurns returns the user's image exchanges, newest first.
func (s *Service) ListImageTurns(ctx context.Context, userID int64) ([]domain.Turn, error) {
	turns, err := s.store.ListTurnsByKind(ctx, userID, domain.TurnKindImage)
	if err != nil {
		return nil, domain.StorageError("list_image_turns", err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return turns, nil
}

func (s *Service) GetImageTurn(ctx context.Context, userID, turnID int64) (*domain.Turn, error) {
	turn, err := s.store.GetTurn(ctx, turnID)
	if err != nil {
		return nil, domain.StorageError("get_turn", err)
	}
	if turn == nil || turn.Kind != domain.TurnKindImage {
		return nil, domain.NotFound("image_not_found")
	}
	if _, err := s.ownedSession(ctx, userID, turn.SessionID); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, domain.StorageError("stats", err)
	}
	return stats, nil
}

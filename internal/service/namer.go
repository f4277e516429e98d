package service

import (
	"context"
	"strings"

	"github.com/xiaot623/aetheron/internal/domain"
)

const (
	labelSourceTurns = 10
	labelMaxRunes    = 80
)

// GenerateLabel derives a session label from its first user inputs.
func GenerateLabel(userTexts []string) string {
	parts := make([]string, 0, len(userTexts))
	for i, text := range userTexts {
		if i == labelSourceTurns {
			break
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return domain.DefaultSessionLabel
	}

	label := []rune(strings.Join(parts, " "))
	if len(label) <= labelMaxRunes {
		return string(label)
	}
	return string(label[:labelMaxRunes]) + "..."
}

// MaybeUpdateLabel recomputes the automatic label of a session and returns the label in
// effect afterwards. Sessions renamed by their owner keep their label. Errors are logged
// and returned; callers treat them as non-fatal.
func (s *Service) MaybeUpdateLabel(ctx context.Context, sessionID int64) (string, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		s.log.Warn("session naming failed", "session_id", sessionID, "error", err)
		return "", domain.StorageError("load_session", err)
	}
	if session == nil {
		return "", domain.NotFound("session_not_found")
	}
	if session.LabelUserSet {
		return session.Label, nil
	}

	texts, err := s.store.FirstUserTexts(ctx, sessionID, labelSourceTurns)
	if err != nil {
		s.log.Warn("session naming failed", "session_id", sessionID, "error", err)
		return session.Label, domain.StorageError("load_user_turns", err)
	}

	label := GenerateLabel(texts)
	changed, err := s.store.UpdateAutoLabel(ctx, sessionID, label)
	if err != nil {
		s.log.Warn("session naming failed", "session_id", sessionID, "error", err)
		return session.Label, domain.StorageError("update_label", err)
	}
	if changed {
		session.Label = label
		s.log.Debug("session label updated", "session_id", sessionID, "label", label)
		if s.notifier != nil {
			s.notifier.NotifySessionUpdated(session.UserID, *session)
		}
	}
	return label, nil
}

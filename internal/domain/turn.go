package domain

import (
	"encoding/json"
	"time"
)

// TurnBody is the content of a turn: exactly one of UserTurn or AssistantTurn.
type TurnBody interface {
	Role() Role
	Content() string
}

// UserTurn is text authored by the user.
type UserTurn struct {
	Text string
}

func (UserTurn) Role() Role        { return RoleUser }
func (t UserTurn) Content() string { return t.Text }

// AssistantTurn is text produced for the user: a model reply, image references, or a
// user-facing failure description.
type AssistantTurn struct {
	Text string
}

func (AssistantTurn) Role() Role        { return RoleAssistant }
func (t AssistantTurn) Content() string { return t.Text }

// Turn is one persisted row of a session.
type Turn struct {
	TurnID    int64
	SessionID int64
	Kind      TurnKind
	CreatedAt time.Time
	Body      TurnBody
}

// Role returns the author of the turn.
func (t Turn) Role() Role {
	if t.Body == nil {
		return ""
	}
	return t.Body.Role()
}

// Text returns the turn content.
func (t Turn) Text() string {
	if t.Body == nil {
		return ""
	}
	return t.Body.Content()
}

type turnJSON struct {
	TurnID    int64     `json:"id"`
	SessionID int64     `json:"chat_id"`
	Role      Role      `json:"sender"`
	Content   string    `json:"content"`
	Kind      TurnKind  `json:"generation_type"`
	CreatedAt time.Time `json:"timestamp"`
}

func (t Turn) MarshalJSON() ([]byte, error) {
	return json.Marshal(turnJSON{
		TurnID:    t.TurnID,
		SessionID: t.SessionID,
		Role:      t.Role(),
		Content:   t.Text(),
		Kind:      t.Kind,
		CreatedAt: t.CreatedAt,
	})
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var raw turnJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.TurnID = raw.TurnID
	t.SessionID = raw.SessionID
	t.Kind = raw.Kind
	t.CreatedAt = raw.CreatedAt
	switch raw.Role {
	case RoleUser:
		t.Body = UserTurn{Text: raw.Content}
	case RoleAssistant:
		t.Body = AssistantTurn{Text: raw.Content}
	default:
		t.Body = nil
	}
	return nil
}

// Exchange is one committed user input and the answer recorded for it.
type Exchange struct {
	User      UserTurn
	Assistant AssistantTurn
	Kind      TurnKind
}

package domain

import "time"

// User is an account that owns sessions.
type User struct {
	UserID       int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session is one conversation thread owned by a single user.
type Session struct {
	SessionID    int64     `json:"chat_id"`
	UserID       int64     `json:"user_id"`
	Label        string    `json:"name"`
	LabelUserSet bool      `json:"name_user_set"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionSummary is a session with activity information for listings.
type SessionSummary struct {
	Session
	TurnCount  int        `json:"turn_count"`
	LastTurnAt *time.Time `json:"last_message_time"`
}

// Stats is an aggregate snapshot of the store.
type Stats struct {
	Users         int64              `json:"users"`
	Sessions      int64              `json:"sessions"`
	EmptySessions int64              `json:"empty_sessions"`
	Turns         int64              `json:"turns"`
	TurnsByKind   map[TurnKind]int64 `json:"turns_by_kind"`
}

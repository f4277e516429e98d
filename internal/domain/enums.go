// Package domain defines the core domain models for the assistant backend.
package domain

// Role identifies who authored a turn or a prompt-context entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TurnKind tags what an exchange produced.
type TurnKind string

const (
	TurnKindText  TurnKind = "text"
	TurnKindImage TurnKind = "image"
	TurnKindError TurnKind = "error"
)

// Valid reports whether k is one of the persisted kinds.
func (k TurnKind) Valid() bool {
	switch k {
	case TurnKindText, TurnKindImage, TurnKindError:
		return true
	}
	return false
}

// SessionDecision is the outcome of the session access policy.
type SessionDecision string

const (
	SessionDecisionReuse  SessionDecision = "reuse"
	SessionDecisionCreate SessionDecision = "create"
	SessionDecisionDeny   SessionDecision = "deny"
)

// DefaultSessionLabel is shown for sessions that have no user turns yet.
const DefaultSessionLabel = "New Chat"

// Package protocol defines the WebSocket message protocol between chat clients and the server.
package protocol

// Message types from client to server
const (
	TypeHello  = "hello"
	TypePrompt = "prompt"
)

// Message types from server to client
const (
	TypeHelloAck       = "hello_ack"
	TypeDelta          = "delta"
	TypeDone           = "done"
	TypeSessionUpdated = "session_updated"
	TypeError          = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID int64  `json:"session_id,omitempty"`
}

// HelloMessage authenticates the connection.
type HelloMessage struct {
	BaseMessage
	Token string `json:"token"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	UserID       int64  `json:"user_id"`
	ConnectionID string `json:"connection_id"`
}

// PromptMessage submits a user input. A zero SessionID starts a new session.
type PromptMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// DeltaMessage carries a fragment of the assistant reply.
type DeltaMessage struct {
	BaseMessage
	Content string `json:"content"`
}

// DoneMessage is sent once the exchange is recorded.
type DoneMessage struct {
	BaseMessage
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

// SessionUpdatedMessage tells every connection of the owner that a session label changed.
type SessionUpdatedMessage struct {
	BaseMessage
	Label string `json:"label"`
}

// ErrorMessage is sent when a request fails.
type ErrorMessage struct {
	BaseMessage
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeInternalError  = "internal_error"
)

package domain

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Prompt string `json:"prompt"`
	Sender string `json:"sender"`
	ChatID *int64 `json:"chat_id,omitempty"`
}

// ChatResponse is returned after a committed exchange.
type ChatResponse struct {
	Message  string `json:"message"`
	Response string `json:"response"`
	ChatID   int64  `json:"chat_id"`
}

// CreateSessionRequest is the body of POST /api/chat/sessions.
type CreateSessionRequest struct {
	InitialMessage string `json:"initial_message,omitempty"`
}

// CreateSessionResponse is returned for an explicitly created session.
type CreateSessionResponse struct {
	ChatID   int64  `json:"chat_id"`
	Response string `json:"response,omitempty"`
}

// RenameSessionRequest is the body of PUT /api/chat/chats/:chat_id.
// Name is accepted for older clients.
type RenameSessionRequest struct {
	Label string `json:"label"`
	Name  string `json:"name,omitempty"`
}

// ImageRequest is the body of POST /api/image.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	ChatID *int64 `json:"chatId,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	N      int    `json:"n,omitempty"`
}

// ImageResponse lists the generated image references.
type ImageResponse struct {
	ImageURLs []string `json:"imageUrls"`
	ChatID    int64    `json:"chat_id"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      User   `json:"user"`
}

// UpdateUserRequest is the body of PUT /api/user/:id.
type UpdateUserRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	CurrentPassword string `json:"currentPassword,omitempty"`
	NewPassword     string `json:"newPassword,omitempty"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	ChatID    int64  `json:"chat_id,omitempty"`
}

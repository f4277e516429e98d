// Package ws provides WebSocket server functionality for chat clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/protocol"
	"github.com/xiaot623/aetheron/internal/service"
	"github.com/xiaot623/aetheron/internal/transport/ws/hub"
)

// ChatService is the part of the service layer the WebSocket server needs.
type ChatService interface {
	ParseToken(token string) (int64, error)
	SubmitPrompt(ctx context.Context, in service.SubmitPromptInput, onDelta service.DeltaFunc) (*service.SubmitPromptOutput, error)
}

// Server handles WebSocket connections.
type Server struct {
	ctx      context.Context
	cfg      *config.Config
	hub      *hub.Hub
	svc      ChatService
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server. Prompt processing is bound to ctx.
func NewServer(ctx context.Context, cfg *config.Config, h *hub.Hub, svc ChatService, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{
		ctx: ctx,
		cfg: cfg,
		hub: h,
		svc: svc,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.CORSOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// GET /ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return nil
	}

	conn := s.hub.NewConnection(ws)

	// A bearer token on the upgrade request authenticates up front; otherwise hello does.
	if token := bearerToken(c.Request()); token != "" {
		if userID, err := s.svc.ParseToken(token); err == nil {
			s.hub.BindUser(conn, userID)
		}
	}
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error", "connection_id", conn.ID, "error", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Debug("failed to write message", "connection_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", 0, protocol.ErrorCodeInvalidMessage, "invalid JSON message", false)
		return
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypePrompt:
		s.handlePrompt(conn, data)
	default:
		s.sendError(conn, baseMsg.RequestID, 0, protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type, false)
	}
}

// handleHello authenticates the connection with an access token.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", 0, protocol.ErrorCodeInvalidMessage, "invalid hello message", false)
		return
	}

	userID, err := s.svc.ParseToken(msg.Token)
	if err != nil {
		s.sendError(conn, msg.RequestID, 0, protocol.ErrorCodeUnauthorized, "invalid token", false)
		return
	}
	s.hub.BindUser(conn, userID)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
		},
		UserID:       userID,
		ConnectionID: conn.ID,
	}
	s.hub.SendJSONToConnection(conn, ack)

	s.log.Debug("hello handshake completed", "connection_id", conn.ID, "user_id", userID)
}

// handlePrompt runs one exchange and streams the reply back to the connection.
func (s *Server) handlePrompt(conn *hub.Connection, data []byte) {
	var msg protocol.PromptMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", 0, protocol.ErrorCodeInvalidMessage, "invalid prompt message", false)
		return
	}
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}

	userID := s.hub.UserOf(conn)
	if userID == 0 {
		s.sendError(conn, msg.RequestID, msg.SessionID, protocol.ErrorCodeHelloRequired, "must send hello first", false)
		return
	}

	in := service.SubmitPromptInput{UserID: userID, Prompt: msg.Content}
	if msg.SessionID != 0 {
		sessionID := msg.SessionID
		in.SessionID = &sessionID
	}

	// Exchanges run off the read loop so pings and further prompts keep flowing.
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.LLMTimeout+10*time.Second)
		defer cancel()

		out, err := s.svc.SubmitPrompt(ctx, in, func(content string) error {
			return s.hub.SendJSONToConnection(conn, protocol.DeltaMessage{
				BaseMessage: protocol.BaseMessage{
					Type:      protocol.TypeDelta,
					Ts:        time.Now().UnixMilli(),
					RequestID: msg.RequestID,
				},
				Content: content,
			})
		})
		if err != nil {
			s.sendServiceError(conn, msg.RequestID, err)
			return
		}

		s.hub.SendJSONToConnection(conn, protocol.DoneMessage{
			BaseMessage: protocol.BaseMessage{
				Type:      protocol.TypeDone,
				Ts:        time.Now().UnixMilli(),
				RequestID: msg.RequestID,
				SessionID: out.SessionID,
			},
			Content: out.AssistantText,
			Kind:    string(out.Kind),
		})
	}()
}

func (s *Server) sendServiceError(conn *hub.Connection, requestID string, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		s.log.Error("prompt failed", "connection_id", conn.ID, "error", err)
		s.sendError(conn, requestID, 0, protocol.ErrorCodeInternalError, "internal error", false)
		return
	}
	message := de.Reason
	if de.Code == domain.ErrorStorage || de.Code == domain.ErrorInternal {
		message = "internal error"
	}
	s.sendError(conn, requestID, de.SessionID, string(de.Code), message, de.Retryable)
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID string, sessionID int64, code, message string, retryable bool) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: sessionID,
		},
		Code:      code,
		Message:   message,
		Retryable: retryable,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}

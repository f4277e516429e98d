// Package hub provides connection management for WebSocket clients.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/protocol"
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID     string
	userID int64 // guarded by Hub.mu
	Conn   *websocket.Conn
	Send   chan []byte
	mu     sync.Mutex
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// users maps user_id to the set of its connection IDs
	users map[int64]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *UserMessage
	done       chan struct{}

	log *logger.Logger
	mu  sync.RWMutex
}

// UserMessage is used to broadcast a message to every connection of a user.
type UserMessage struct {
	UserID int64
	Data   []byte
}

// ErrBufferFull is returned when the send buffer is full.
var ErrBufferFull = errors.New("send buffer full")

// ErrClosed is returned when sending to a connection that is no longer registered.
var ErrClosed = errors.New("connection closed")

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		users:       make(map[int64]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *UserMessage, 256),
		done:        make(chan struct{}),
		log:         log,
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if conn.userID != 0 {
				h.bindLocked(conn, conn.userID)
			}
			h.mu.Unlock()
			h.log.Debug("connection registered", "connection_id", conn.ID)

		case conn := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(conn)
			h.mu.Unlock()
			h.log.Debug("connection unregistered", "connection_id", conn.ID)

		case msg := <-h.broadcast:
			var full []*Connection
			h.mu.RLock()
			for connID := range h.users[msg.UserID] {
				if conn, ok := h.connections[connID]; ok {
					select {
					case conn.Send <- msg.Data:
					default:
						full = append(full, conn)
					}
				}
			}
			h.mu.RUnlock()
			for _, conn := range full {
				h.log.Warn("connection buffer full, closing", "connection_id", conn.ID)
				h.mu.Lock()
				h.removeLocked(conn)
				h.mu.Unlock()
			}
		}
	}
}

func (h *Hub) removeLocked(conn *Connection) {
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if set := h.users[conn.userID]; set != nil {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(h.users, conn.userID)
		}
	}
	close(conn.Send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.connections {
		h.removeLocked(conn)
	}
}

func (h *Hub) bindLocked(conn *Connection, userID int64) {
	if conn.userID != 0 && conn.userID != userID {
		if set := h.users[conn.userID]; set != nil {
			delete(set, conn.ID)
			if len(set) == 0 {
				delete(h.users, conn.userID)
			}
		}
	}
	conn.userID = userID
	if h.users[userID] == nil {
		h.users[userID] = make(map[string]bool)
	}
	h.users[userID][conn.ID] = true
}

// NewConnection creates a new, unregistered connection.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	return &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	select {
	case h.register <- conn:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// BindUser attaches an authenticated user to a connection.
func (h *Hub) BindUser(conn *Connection, userID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		conn.userID = userID
		return
	}
	h.bindLocked(conn, userID)
}

// UserOf returns the user bound to the connection, or 0 before authentication.
func (h *Hub) UserOf(conn *Connection) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.userID
}

// Broadcast sends a message to all connections of a user.
func (h *Hub) Broadcast(userID int64, data []byte) {
	select {
	case h.broadcast <- &UserMessage{UserID: userID, Data: data}:
	case <-h.done:
	}
}

// BroadcastJSON sends a JSON message to all connections of a user.
func (h *Hub) BroadcastJSON(userID int64, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(userID, data)
	return nil
}

// SendToConnection sends a message to a specific connection.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return ErrClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.SendToConnection(conn, data)
}

// NotifySessionUpdated pushes a label change to every connection of the session owner.
func (h *Hub) NotifySessionUpdated(userID int64, session domain.Session) {
	msg := protocol.SessionUpdatedMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeSessionUpdated,
			Ts:        time.Now().UnixMilli(),
			SessionID: session.SessionID,
		},
		Label: session.Label,
	}
	if err := h.BroadcastJSON(userID, msg); err != nil {
		h.log.Warn("failed to broadcast session update", "session_id", session.SessionID, "error", err)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// UserCount returns the number of users with at least one connection.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

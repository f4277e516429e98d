// Package main provides a terminal chat client for the websocket endpoint.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/aetheron/internal/domain"
	"github.com/xiaot623/aetheron/internal/protocol"
)

// Client is a websocket chat client bound to one session at a time.
type Client struct {
	conn *websocket.Conn

	mu        sync.Mutex
	sessionID int64
	replies   chan struct{}
}

// NewClient connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn, replies: make(chan struct{}, 1)}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// SendHello authenticates and waits for hello_ack.
func (c *Client) SendHello(token string) (*protocol.HelloAckMessage, error) {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeHello,
			Ts:   time.Now().UnixMilli(),
		},
		Token: token,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read hello_ack: %w", err)
	}

	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	switch base.Type {
	case protocol.TypeHelloAck:
		var ack protocol.HelloAckMessage
		if err := json.Unmarshal(data, &ack); err != nil {
			return nil, fmt.Errorf("unmarshal hello_ack: %w", err)
		}
		return &ack, nil
	case protocol.TypeError:
		var errMsg protocol.ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return nil, fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	default:
		return nil, fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}
}

// SendPrompt submits one input to the current session.
func (c *Client) SendPrompt(content string) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	return c.conn.WriteJSON(protocol.PromptMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypePrompt,
			Ts:        time.Now().UnixMilli(),
			RequestID: uuid.New().String(),
			SessionID: sessionID,
		},
		Content: content,
	})
}

// SetSession switches the session used by later prompts. Zero starts a new one.
func (c *Client) SetSession(id int64) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// ReadMessages prints server messages until the connection closes.
func (c *Client) ReadMessages() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("Read error: %v", err)
			}
			return
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			log.Printf("Unmarshal error: %v", err)
			continue
		}

		switch base.Type {
		case protocol.TypeDelta:
			var msg protocol.DeltaMessage
			if json.Unmarshal(data, &msg) == nil {
				fmt.Print(msg.Content)
			}
		case protocol.TypeDone:
			var msg protocol.DoneMessage
			if json.Unmarshal(data, &msg) == nil {
				c.SetSession(msg.SessionID)
				if msg.Kind != string(domain.TurnKindText) {
					fmt.Printf("\n%s", msg.Content)
				}
				fmt.Printf("\n[session %d]\n", msg.SessionID)
			}
			c.replied()
		case protocol.TypeSessionUpdated:
			var msg protocol.SessionUpdatedMessage
			if json.Unmarshal(data, &msg) == nil {
				fmt.Printf("[session %d renamed: %s]\n", msg.SessionID, msg.Label)
			}
		case protocol.TypeError:
			var msg protocol.ErrorMessage
			if json.Unmarshal(data, &msg) == nil {
				if msg.SessionID != 0 {
					c.SetSession(msg.SessionID)
				}
				retry := ""
				if msg.Retryable {
					retry = " (retryable)"
				}
				fmt.Printf("\n[error] %s: %s%s\n", msg.Code, msg.Message, retry)
			}
			c.replied()
		default:
			fmt.Printf("\n[%s] %s\n", base.Type, string(data))
		}
	}
}

func (c *Client) replied() {
	select {
	case c.replies <- struct{}{}:
	default:
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:5000/ws", "WebSocket server address")
	token := flag.String("token", os.Getenv("AETHERON_TOKEN"), "Access token from /api/login")
	session := flag.Int64("session", 0, "Session to continue (0 starts a new one)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *token == "" {
		log.Fatal("an access token is required (-token or AETHERON_TOKEN)")
	}

	fmt.Printf("Connecting to %s...\n", *addr)
	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	ack, err := client.SendHello(*token)
	if err != nil {
		log.Fatalf("Hello failed: %v", err)
	}
	client.SetSession(*session)

	fmt.Printf("Connected as user %d\n", ack.UserID)
	fmt.Println("Type a message and press Enter to send.")
	fmt.Println("Commands: /new for a new session, /quit to exit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/new":
			client.SetSession(0)
			fmt.Println("Next message starts a new session.")
			continue
		}

		if err := client.SendPrompt(input); err != nil {
			log.Printf("Send error: %v", err)
			continue
		}
		select {
		case <-client.replies:
		case <-time.After(2 * time.Minute):
			fmt.Println("\nNo reply yet, continuing.")
		}
	}
}

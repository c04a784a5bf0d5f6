package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"voicewave/logger"
	"voicewave/model"

	"github.com/gorilla/websocket"
)

// MessageType identifies a websocket message.
type MessageType string

const (
	MsgTypeJoin  MessageType = "join"
	MsgTypeLeave MessageType = "leave"
	MsgTypeError MessageType = "error"
	MsgTypePing  MessageType = "ping"
	MsgTypePong  MessageType = "pong"

	// MsgTypeNewComment is pushed to an audio room when a comment lands.
	MsgTypeNewComment MessageType = "new_comment"
)

// WSMessage is the websocket wire envelope.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	AudioID   string          `json:"audioId,omitempty"`
	UserID    int64           `json:"userId,omitempty"`
	Username  string          `json:"username,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client is one websocket subscriber of an audio room.
type Client struct {
	Hub      *CommentHub
	Conn     *websocket.Conn
	Send     chan []byte
	AudioID  string
	UserID   int64
	Username string
}

// BroadcastMessage targets one audio room.
type BroadcastMessage struct {
	AudioID string
	Message []byte
}

// CommentHub fans comment events out to audio rooms. A room is the set
// of clients watching one audio; rooms appear on first join and vanish
// when the last client leaves.
type CommentHub struct {
	// Audio id -> client set.
	rooms map[string]map[*Client]bool

	// One connection per user per room.
	userClients map[string]*Client // key: audioID:userID

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu   sync.RWMutex
	done chan struct{}
}

// NewCommentHub creates the hub.
func NewCommentHub() *CommentHub {
	return &CommentHub{
		rooms:       make(map[string]map[*Client]bool),
		userClients: make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *BroadcastMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run drives the hub loop. All room state changes happen here.
func (h *CommentHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.broadcastToRoom(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop shuts the hub down.
func (h *CommentHub) Stop() {
	close(h.done)
}

func (h *CommentHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	audioID := client.AudioID
	userKey := h.userKey(audioID, client.UserID)

	// A reconnect supersedes the old connection.
	if oldClient, exists := h.userClients[userKey]; exists {
		h.removeClient(oldClient)
	}

	if h.rooms[audioID] == nil {
		h.rooms[audioID] = make(map[*Client]bool)
	}

	h.rooms[audioID][client] = true
	h.userClients[userKey] = client

	logger.Info("client joined audio room",
		logger.String("audio", audioID),
		logger.Int64("user", client.UserID),
		logger.String("username", client.Username))
}

func (h *CommentHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeClient(client)
}

// removeClient requires the lock.
func (h *CommentHub) removeClient(client *Client) {
	audioID := client.AudioID
	userKey := h.userKey(audioID, client.UserID)

	if _, ok := h.rooms[audioID]; ok {
		if _, ok := h.rooms[audioID][client]; ok {
			delete(h.rooms[audioID], client)
			close(client.Send)

			if len(h.rooms[audioID]) == 0 {
				delete(h.rooms, audioID)
			}
		}
	}

	delete(h.userClients, userKey)

	logger.Info("client left audio room",
		logger.String("audio", audioID),
		logger.Int64("user", client.UserID))
}

func (h *CommentHub) broadcastToRoom(msg *BroadcastMessage) {
	h.mu.RLock()
	clients, ok := h.rooms[msg.AudioID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	// Copy the client list so the lock is not held while sending.
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	for _, client := range clientList {
		select {
		case client.Send <- msg.Message:
		default:
			slow = append(slow, client)
		}
	}

	// A full send buffer drops the client. Removal happens inline;
	// queueing on the unregister channel would block the hub loop
	// against itself.
	if len(slow) > 0 {
		h.mu.Lock()
		for _, client := range slow {
			h.removeClient(client)
		}
		h.mu.Unlock()
	}
}

func (h *CommentHub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.rooms {
		for client := range clients {
			close(client.Send)
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.userClients = make(map[string]*Client)
}

func (h *CommentHub) userKey(audioID string, userID int64) string {
	return fmt.Sprintf("%s:%d", audioID, userID)
}

// Register queues a client join.
func (h *CommentHub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client leave.
func (h *CommentHub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast sends raw bytes to every client in the room.
func (h *CommentHub) Broadcast(audioID string, message []byte) {
	h.broadcast <- &BroadcastMessage{AudioID: audioID, Message: message}
}

// BroadcastWSMessage stamps and broadcasts an envelope to the room.
func (h *CommentHub) BroadcastWSMessage(audioID string, msg *WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.Broadcast(audioID, data)
	return nil
}

// BroadcastNewComment pushes a freshly created comment to the audio's
// room. Delivery is best-effort; absent rooms are a no-op.
func (h *CommentHub) BroadcastNewComment(audioID string, comment *model.Comment) error {
	data, err := json.Marshal(comment)
	if err != nil {
		return fmt.Errorf("failed to marshal comment event: %w", err)
	}

	msg := &WSMessage{
		Type:    MsgTypeNewComment,
		AudioID: audioID,
		UserID:  comment.UserID,
		Data:    data,
	}
	if comment.User != nil {
		msg.Username = comment.User.Username
	}
	return h.BroadcastWSMessage(audioID, msg)
}

// RoomClientCount reports how many clients a room has.
func (h *CommentHub) RoomClientCount(audioID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[audioID])
}

// ReadPump consumes client messages until the connection dies. Only
// heartbeats are meaningful upstream; rooms are notification-only.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.Conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error",
						logger.ErrorField(err),
						logger.String("audio", c.AudioID),
						logger.Int64("user", c.UserID))
				}
				return
			}

			var msg WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid message format",
					logger.ErrorField(err),
					logger.String("audio", c.AudioID))
				continue
			}

			if msg.Type == MsgTypePing {
				pong := &WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}
				if data, err := json.Marshal(pong); err == nil {
					select {
					case c.Send <- data:
					default:
					}
				}
			}
		}
	}
}

// WritePump drains the send channel and keeps the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Flush anything queued behind it, one frame per envelope so
			// clients can parse each message on its own.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues an envelope for one client, dropping it when the
// buffer is full.
func (c *Client) SendMessage(msg *WSMessage) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}

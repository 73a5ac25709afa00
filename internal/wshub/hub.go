package wshub

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type   string `json:"t"`
	Choice string `json:"c,omitempty"`
	Round  int    `json:"r,omitempty"`
}

// ServerMessage is the JSON structure sent to clients.
type ServerMessage struct {
	Type   string          `json:"t"`
	Room   json.RawMessage `json:"room,omitempty"`
	Error  string          `json:"e,omitempty"`
	Online []string        `json:"online,omitempty"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	PlayerID string
	RoomCode string
	Conn     *websocket.Conn
	Send     chan []byte
}

func NewClient(roomCode, playerID string, conn *websocket.Conn) *Client {
	return &Client{
		PlayerID: playerID,
		RoomCode: roomCode,
		Conn:     conn,
		Send:     make(chan []byte, 16),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Hub tracks WebSocket connections per room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]*Client),
	}
}

// Register adds a client, replacing any older connection for the same
// player, and announces who is online.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	clients := h.rooms[c.RoomCode]
	if clients == nil {
		clients = make(map[string]*Client)
		h.rooms[c.RoomCode] = clients
	}
	if old, ok := clients[c.PlayerID]; ok && old != c {
		close(old.Send)
	}
	clients[c.PlayerID] = c
	h.mu.Unlock()

	h.announcePresence(c.RoomCode)
}

// Unregister removes a client and closes its Send channel, then announces
// who is still online.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	clients := h.rooms[c.RoomCode]
	cur, ok := clients[c.PlayerID]
	if ok && cur == c {
		close(c.Send)
		delete(clients, c.PlayerID)
		if len(clients) == 0 {
			delete(h.rooms, c.RoomCode)
		}
	}
	h.mu.Unlock()

	if ok && cur == c {
		h.announcePresence(c.RoomCode)
	}
}

// Online returns the ids of players connected to a room.
func (h *Hub) Online(roomCode string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms[roomCode]))
	for id := range h.rooms[roomCode] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Broadcast sends a message to every client in a room. Non-blocking: drops if channel full.
func (h *Hub) Broadcast(roomCode string, msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("component", "wshub").Msg("marshal")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomCode] {
		select {
		case c.Send <- data:
		default:
			// Drop message if channel full
		}
	}
}

// SendTo delivers a message to one player's connection, if any.
func (h *Hub) SendTo(roomCode, playerID string, msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("component", "wshub").Msg("marshal")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.rooms[roomCode][playerID]
	if !ok {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) announcePresence(roomCode string) {
	h.Broadcast(roomCode, ServerMessage{Type: "presence", Online: h.Online(roomCode)})
}

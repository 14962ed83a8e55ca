package messaging

import (
	"encoding/json"
	"log"
	"time"

	"pickup-service/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	clientBuffer   = 16
	maxMessageSize = 512
)

// SocketEvent is the frame pushed to connected clients.
type SocketEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one websocket connection. Each connection joins its user room
// and its role room, mirroring the socket channel the web clients expect.
type Client struct {
	UserID uuid.UUID
	Role   model.Role

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type target int

const (
	targetAll target = iota
	targetUser
	targetRole
)

type envelope struct {
	target  target
	userID  uuid.UUID
	role    model.Role
	payload []byte
}

// Hub fans socket events out to connected clients, by user, by role, or
// globally. Slow clients are skipped rather than blocking the fan-out.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[uuid.UUID][]*Client
	byRole     map[model.Role][]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[uuid.UUID][]*Client),
		byRole:     make(map[model.Role][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 100),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.clients[client] = true
			h.byUser[client.UserID] = append(h.byUser[client.UserID], client)
			h.byRole[client.Role] = append(h.byRole[client.Role], client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			h.byUser[client.UserID] = removeClient(h.byUser[client.UserID], client)
			h.byRole[client.Role] = removeClient(h.byRole[client.Role], client)
			close(client.send)

		case env := <-h.broadcast:
			for _, client := range h.targets(env) {
				select {
				case client.send <- env.payload:
				default:
					// client buffer full, skip
				}
			}
		}
	}
}

func (h *Hub) targets(env envelope) []*Client {
	switch env.target {
	case targetUser:
		return h.byUser[env.userID]
	case targetRole:
		return h.byRole[env.role]
	}
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func removeClient(clients []*Client, c *Client) []*Client {
	for i, client := range clients {
		if client == c {
			return append(clients[:i], clients[i+1:]...)
		}
	}
	return clients
}

func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast emits an event to every connected client.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.emit(envelope{target: targetAll}, event, data)
}

// SendToUser emits an event to every connection of one user.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	h.emit(envelope{target: targetUser, userID: userID}, event, data)
}

// SendToRole emits an event to every connection of one role.
func (h *Hub) SendToRole(role model.Role, event string, data interface{}) {
	h.emit(envelope{target: targetRole, role: role}, event, data)
}

func (h *Hub) emit(env envelope, event string, data interface{}) {
	payload, err := json.Marshal(SocketEvent{Event: event, Data: data})
	if err != nil {
		log.Printf("hub: marshal %s: %v", event, err)
		return
	}
	env.payload = payload

	select {
	case h.broadcast <- env:
	default:
		log.Printf("hub: broadcast queue full, dropping %s", event)
	}
}

// Register attaches a websocket connection for an authenticated user and
// starts its read/write pumps.
func (h *Hub) Register(conn *websocket.Conn, userID uuid.UUID, role model.Role) *Client {
	client := &Client{
		UserID: userID,
		Role:   role,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the channel is push-only. Its job is to
// notice the peer going away and unregister.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

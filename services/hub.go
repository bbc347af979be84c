package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Hub fans room events out to websocket subscribers, typically a manager's
// dashboard watching their room fill up. Events are produced by the HTTP and
// bot adapters after a Moroz call succeeds; the service itself never pushes
// anything.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan roomEvent
	register   chan *Client
	unregister chan *Client
	pong       chan *Client
	mutex      sync.RWMutex
}

// Client is one websocket subscriber, pinned to a single room.
type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	roomID string
}

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type roomEvent struct {
	roomID string
	data   []byte
}

// Room event types emitted by the adapters.
const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventGameStarted   = "game_started"
	EventGameCompleted = "game_completed"
	EventRoomDeleted   = "room_deleted"
)

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan roomEvent),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		pong:       make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logrus.WithFields(logrus.Fields{"client": client.id, "room_id": client.roomID}).Debug("Websocket client registered")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			logrus.WithFields(logrus.Fields{"client": client.id, "room_id": client.roomID}).Debug("Websocket client unregistered")

		case client := <-h.pong:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				data, _ := json.Marshal(Event{Type: "pong"})
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()

		case event := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if client.roomID != event.roomID {
					continue
				}
				select {
				case client.send <- event.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// BroadcastRoomEvent sends an event to every subscriber of the given room.
func (h *Hub) BroadcastRoomEvent(roomID string, eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal room event")
		return
	}
	h.broadcast <- roomEvent{roomID: roomID, data: data}
}

func (h *Hub) RegisterClient(conn *websocket.Conn, roomID string) *Client {
	client := &Client{
		hub:    h,
		id:     fmt.Sprintf("client_%d", time.Now().UnixNano()),
		socket: conn,
		send:   make(chan []byte, 64),
		roomID: roomID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("Websocket read error")
			}
			return
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			continue
		}
		// Subscribers are read-only except for keepalives. The hub goroutine
		// answers; only it may touch the send channel it also closes.
		if event.Type == "ping" {
			c.hub.pong <- c
		}
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		if err := c.socket.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

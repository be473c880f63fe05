package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

const (
	redisChannel = "recipehub:realtime"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// Session is the per-connection listener state attached by the HTTP layer.
type Session interface {
	WatchFollow(targetID string) error
	UnwatchFollow()
	Close()
}

// Client represents a WebSocket connection client
type Client struct {
	UserID  string
	Conn    *websocket.Conn
	Send    chan []byte
	Session Session
}

// NewClient wraps conn with a buffered outbound queue.
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

type targetedMessage struct {
	UserID  string     `json:"user_id"`
	Origin  string     `json:"origin"`
	Message *WSMessage `json:"message"`
}

// Manager manages all active WebSocket connections. A user may hold several
// connections. With a Redis client, pushes also fan out to other instances.
type Manager struct {
	clients    map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	deliver    chan *targetedMessage
	mutex      sync.RWMutex

	redis      *redis.Client
	instanceID string
}

// NewManager creates a new WebSocket connection manager. rdb may be nil.
func NewManager(rdb *redis.Client) *Manager {
	return &Manager{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliver:    make(chan *targetedMessage, 256),
		redis:      rdb,
		instanceID: uuid.New().String(),
	}
}

// Start runs the manager's main loop in a goroutine
func (m *Manager) Start(ctx context.Context) {
	if m.redis != nil {
		go m.subscribeRedis(ctx)
	}

	go func() {
		for {
			select {
			case client := <-m.Register:
				m.Add(client)

			case client := <-m.Unregister:
				m.remove(client)
				log.Printf("Client unregistered: %s", client.UserID)

			case msg := <-m.deliver:
				m.deliverLocal(msg)

			case <-ctx.Done():
				m.closeAll()
				return
			}
		}
	}()
}

// Add registers client synchronously, so frames sent right after it returns
// are not dropped.
func (m *Manager) Add(client *Client) {
	m.mutex.Lock()
	if m.clients[client.UserID] == nil {
		m.clients[client.UserID] = make(map[*Client]bool)
	}
	m.clients[client.UserID][client] = true
	m.mutex.Unlock()
	log.Printf("Client registered: %s", client.UserID)
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	clients, ok := m.clients[client.UserID]
	if ok && clients[client] {
		delete(clients, client)
		close(client.Send)
		if len(clients) == 0 {
			delete(m.clients, client.UserID)
		}
	} else {
		ok = false
	}
	m.mutex.Unlock()

	if ok && client.Session != nil {
		client.Session.Close()
	}
}

func (m *Manager) closeAll() {
	m.mutex.Lock()
	var all []*Client
	for _, clients := range m.clients {
		for client := range clients {
			all = append(all, client)
		}
	}
	m.mutex.Unlock()

	for _, client := range all {
		m.remove(client)
	}
}

func (m *Manager) deliverLocal(msg *targetedMessage) {
	data, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("WebSocket: failed to encode %s for %s: %v", msg.Message.Type, msg.UserID, err)
		return
	}

	var slow []*Client
	m.mutex.RLock()
	for client := range m.clients[msg.UserID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range slow {
		log.Printf("WebSocket: dropping slow client %s", client.UserID)
		m.remove(client)
	}
}

// SendToUser pushes msg to every connection of userID, here and on peer instances.
func (m *Manager) SendToUser(userID string, msg *WSMessage) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().Format(time.RFC3339)
	}
	target := &targetedMessage{UserID: userID, Origin: m.instanceID, Message: msg}
	m.deliver <- target

	if m.redis != nil {
		data, err := json.Marshal(target)
		if err != nil {
			return
		}
		if err := m.redis.Publish(context.Background(), redisChannel, data).Err(); err != nil {
			log.Printf("WebSocket: redis publish failed: %v", err)
		}
	}
}

func (m *Manager) subscribeRedis(ctx context.Context) {
	pubsub := m.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var msg targetedMessage
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Printf("WebSocket: bad redis payload: %v", err)
				continue
			}
			// Our own publishes were already delivered locally.
			if msg.Origin == m.instanceID || msg.Message == nil {
				continue
			}
			m.deliver <- &msg
		case <-ctx.Done():
			return
		}
	}
}

// ConnectionCount returns the number of live connections of userID.
func (m *Manager) ConnectionCount(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID])
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump sends messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("error: %v", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

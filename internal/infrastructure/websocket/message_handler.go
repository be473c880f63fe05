package websocket

import (
	"encoding/json"
	"log"
	"time"
)

// WebSocket Message Types
const (
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
	MessageTypeUnreadCount = "unread_count"
	MessageTypeBadge       = "notification_badge"
	MessageTypeFollow      = "follow_change"
	MessageTypeWatchFollow = "watch_follow"
	MessageTypeUnwatch     = "unwatch_follow"
)

// WebSocket Message Structure
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type CountData struct {
	Count int `json:"count"`
}

type FollowChangeData struct {
	TargetID  string `json:"target_id"`
	Following bool   `json:"following"`
}

type WatchFollowData struct {
	TargetID string `json:"target_id"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// HandleClientMessage processes incoming WebSocket messages
func (m *Manager) HandleClientMessage(client *Client, messageBytes []byte) {
	var wsMessage struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(messageBytes, &wsMessage); err != nil {
		log.Printf("WebSocket: Failed to unmarshal message from client %s: %v", client.UserID, err)
		m.sendErrorToClient(client, "Invalid message format")
		return
	}

	switch wsMessage.Type {
	case MessageTypePing:
		m.SendToClient(client, &WSMessage{Type: MessageTypePong})

	case MessageTypeWatchFollow:
		var data WatchFollowData
		if len(wsMessage.Data) == 0 || json.Unmarshal(wsMessage.Data, &data) != nil || data.TargetID == "" {
			m.sendErrorToClient(client, "target_id is required")
			return
		}
		if client.Session == nil {
			m.sendErrorToClient(client, "Realtime session unavailable")
			return
		}
		if err := client.Session.WatchFollow(data.TargetID); err != nil {
			m.sendErrorToClient(client, err.Error())
		}

	case MessageTypeUnwatch:
		if client.Session != nil {
			client.Session.UnwatchFollow()
		}

	default:
		log.Printf("WebSocket: Unknown message type '%s' from client %s", wsMessage.Type, client.UserID)
		m.sendErrorToClient(client, "Unknown message type")
	}
}

// SendToClient writes to one connection only, unlike SendToUser. Frames for
// an unregistered client are dropped.
func (m *Manager) SendToClient(client *Client, msg *WSMessage) {
	msg.Timestamp = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	// Send is closed on removal; the read lock keeps that from racing.
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if !m.clients[client.UserID][client] {
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Printf("WebSocket: send buffer full for client %s", client.UserID)
	}
}

func (m *Manager) sendErrorToClient(client *Client, message string) {
	m.SendToClient(client, &WSMessage{Type: MessageTypeError, Data: ErrorData{Message: message}})
}

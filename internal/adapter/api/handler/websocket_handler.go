package handler

import (
	"context"
	"net/http"
	"sync"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/domain/repository"
	ws "recipehub/internal/infrastructure/websocket"
	"recipehub/internal/usecase"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
	"recipehub/pkg/response"
)

type WebSocketHandler struct {
	wsManager     *ws.Manager
	conversations *usecase.ConversationUseCase
	notifications *usecase.NotificationUseCase
	relationships *usecase.RelationshipUseCase
	upgrader      gorillaws.Upgrader
}

func NewWebSocketHandler(
	wsManager *ws.Manager,
	conversations *usecase.ConversationUseCase,
	notifications *usecase.NotificationUseCase,
	relationships *usecase.RelationshipUseCase,
	allowedOrigins []string,
) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:     wsManager,
		conversations: conversations,
		notifications: notifications,
		relationships: relationships,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows any origin when the list is empty.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket upgrades an authenticated request and attaches the
// viewer's unread-count and badge listeners to the connection.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID := middleware.UserID(c)
	if userID == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed for %s: %v", userID, err)
		return nil
	}

	client := ws.NewClient(userID, conn)
	session := newRealtimeSession(h, client)
	client.Session = session
	h.wsManager.Add(client)

	if err := session.start(); err != nil {
		logger.Error("WebSocket session start failed for %s: %v", userID, err)
		h.wsManager.SendToClient(client, &ws.WSMessage{Type: ws.MessageTypeError, Data: ws.ErrorData{Message: "Failed to start realtime listeners"}})
	}

	go client.ReadPump(h.wsManager)
	go client.WritePump()
	return nil
}

// realtimeSession owns the listeners of one connection. All of them are
// released when the connection is unregistered.
type realtimeSession struct {
	h      *WebSocketHandler
	client *ws.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	unread repository.Subscription
	badge  *usecase.BadgeWatcher
	follow repository.Subscription
	closed bool
}

func newRealtimeSession(h *WebSocketHandler, client *ws.Client) *realtimeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &realtimeSession{h: h, client: client, ctx: ctx, cancel: cancel}
}

func (s *realtimeSession) push(msgType string, data interface{}) {
	s.h.wsManager.SendToClient(s.client, &ws.WSMessage{Type: msgType, Data: data})
}

func (s *realtimeSession) start() error {
	unread, err := s.h.conversations.ListenToUnreadCount(s.ctx, s.client.UserID, func(count int) {
		s.push(ws.MessageTypeUnreadCount, ws.CountData{Count: count})
	})
	if err != nil {
		return err
	}

	badge, err := s.h.notifications.WatchBadge(s.ctx, s.client.UserID, func(count int) {
		s.push(ws.MessageTypeBadge, ws.CountData{Count: count})
	})
	if err != nil {
		unread.Unsubscribe()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		unread.Unsubscribe()
		badge.Unsubscribe()
		return nil
	}
	s.unread = unread
	s.badge = badge
	return nil
}

// WatchFollow replaces any previous follow listener with one on viewer -> target.
func (s *realtimeSession) WatchFollow(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if s.follow != nil {
		s.follow.Unsubscribe()
		s.follow = nil
	}

	badge := s.badge
	sub, err := s.h.relationships.OnFollowChange(s.ctx, s.client.UserID, targetID, func(following bool) {
		s.push(ws.MessageTypeFollow, ws.FollowChangeData{TargetID: targetID, Following: following})
		if badge != nil {
			if err := badge.FollowChanged(s.ctx); err != nil {
				logger.Warn("WebSocket: badge refresh after follow change failed for %s: %v", s.client.UserID, err)
			}
		}
	})
	if err != nil {
		return err
	}
	s.follow = sub
	return nil
}

func (s *realtimeSession) UnwatchFollow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.follow != nil {
		s.follow.Unsubscribe()
		s.follow = nil
	}
}

func (s *realtimeSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unread, badge, follow := s.unread, s.badge, s.follow
	s.unread, s.badge, s.follow = nil, nil, nil
	s.mu.Unlock()

	if follow != nil {
		follow.Unsubscribe()
	}
	if badge != nil {
		badge.Unsubscribe()
	}
	if unread != nil {
		unread.Unsubscribe()
	}
	s.cancel()
}

package handler

import (
	ws "recipehub/internal/infrastructure/websocket"
	"recipehub/internal/usecase"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Conversation *ConversationHandler
	Follow       *FollowHandler
	Notification *NotificationHandler
	WebSocket    *WebSocketHandler
	Health       *HealthHandler
}

func Setup(
	conversationUseCase *usecase.ConversationUseCase,
	messageUseCase *usecase.MessageUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	relationshipUseCase *usecase.RelationshipUseCase,
	wsManager *ws.Manager,
	health *HealthHandler,
	allowedOrigins []string,
) *Handlers {
	return &Handlers{
		Conversation: NewConversationHandler(conversationUseCase, messageUseCase),
		Follow:       NewFollowHandler(relationshipUseCase),
		Notification: NewNotificationHandler(notificationUseCase),
		WebSocket:    NewWebSocketHandler(wsManager, conversationUseCase, notificationUseCase, relationshipUseCase, allowedOrigins),
		Health:       health,
	}
}

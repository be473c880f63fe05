package router

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/handler"
	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, h *handler.Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	SetupConversationRouter(e, h.Conversation, authMiddleware, limiter)
	SetupFollowRouter(e, h.Follow, authMiddleware)
	SetupNotificationRouter(e, h.Notification, authMiddleware, limiter)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
	SetupHealthRouter(e, h.Health)
}

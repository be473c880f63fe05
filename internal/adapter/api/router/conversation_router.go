package router

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/handler"
	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/infrastructure/ratelimit"
)

// SetupConversationRouter mounts conversations and their message log.
func SetupConversationRouter(e *echo.Echo, h *handler.ConversationHandler, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	conversations := e.Group("/v1/conversations")
	conversations.Use(authMiddleware.Authenticate)

	conversations.POST("", h.CreateConversation, middleware.RateLimit(limiter, ratelimit.ActionCreateConversation))
	conversations.GET("", h.ListConversations)
	conversations.GET("/unread-count", h.UnreadCount)
	conversations.GET("/:id", h.GetConversation)
	conversations.DELETE("/:id", h.DeleteConversation)
	conversations.POST("/:id/accept", h.AcceptRequest)
	conversations.POST("/:id/ignore", h.IgnoreRequest)
	conversations.PUT("/:id/seen", h.MarkSeen)

	// SendMessage applies its own rate limit.
	conversations.GET("/:id/messages", h.ListMessages)
	conversations.POST("/:id/messages", h.SendMessage)
	conversations.PATCH("/:id/messages/:mid", h.EditMessage)
	conversations.DELETE("/:id/messages/:mid", h.DeleteMessage)
	conversations.POST("/:id/messages/:mid/hide", h.HideMessage)
	conversations.POST("/:id/messages/:mid/reactions", h.ToggleReaction)
}

package handler

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/usecase"
	"recipehub/pkg/response"
	"recipehub/pkg/utils"
)

type ConversationHandler struct {
	conversationUseCase *usecase.ConversationUseCase
	messageUseCase      *usecase.MessageUseCase
}

func NewConversationHandler(conversationUseCase *usecase.ConversationUseCase, messageUseCase *usecase.MessageUseCase) *ConversationHandler {
	return &ConversationHandler{
		conversationUseCase: conversationUseCase,
		messageUseCase:      messageUseCase,
	}
}

type createConversationRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
}

type sendMessageRequest struct {
	Text        string   `json:"text" validate:"max=4000"`
	Attachments []string `json:"attachments" validate:"max=10,dive,required"`
}

type editMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

type reactionRequest struct {
	Kind string `json:"kind" validate:"required,max=32"`
}

// CreateConversation returns the existing conversation with the recipient or starts one.
func (h *ConversationHandler) CreateConversation(c echo.Context) error {
	var req createConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := middleware.UserID(c)
	ctx := c.Request().Context()

	conversationID, err := h.conversationUseCase.EnsureConversation(ctx, userID, req.RecipientID)
	if err != nil {
		return response.Error(c, err)
	}

	conversation, err := h.conversationUseCase.GetConversation(ctx, conversationID, userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, conversation)
}

// ListConversations serves ?folder=inbox|requests; no folder lists both.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	conversations, err := h.conversationUseCase.ListConversations(c.Request().Context(), middleware.UserID(c), c.QueryParam("folder"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversations)
}

func (h *ConversationHandler) GetConversation(c echo.Context) error {
	conversation, err := h.conversationUseCase.GetConversation(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversation)
}

func (h *ConversationHandler) DeleteConversation(c echo.Context) error {
	if err := h.conversationUseCase.DeleteConversation(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("id")})
}

func (h *ConversationHandler) AcceptRequest(c echo.Context) error {
	userID := middleware.UserID(c)
	ctx := c.Request().Context()

	if _, err := h.conversationUseCase.AcceptMessageRequest(ctx, c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}
	conversation, err := h.conversationUseCase.GetConversation(ctx, c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conversation)
}

func (h *ConversationHandler) IgnoreRequest(c echo.Context) error {
	if err := h.conversationUseCase.IgnoreMessageRequest(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"request_status": "ignored"})
}

func (h *ConversationHandler) MarkSeen(c echo.Context) error {
	if err := h.conversationUseCase.MarkMessagesAsSeen(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]bool{"seen": true})
}

func (h *ConversationHandler) UnreadCount(c echo.Context) error {
	count, err := h.conversationUseCase.UnreadConversationCount(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"count": count})
}

func (h *ConversationHandler) ListMessages(c echo.Context) error {
	page := utils.GetPaginationParams(c, 50)

	messages, total, err := h.messageUseCase.ListMessages(c.Request().Context(), c.Param("id"), middleware.UserID(c), page.Limit, page.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Paginated(c, messages, total, page.Limit, page.Offset)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.messageUseCase.SendMessage(c.Request().Context(), c.Param("id"), middleware.UserID(c), usecase.SendMessageInput{
		Text:        req.Text,
		Attachments: req.Attachments,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, message)
}

func (h *ConversationHandler) EditMessage(c echo.Context) error {
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.messageUseCase.EditMessage(c.Request().Context(), c.Param("id"), c.Param("mid"), middleware.UserID(c), req.Text)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, message)
}

func (h *ConversationHandler) DeleteMessage(c echo.Context) error {
	if err := h.messageUseCase.DeleteMessage(c.Request().Context(), c.Param("id"), c.Param("mid"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("mid")})
}

func (h *ConversationHandler) HideMessage(c echo.Context) error {
	if err := h.messageUseCase.HideMessageForViewer(c.Request().Context(), c.Param("id"), c.Param("mid"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("mid")})
}

func (h *ConversationHandler) ToggleReaction(c echo.Context) error {
	var req reactionRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	message, err := h.messageUseCase.ToggleReaction(c.Request().Context(), c.Param("id"), c.Param("mid"), middleware.UserID(c), req.Kind)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, message)
}

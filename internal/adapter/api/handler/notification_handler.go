package handler

import (
	"github.com/labstack/echo/v4"

	"recipehub/internal/adapter/api/middleware"
	"recipehub/internal/domain/entity"
	"recipehub/internal/usecase"
	"recipehub/pkg/response"
	"recipehub/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

// The caller is always the actor.
type createNotificationRequest struct {
	RecipientID     string `json:"recipient_id" validate:"required"`
	Type            string `json:"type" validate:"required,oneof=follow comment like rating message_request"`
	RelatedPostID   string `json:"related_post_id"`
	MessageThreadID string `json:"message_thread_id"`
	RatingValue     *int   `json:"rating_value" validate:"omitempty,min=1,max=5"`
}

type removeLikeRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	PostID      string `json:"post_id" validate:"required"`
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	page := utils.GetPaginationParams(c, 50)

	notifications, err := h.notificationUseCase.ListNotifications(c.Request().Context(), middleware.UserID(c), page.Limit)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, notifications)
}

func (h *NotificationHandler) Counts(c echo.Context) error {
	counts, err := h.notificationUseCase.Counts(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, counts)
}

func (h *NotificationHandler) CreateNotification(c echo.Context) error {
	var req createNotificationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	id, err := h.notificationUseCase.CreateNotification(c.Request().Context(), req.RecipientID, middleware.UserID(c), req.Type, entity.NotificationOptions{
		RelatedPostID:   req.RelatedPostID,
		MessageThreadID: req.MessageThreadID,
		RatingValue:     req.RatingValue,
	})
	if err != nil {
		return response.Error(c, err)
	}
	if id == "" {
		return response.Success(c, map[string]interface{}{"id": nil, "skipped": true})
	}
	return response.Created(c, map[string]string{"id": id})
}

func (h *NotificationHandler) RemoveLike(c echo.Context) error {
	var req removeLikeRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.notificationUseCase.RemoveLikeNotification(c.Request().Context(), req.RecipientID, middleware.UserID(c), req.PostID); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]bool{"removed": true})
}

func (h *NotificationHandler) OpenPanel(c echo.Context) error {
	openedAt, err := h.notificationUseCase.OpenNotificationPanel(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]interface{}{"last_opened_notification_at": openedAt})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	marked, err := h.notificationUseCase.MarkAllNotificationsAsRead(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": marked})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	if err := h.notificationUseCase.MarkNotificationAsRead(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("id")})
}

func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	if err := h.notificationUseCase.DeleteNotification(c.Request().Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"id": c.Param("id")})
}

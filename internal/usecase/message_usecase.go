package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/metrics"
	"recipehub/internal/infrastructure/ratelimit"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
)

// Notifier is the slice of the notification feed the message log triggers.
type Notifier interface {
	CreateNotification(ctx context.Context, recipientID, actorID, notificationType string, opts entity.NotificationOptions) (string, error)
}

type MessageUseCase struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	relationshipRepo repository.RelationshipRepository
	notifier         Notifier
	attachments      service.AttachmentResolver
	rateLimiter      *ratelimit.RateLimiter
	now              Clock
}

func NewMessageUseCase(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	relationshipRepo repository.RelationshipRepository,
	notifier Notifier,
	attachments service.AttachmentResolver,
	rateLimiter *ratelimit.RateLimiter,
) *MessageUseCase {
	return &MessageUseCase{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		relationshipRepo: relationshipRepo,
		notifier:         notifier,
		attachments:      attachments,
		rateLimiter:      rateLimiter,
		now:              systemClock,
	}
}

// SetClock replaces the time source.
func (uc *MessageUseCase) SetClock(clock Clock) {
	uc.now = clock
}

type SendMessageInput struct {
	Text        string
	Attachments []string
}

// MessageView exposes the reaction ledger as per-kind counts plus the viewer's own pick.
type MessageView struct {
	*entity.Message
	Reactions  map[string]int `json:"reactions"`
	MyReaction string         `json:"my_reaction,omitempty"`
}

func newMessageView(m *entity.Message, viewerID string) *MessageView {
	return &MessageView{
		Message:    m,
		Reactions:  m.ReactionCounts(),
		MyReaction: m.ReactionOf(viewerID),
	}
}

func (uc *MessageUseCase) participantConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, error) {
	if conversationID == "" || userID == "" {
		return nil, errors.BadRequest("Conversation and user are required", nil)
	}
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, errors.Forbidden("You are not a participant in this conversation", nil)
	}
	return conversation, nil
}

// nextCreatedAt keeps creation times strictly increasing within a conversation.
func (uc *MessageUseCase) nextCreatedAt(ctx context.Context, conversationID string) (time.Time, error) {
	now := uc.now()
	latest, err := uc.messageRepo.Latest(ctx, conversationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return now, nil
		}
		return time.Time{}, err
	}
	if !now.After(latest.CreatedAt) {
		now = latest.CreatedAt.Add(time.Microsecond)
	}
	return now, nil
}

// SendMessage appends a message and applies its effects on the conversation
// in one transaction: the sender engages, the recipient is re-classified, the
// recipient's unread counter is incremented and the preview moves forward.
func (uc *MessageUseCase) SendMessage(ctx context.Context, conversationID, senderID string, input SendMessageInput) (*entity.Message, error) {
	if strings.TrimSpace(input.Text) == "" && len(input.Attachments) == 0 {
		return nil, errors.BadRequest("Message must have text or attachments", nil)
	}

	if uc.rateLimiter != nil {
		if allowed, wait := uc.rateLimiter.Allow(senderID, ratelimit.ActionSendMessage); !allowed {
			logger.Warn("SendMessage Rate Limited: User %s must wait %v", senderID, wait)
			return nil, errors.TooManyRequests("Rate limit exceeded. Please wait before sending another message")
		}
	}

	conversation, err := uc.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	recipientID := conversation.OtherParticipant(senderID)

	recipientFollowsSender, err := uc.relationshipRepo.IsFollowing(ctx, recipientID, senderID)
	if err != nil {
		logger.Error("SendMessage Error: Failed to read follow state %s->%s: %v", recipientID, senderID, err)
		return nil, err
	}

	createdAt, err := uc.nextCreatedAt(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	attachments := make([]string, len(input.Attachments))
	copy(attachments, input.Attachments)

	message := &entity.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           input.Text,
		Attachments:    attachments,
		Reactions:      map[string]string{},
		Status:         entity.MessageStatusSent,
		SeenBy:         []string{},
		DeletedBy:      []string{},
		CreatedAt:      createdAt,
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		logger.Error("SendMessage Error: Failed to store message in %s: %v", conversationID, err)
		return nil, err
	}

	var recipientIsRequest bool
	_, err = uc.conversationRepo.Transform(ctx, conversationID, func(current *entity.Conversation) (*entity.ConversationPatch, error) {
		patch, isRequest := current.SendPatch(senderID, recipientFollowsSender, message.Projection())
		// A concurrent newer send already owns the preview.
		if current.LastMessageTime != nil && message.CreatedAt.Before(*current.LastMessageTime) {
			patch.LastMessage = nil
		}
		recipientIsRequest = isRequest
		return patch, nil
	})
	if err != nil {
		logger.Error("SendMessage Error: Message %s stored but conversation %s not updated: %v", message.ID, conversationID, err)
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if recipientIsRequest && uc.notifier != nil {
		_, err := uc.notifier.CreateNotification(ctx, recipientID, senderID, entity.NotificationMessageRequest, entity.NotificationOptions{
			MessageThreadID: conversationID,
		})
		if err != nil {
			sideEffectFailed("SendMessage", "message_request_notification", recipientID, err)
		}
	}

	return message, nil
}

func (uc *MessageUseCase) senderMessage(ctx context.Context, conversationID, messageID, actorID string) (*entity.Message, error) {
	if _, err := uc.participantConversation(ctx, conversationID, actorID); err != nil {
		return nil, err
	}
	message, err := uc.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != actorID {
		return nil, errors.Forbidden("Only the sender can change this message", nil)
	}
	return message, nil
}

// EditMessage rewrites the text in place. The preview follows only when the
// edited message is the newest one.
func (uc *MessageUseCase) EditMessage(ctx context.Context, conversationID, messageID, editorID, text string) (*MessageView, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.BadRequest("Text is required", nil)
	}
	if _, err := uc.senderMessage(ctx, conversationID, messageID, editorID); err != nil {
		return nil, err
	}

	updated, err := uc.messageRepo.UpdateText(ctx, conversationID, messageID, text)
	if err != nil {
		return nil, err
	}

	if _, err := uc.RefreshLastMessage(ctx, conversationID); err != nil {
		sideEffectFailed("EditMessage", "preview_refresh", conversationID, err)
	}
	return newMessageView(updated, editorID), nil
}

// DeleteMessage physically removes a message and re-derives the preview.
func (uc *MessageUseCase) DeleteMessage(ctx context.Context, conversationID, messageID, actorID string) error {
	if _, err := uc.senderMessage(ctx, conversationID, messageID, actorID); err != nil {
		return err
	}

	if err := uc.messageRepo.Delete(ctx, conversationID, messageID); err != nil {
		return err
	}

	if _, err := uc.RefreshLastMessage(ctx, conversationID); err != nil {
		logger.Error("DeleteMessage Error: %s removed but preview of %s not refreshed: %v", messageID, conversationID, err)
		return err
	}
	return nil
}

func sameProjection(c *entity.Conversation, p entity.LastMessageProjection) bool {
	if c.LastMessageID != p.MessageID || c.LastMessage != p.Text {
		return false
	}
	if c.LastMessageTime == nil || p.Time == nil {
		return c.LastMessageTime == nil && p.Time == nil
	}
	return c.LastMessageTime.Equal(*p.Time)
}

// RefreshLastMessage sets the preview from the newest stored message, or
// clears it when the log is empty. It writes nothing when already current.
func (uc *MessageUseCase) RefreshLastMessage(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	var projection entity.LastMessageProjection
	latest, err := uc.messageRepo.Latest(ctx, conversationID)
	switch {
	case err == nil:
		projection = latest.Projection()
	case errors.IsNotFound(err):
	default:
		return nil, err
	}

	return uc.conversationRepo.Transform(ctx, conversationID, func(current *entity.Conversation) (*entity.ConversationPatch, error) {
		if sameProjection(current, projection) {
			return nil, nil
		}
		return &entity.ConversationPatch{LastMessage: &projection}, nil
	})
}

// ToggleReaction picks kind for the reactor, or clears it when kind is
// already the reactor's pick.
func (uc *MessageUseCase) ToggleReaction(ctx context.Context, conversationID, messageID, reactorID, kind string) (*MessageView, error) {
	if kind == "" {
		return nil, errors.BadRequest("Reaction kind is required", nil)
	}
	if _, err := uc.participantConversation(ctx, conversationID, reactorID); err != nil {
		return nil, err
	}

	message, err := uc.messageRepo.GetByID(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}

	next := entity.NextReaction(message.ReactionOf(reactorID), kind)
	updated, err := uc.messageRepo.SetReaction(ctx, conversationID, messageID, reactorID, next)
	if err != nil {
		return nil, err
	}
	return newMessageView(updated, reactorID), nil
}

// HideMessageForViewer removes a message from the viewer's own listing only.
func (uc *MessageUseCase) HideMessageForViewer(ctx context.Context, conversationID, messageID, viewerID string) error {
	if _, err := uc.participantConversation(ctx, conversationID, viewerID); err != nil {
		return err
	}
	if _, err := uc.messageRepo.GetByID(ctx, conversationID, messageID); err != nil {
		return err
	}
	return uc.messageRepo.HideFor(ctx, conversationID, messageID, viewerID)
}

// ListMessages returns the log in creation order, without messages the viewer hid.
func (uc *MessageUseCase) ListMessages(ctx context.Context, conversationID, viewerID string, limit, offset int) ([]*MessageView, int64, error) {
	if _, err := uc.participantConversation(ctx, conversationID, viewerID); err != nil {
		return nil, 0, err
	}

	messages, total, err := uc.messageRepo.List(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*MessageView, 0, len(messages))
	for _, m := range messages {
		if m.IsHiddenFor(viewerID) {
			continue
		}
		m.Attachments = uc.resolveAttachments(ctx, m.Attachments)
		views = append(views, newMessageView(m, viewerID))
	}
	return views, total, nil
}

func (uc *MessageUseCase) resolveAttachments(ctx context.Context, refs []string) []string {
	if uc.attachments == nil || len(refs) == 0 {
		return refs
	}
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		url, err := uc.attachments.Resolve(ctx, ref)
		if err != nil {
			logger.Warn("ListMessages: attachment %s left unsigned: %v", ref, err)
			url = ref
		}
		out = append(out, url)
	}
	return out
}

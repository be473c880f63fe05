package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"recipehub/internal/domain/entity"
	"recipehub/internal/domain/repository"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/metrics"
	"recipehub/pkg/errors"
	"recipehub/pkg/logger"
)

// MaxBatchSize caps the writes of a single delete batch.
const MaxBatchSize = 500

const (
	FolderAll      = ""
	FolderInbox    = "inbox"
	FolderRequests = "requests"
)

type ConversationUseCase struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	relationshipRepo repository.RelationshipRepository
	profiles         service.ProfileProvider
	batchSize        int
	now              Clock
}

func NewConversationUseCase(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	relationshipRepo repository.RelationshipRepository,
	profiles service.ProfileProvider,
	batchSize int,
) *ConversationUseCase {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &ConversationUseCase{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		relationshipRepo: relationshipRepo,
		profiles:         profiles,
		batchSize:        batchSize,
		now:              systemClock,
	}
}

// SetClock replaces the time source.
func (uc *ConversationUseCase) SetClock(clock Clock) {
	uc.now = clock
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	*entity.Conversation
	IsRequestForViewer bool            `json:"is_request_for_viewer"`
	ViewerUnread       int             `json:"viewer_unread"`
	OtherUser          *entity.Profile `json:"other_user"`
}

func validatePair(a, b string) error {
	if a == "" || b == "" {
		return errors.BadRequest("Both participants are required", nil)
	}
	if a == b {
		return errors.BadRequest("You cannot start a conversation with yourself", nil)
	}
	return nil
}

type followState struct {
	values map[[2]string]bool
}

func (f followState) follows(from, to string) bool {
	return f.values[[2]string{from, to}]
}

// loadFollowState reads both directions of the pair.
func (uc *ConversationUseCase) loadFollowState(ctx context.Context, a, b string) (followState, error) {
	aFollowsB, err := uc.relationshipRepo.IsFollowing(ctx, a, b)
	if err != nil {
		return followState{}, err
	}
	bFollowsA, err := uc.relationshipRepo.IsFollowing(ctx, b, a)
	if err != nil {
		return followState{}, err
	}
	return followState{values: map[[2]string]bool{
		{a, b}: aFollowsB,
		{b, a}: bFollowsA,
	}}, nil
}

// EnsureConversation returns the id of the pair's conversation, creating it
// on first contact. An existing record is reconciled with follow state.
func (uc *ConversationUseCase) EnsureConversation(ctx context.Context, a, b string) (string, error) {
	if err := validatePair(a, b); err != nil {
		return "", err
	}

	state, err := uc.loadFollowState(ctx, a, b)
	if err != nil {
		logger.Error("EnsureConversation Error: Failed to read follow state for %s/%s: %v", a, b, err)
		return "", err
	}

	existing, err := uc.conversationRepo.FindByParticipants(ctx, a, b)
	if err == nil {
		return existing.ID, uc.reconcile(ctx, existing.ID, state)
	}
	if !errors.IsNotFound(err) {
		logger.Error("EnsureConversation Error: Failed to look up %s/%s: %v", a, b, err)
		return "", err
	}

	conversation := entity.NewConversation(a, b, state.follows(a, b), state.follows(b, a), uc.now())
	if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
		if !errors.Is(err, errors.CodeConflict) {
			logger.Error("EnsureConversation Error: Failed to create %s: %v", conversation.ID, err)
			return "", err
		}
		// Lost a create race; the winner's record is authoritative.
		winner, err := uc.conversationRepo.GetByID(ctx, conversation.ID)
		if err != nil {
			return "", err
		}
		if !winner.MatchesPair(a, b) {
			logger.Error("EnsureConversation Error: %s is held by participants %v, not %s/%s", conversation.ID, winner.Participants, a, b)
			return "", errors.Conflict("Conversation id is held by another pair", nil)
		}
		logger.Debug("EnsureConversation: %s created concurrently, reconciling", conversation.ID)
		return conversation.ID, uc.reconcile(ctx, conversation.ID, state)
	}

	logger.Info("Conversation %s created between %s and %s", conversation.ID, a, b)
	return conversation.ID, nil
}

func (uc *ConversationUseCase) reconcile(ctx context.Context, conversationID string, state followState) error {
	_, err := uc.conversationRepo.Transform(ctx, conversationID, func(current *entity.Conversation) (*entity.ConversationPatch, error) {
		return current.ReconcilePatch(state.follows), nil
	})
	return err
}

// ReconcilePair re-derives request flags after a follow change. Pairs without
// a conversation are left alone.
func (uc *ConversationUseCase) ReconcilePair(ctx context.Context, a, b string) error {
	if err := validatePair(a, b); err != nil {
		return err
	}

	existing, err := uc.conversationRepo.FindByParticipants(ctx, a, b)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	}

	state, err := uc.loadFollowState(ctx, a, b)
	if err != nil {
		return err
	}
	return uc.reconcile(ctx, existing.ID, state)
}

func (uc *ConversationUseCase) participantConversation(ctx context.Context, conversationID, userID string) (*entity.Conversation, error) {
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

// AcceptMessageRequest moves the viewer out of the request folder for good.
func (uc *ConversationUseCase) AcceptMessageRequest(ctx context.Context, conversationID, viewerID string) (*entity.Conversation, error) {
	conversation, err := uc.participantConversation(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}

	otherID := conversation.OtherParticipant(viewerID)
	state, err := uc.loadFollowState(ctx, viewerID, otherID)
	if err != nil {
		return nil, err
	}

	updated, err := uc.conversationRepo.Transform(ctx, conversationID, func(current *entity.Conversation) (*entity.ConversationPatch, error) {
		return current.AcceptPatch(viewerID, state.follows(viewerID, otherID), state.follows(otherID, viewerID)), nil
	})
	if err != nil {
		logger.Error("AcceptMessageRequest Error: %s by %s: %v", conversationID, viewerID, err)
		return nil, err
	}
	return updated, nil
}

// IgnoreMessageRequest only records the status; flags and counters are untouched.
func (uc *ConversationUseCase) IgnoreMessageRequest(ctx context.Context, conversationID, viewerID string) error {
	if _, err := uc.participantConversation(ctx, conversationID, viewerID); err != nil {
		return err
	}
	return uc.conversationRepo.Update(ctx, conversationID, entity.IgnorePatch())
}

// MarkMessagesAsSeen adds the viewer to seenBy of every foreign message they
// have not seen and clears their unread counter. Safe to repeat.
func (uc *ConversationUseCase) MarkMessagesAsSeen(ctx context.Context, conversationID, viewerID string) error {
	if _, err := uc.participantConversation(ctx, conversationID, viewerID); err != nil {
		return err
	}

	messages, _, err := uc.messageRepo.List(ctx, conversationID, 0, 0)
	if err != nil {
		return err
	}

	var unseen []string
	for _, m := range messages {
		if m.SenderID != viewerID && !m.IsSeenBy(viewerID) {
			unseen = append(unseen, m.ID)
		}
	}
	if len(unseen) > 0 {
		if err := uc.messageRepo.AddSeenBy(ctx, conversationID, unseen, viewerID); err != nil {
			logger.Error("MarkMessagesAsSeen Error: %s for %s: %v", conversationID, viewerID, err)
			return err
		}
	}

	return uc.conversationRepo.Update(ctx, conversationID, entity.SeenPatch(viewerID, uc.now()))
}

func countUnreadConversations(conversations []*entity.Conversation, viewerID string) int {
	count := 0
	for _, c := range conversations {
		if c.UnreadFor(viewerID) > 0 {
			count++
		}
	}
	return count
}

// UnreadConversationCount is the number of threads with unread messages for the viewer.
func (uc *ConversationUseCase) UnreadConversationCount(ctx context.Context, viewerID string) (int, error) {
	conversations, err := uc.conversationRepo.ListByParticipant(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	return countUnreadConversations(conversations, viewerID), nil
}

type unreadSubscription struct {
	repository.Subscription
	once sync.Once
}

func (s *unreadSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.Subscription.Unsubscribe()
		metrics.ActiveSubscriptions.WithLabelValues("unread").Dec()
	})
}

// ListenToUnreadCount pushes UnreadConversationCount on every change.
func (uc *ConversationUseCase) ListenToUnreadCount(ctx context.Context, viewerID string, fn func(count int)) (repository.Subscription, error) {
	if viewerID == "" {
		return nil, errors.BadRequest("Viewer is required", nil)
	}
	sub, err := uc.conversationRepo.WatchByParticipant(ctx, viewerID, func(conversations []*entity.Conversation) {
		fn(countUnreadConversations(conversations, viewerID))
	})
	if err != nil {
		return nil, err
	}
	metrics.ActiveSubscriptions.WithLabelValues("unread").Inc()
	return &unreadSubscription{Subscription: sub}, nil
}

// DeleteConversation removes the message log in bounded batches, then the record.
func (uc *ConversationUseCase) DeleteConversation(ctx context.Context, conversationID, actorID string) error {
	if _, err := uc.participantConversation(ctx, conversationID, actorID); err != nil {
		return err
	}

	deleted := 0
	for {
		ids, err := uc.messageRepo.ListIDs(ctx, conversationID, uc.batchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			break
		}
		if err := uc.messageRepo.DeleteBatch(ctx, conversationID, ids); err != nil {
			logger.Error("DeleteConversation Error: batch delete in %s failed after %d messages: %v", conversationID, deleted, err)
			return err
		}
		deleted += len(ids)
	}

	if err := uc.conversationRepo.Delete(ctx, conversationID); err != nil {
		return err
	}
	logger.Info("Conversation %s deleted by %s (%d messages)", conversationID, actorID, deleted)
	return nil
}

func (uc *ConversationUseCase) view(ctx context.Context, c *entity.Conversation, viewerID string) *ConversationView {
	return &ConversationView{
		Conversation:       c,
		IsRequestForViewer: c.IsRequestFor(viewerID),
		ViewerUnread:       c.UnreadFor(viewerID),
		OtherUser:          profileOrPlaceholder(ctx, uc.profiles, c.OtherParticipant(viewerID)),
	}
}

func (uc *ConversationUseCase) GetConversation(ctx context.Context, conversationID, viewerID string) (*ConversationView, error) {
	conversation, err := uc.participantConversation(ctx, conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	return uc.view(ctx, conversation, viewerID), nil
}

// ListConversations returns the viewer's inbox or request folder, newest activity first.
func (uc *ConversationUseCase) ListConversations(ctx context.Context, viewerID, folder string) ([]*ConversationView, error) {
	if viewerID == "" {
		return nil, errors.BadRequest("Viewer is required", nil)
	}
	if folder != FolderAll && folder != FolderInbox && folder != FolderRequests {
		return nil, errors.BadRequest("Folder must be inbox or requests", nil)
	}

	conversations, err := uc.conversationRepo.ListByParticipant(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var selected []*entity.Conversation
	for _, c := range conversations {
		isRequest := c.IsRequestFor(viewerID)
		if (folder == FolderInbox && isRequest) || (folder == FolderRequests && !isRequest) {
			continue
		}
		selected = append(selected, c)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return activityTime(selected[i]).After(activityTime(selected[j]))
	})

	views := make([]*ConversationView, 0, len(selected))
	for _, c := range selected {
		views = append(views, uc.view(ctx, c, viewerID))
	}
	return views, nil
}

func activityTime(c *entity.Conversation) time.Time {
	if c.LastMessageTime != nil {
		return *c.LastMessageTime
	}
	return c.CreatedAt
}

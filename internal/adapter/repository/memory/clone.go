package memory

import (
	"time"

	"recipehub/internal/domain/entity"
)

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	out := *c
	out.Participants = cloneStrings(c.Participants)
	out.IsRequest = make(map[string]bool, len(c.IsRequest))
	for k, v := range c.IsRequest {
		out.IsRequest[k] = v
	}
	out.HasEngaged = make(map[string]bool, len(c.HasEngaged))
	for k, v := range c.HasEngaged {
		out.HasEngaged[k] = v
	}
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	out.LastSeenTimestamp = make(map[string]time.Time, len(c.LastSeenTimestamp))
	for k, v := range c.LastSeenTimestamp {
		out.LastSeenTimestamp[k] = v
	}
	if c.RequestTo != nil {
		to := *c.RequestTo
		out.RequestTo = &to
	}
	out.LastMessageTime = cloneTime(c.LastMessageTime)
	return &out
}

func cloneMessage(m *entity.Message) *entity.Message {
	out := *m
	out.Attachments = cloneStrings(m.Attachments)
	out.SeenBy = cloneStrings(m.SeenBy)
	out.DeletedBy = cloneStrings(m.DeletedBy)
	out.EditedAt = cloneTime(m.EditedAt)
	out.Reactions = make(map[string]string, len(m.Reactions))
	for k, v := range m.Reactions {
		out.Reactions[k] = v
	}
	return &out
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	out := *n
	if n.RatingValue != nil {
		v := *n.RatingValue
		out.RatingValue = &v
	}
	return &out
}

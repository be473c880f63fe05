package entity

import (
	"strings"
	"time"
)

const MessageStatusSent = "sent"

type Message struct {
	ID             string    `json:"id" firestore:"id"`
	ConversationID string    `json:"conversation_id" firestore:"conversationId"`
	SenderID       string    `json:"sender_id" firestore:"senderId"`
	Text           string    `json:"text" firestore:"text"`
	Attachments    []string  `json:"attachments" firestore:"attachments"`
	// Reactions maps reactor id to the chosen reaction kind. One entry per reactor.
	Reactions map[string]string `json:"-" firestore:"reactions"`
	Status    string            `json:"status" firestore:"status"`
	SeenBy    []string          `json:"seen_by" firestore:"seenBy"`
	Edited    bool              `json:"edited" firestore:"edited"`
	EditedAt  *time.Time        `json:"edited_at,omitempty" firestore:"editedAt"`
	DeletedBy []string          `json:"-" firestore:"deletedBy"`
	CreatedAt time.Time         `json:"created_at" firestore:"createdAt"`
}

// Preview is the text used for the conversation's last-message projection.
func (m *Message) Preview() string {
	if strings.TrimSpace(m.Text) == "" && len(m.Attachments) > 0 {
		return AttachmentPreview
	}
	return m.Text
}

// Projection returns the last-message projection for this message.
func (m *Message) Projection() LastMessageProjection {
	t := m.CreatedAt
	return LastMessageProjection{MessageID: m.ID, Text: m.Preview(), Time: &t}
}

func (m *Message) IsSeenBy(id string) bool {
	return containsID(m.SeenBy, id)
}

// IsHiddenFor reports whether viewer removed this message from their own view.
func (m *Message) IsHiddenFor(viewer string) bool {
	return containsID(m.DeletedBy, viewer)
}

// ReactionOf returns the reactor's current kind, or "".
func (m *Message) ReactionOf(reactor string) string {
	return m.Reactions[reactor]
}

// ReactionCounts derives the per-kind tally from the reactor ledger.
func (m *Message) ReactionCounts() map[string]int {
	counts := make(map[string]int)
	for _, kind := range m.Reactions {
		if kind != "" {
			counts[kind]++
		}
	}
	return counts
}

// NextReaction applies the toggle rule: picking the active kind clears it,
// anything else replaces it.
func NextReaction(current, selected string) string {
	if current == selected {
		return ""
	}
	return selected
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

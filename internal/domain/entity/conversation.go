package entity

import (
	"sort"
	"time"
)

const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusIgnored  = "ignored"
)

// AttachmentPreview is shown as the last message when a message carries only attachments.
const AttachmentPreview = "Sent an attachment"

// Conversation is a two-party thread. Participants are stored sorted.
type Conversation struct {
	ID                string               `json:"id" firestore:"id"`
	Participants      []string             `json:"participants" firestore:"participants"`
	IsRequest         map[string]bool      `json:"is_request" firestore:"isRequest"`
	HasEngaged        map[string]bool      `json:"has_engaged" firestore:"hasEngaged"`
	RequestStatus     string               `json:"request_status" firestore:"requestStatus"`
	RequestTo         *string              `json:"request_to" firestore:"requestTo"`
	UnreadCount       map[string]int       `json:"unread_count" firestore:"unreadCount"`
	LastSeenTimestamp map[string]time.Time `json:"last_seen_timestamp" firestore:"lastSeenTimestamp"`
	LastMessage       string               `json:"last_message" firestore:"lastMessage"`
	LastMessageTime   *time.Time           `json:"last_message_time" firestore:"lastMessageTime"`
	LastMessageID     string               `json:"last_message_id,omitempty" firestore:"lastMessageId"`
	CreatedAt         time.Time            `json:"created_at" firestore:"createdAt"`
	UpdatedAt         time.Time            `json:"updated_at" firestore:"updatedAt"`
}

// LastMessageProjection is the denormalized tail of the message log.
// A zero Time means the projection is cleared.
type LastMessageProjection struct {
	MessageID string
	Text      string
	Time      *time.Time
}

// ConversationPatch is a partial update. Nil/empty fields are left untouched.
type ConversationPatch struct {
	IsRequest       map[string]bool
	HasEngaged      map[string]bool
	RequestStatus   *string
	RequestTo       *string
	ClearRequestTo  bool
	UnreadIncrement map[string]int
	UnreadReset     []string
	LastSeen        map[string]time.Time
	LastMessage     *LastMessageProjection
}

// IsEmpty reports whether applying the patch would change nothing.
func (p *ConversationPatch) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.IsRequest) == 0 && len(p.HasEngaged) == 0 && p.RequestStatus == nil &&
		p.RequestTo == nil && !p.ClearRequestTo && len(p.UnreadIncrement) == 0 &&
		len(p.UnreadReset) == 0 && len(p.LastSeen) == 0 && p.LastMessage == nil
}

func (p *ConversationPatch) setRequest(id string, isRequest bool) {
	if p.IsRequest == nil {
		p.IsRequest = make(map[string]bool)
	}
	p.IsRequest[id] = isRequest
	if !isRequest {
		if p.HasEngaged == nil {
			p.HasEngaged = make(map[string]bool)
		}
		p.HasEngaged[id] = true
	}
}

// CanonicalPair returns the two ids in sorted order.
func CanonicalPair(a, b string) [2]string {
	pair := []string{a, b}
	sort.Strings(pair)
	return [2]string{pair[0], pair[1]}
}

// ConversationIDFor derives the deterministic document id of a pair.
func ConversationIDFor(a, b string) string {
	pair := CanonicalPair(a, b)
	return pairKey(pair[0], pair[1])
}

// NewConversation builds the initial record. A side starts as a request
// unless that viewer already follows the other participant.
func NewConversation(a, b string, aFollowsB, bFollowsA bool, now time.Time) *Conversation {
	pair := CanonicalPair(a, b)
	c := &Conversation{
		ID:                ConversationIDFor(a, b),
		Participants:      []string{pair[0], pair[1]},
		IsRequest:         map[string]bool{a: !aFollowsB, b: !bFollowsA},
		HasEngaged:        map[string]bool{a: aFollowsB, b: bFollowsA},
		RequestStatus:     RequestStatusPending,
		UnreadCount:       map[string]int{a: 0, b: 0},
		LastSeenTimestamp: map[string]time.Time{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return c
}

func (c *Conversation) HasParticipant(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// MatchesPair is true only for an exact two-element match, in either order.
func (c *Conversation) MatchesPair(a, b string) bool {
	if len(c.Participants) != 2 {
		return false
	}
	pair := CanonicalPair(a, b)
	sorted := []string{c.Participants[0], c.Participants[1]}
	sort.Strings(sorted)
	return sorted[0] == pair[0] && sorted[1] == pair[1]
}

// OtherParticipant returns the participant that is not id, or "" if id is not a participant.
func (c *Conversation) OtherParticipant(id string) string {
	if !c.HasParticipant(id) {
		return ""
	}
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return ""
}

// IsEngaged reports whether id's request flag has latched to false.
// Records without hasEngaged fall back to an observed false isRequest.
func (c *Conversation) IsEngaged(id string) bool {
	if c.HasEngaged[id] {
		return true
	}
	v, ok := c.IsRequest[id]
	return ok && !v
}

// IsRequestFor reports the per-viewer classification.
func (c *Conversation) IsRequestFor(id string) bool {
	if c.IsEngaged(id) {
		return false
	}
	v, ok := c.IsRequest[id]
	return !ok || v
}

func (c *Conversation) UnreadFor(id string) int {
	return c.UnreadCount[id]
}

// recompute returns the patch value for id given whether id follows the other side.
// Engaged participants never change.
func (c *Conversation) recompute(p *ConversationPatch, id string, follows bool) {
	if c.IsEngaged(id) {
		return
	}
	want := !follows
	current, ok := c.IsRequest[id]
	if ok && current == want {
		return
	}
	p.setRequest(id, want)
}

// ReconcilePatch re-derives both request flags from follow state under the
// sticky-engagement rule. It returns nil when nothing changes.
func (c *Conversation) ReconcilePatch(follows func(from, to string) bool) *ConversationPatch {
	p := &ConversationPatch{}
	for _, id := range c.Participants {
		other := c.OtherParticipant(id)
		c.recompute(p, id, follows(id, other))
	}
	if p.IsEmpty() {
		return nil
	}
	return p
}

// SendPatch captures everything a new message does to the conversation.
// The second result is the recipient's classification after the send.
func (c *Conversation) SendPatch(sender string, recipientFollowsSender bool, tail LastMessageProjection) (*ConversationPatch, bool) {
	recipient := c.OtherParticipant(sender)
	p := &ConversationPatch{
		UnreadIncrement: map[string]int{recipient: 1},
		LastMessage:     &tail,
	}
	p.setRequest(sender, false)

	recipientRequest := !c.IsEngaged(recipient) && !recipientFollowsSender
	p.setRequest(recipient, recipientRequest)

	if !recipientFollowsSender {
		to := recipient
		p.RequestTo = &to
	} else {
		p.ClearRequestTo = true
	}
	return p, recipientRequest
}

// AcceptPatch forces the viewer out of the request state.
func (c *Conversation) AcceptPatch(viewer string, viewerFollowsOther, otherFollowsViewer bool) *ConversationPatch {
	other := c.OtherParticipant(viewer)
	p := &ConversationPatch{}
	p.setRequest(viewer, false)
	c.recompute(p, other, otherFollowsViewer)

	status := RequestStatusAccepted
	p.RequestStatus = &status

	switch {
	case !viewerFollowsOther:
		to := viewer
		p.RequestTo = &to
	case !otherFollowsViewer:
		to := other
		p.RequestTo = &to
	default:
		p.ClearRequestTo = true
	}
	return p
}

// IgnorePatch only changes the conversation-global status.
func IgnorePatch() *ConversationPatch {
	status := RequestStatusIgnored
	return &ConversationPatch{RequestStatus: &status}
}

// SeenPatch resets the viewer's unread counter and stamps their watermark.
func SeenPatch(viewer string, now time.Time) *ConversationPatch {
	return &ConversationPatch{
		UnreadReset: []string{viewer},
		LastSeen:    map[string]time.Time{viewer: now},
	}
}

// Apply mutates c in place. Adapters without native partial updates use it directly.
func (c *Conversation) Apply(p *ConversationPatch, now time.Time) {
	if p == nil {
		return
	}
	if c.IsRequest == nil {
		c.IsRequest = make(map[string]bool)
	}
	if c.HasEngaged == nil {
		c.HasEngaged = make(map[string]bool)
	}
	if c.UnreadCount == nil {
		c.UnreadCount = make(map[string]int)
	}
	if c.LastSeenTimestamp == nil {
		c.LastSeenTimestamp = make(map[string]time.Time)
	}

	for id, v := range p.HasEngaged {
		c.HasEngaged[id] = c.HasEngaged[id] || v
	}
	for id, v := range p.IsRequest {
		if c.HasEngaged[id] {
			v = false
		}
		c.IsRequest[id] = v
	}
	if p.RequestStatus != nil {
		c.RequestStatus = *p.RequestStatus
	}
	if p.ClearRequestTo {
		c.RequestTo = nil
	} else if p.RequestTo != nil {
		to := *p.RequestTo
		c.RequestTo = &to
	}
	for id, n := range p.UnreadIncrement {
		c.UnreadCount[id] += n
		if c.UnreadCount[id] < 0 {
			c.UnreadCount[id] = 0
		}
	}
	for _, id := range p.UnreadReset {
		c.UnreadCount[id] = 0
	}
	for id, t := range p.LastSeen {
		c.LastSeenTimestamp[id] = t
	}
	if p.LastMessage != nil {
		c.LastMessage = p.LastMessage.Text
		c.LastMessageID = p.LastMessage.MessageID
		if p.LastMessage.Time != nil {
			t := *p.LastMessage.Time
			c.LastMessageTime = &t
		} else {
			c.LastMessageTime = nil
		}
	}
	c.UpdatedAt = now
}

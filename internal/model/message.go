package model

import "time"

// Status is a message lifecycle status.
type Status string

const (
	// StatusPending marks a locally-created message awaiting backend confirmation.
	StatusPending Status = "pending"
	// StatusConfirmed marks a message acknowledged by the backend with a stable id.
	StatusConfirmed Status = "confirmed"
)

// Media describes an attachment on a message.
type Media struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Message is one entry in a conversation sequence. Either ReceiverID (1:1)
// or GroupID (group) is set, never both.
type Message struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlationId,omitempty"`
	SenderID      string     `json:"senderId"`
	ReceiverID    string     `json:"receiverId,omitempty"`
	GroupID       string     `json:"groupId,omitempty"`
	Text          string     `json:"text,omitempty"`
	Media         *Media     `json:"media,omitempty"`
	ReplyToID     string     `json:"replyToId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	Status        Status     `json:"status"`
}

// IsGroup reports whether the message belongs to a group conversation.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// ConversationKey derives the key under which this message is filed:
// the group id for group messages, otherwise the peer's user id as seen
// from selfID's perspective.
func (m *Message) ConversationKey(selfID string) string {
	if m.GroupID != "" {
		return m.GroupID
	}
	if m.SenderID == selfID {
		return m.ReceiverID
	}
	return m.SenderID
}

// Fingerprint correlates a pending message with its later confirmation when
// no correlation id round-trips through the backend. Two messages carry the
// same fingerprint when sender and destination match and either both texts
// are equal or both media attachments share filename and type.
type Fingerprint struct {
	SenderID   string
	ReceiverID string
	GroupID    string
	Text       string
	MediaName  string
	MediaType  string
}

// Fingerprint returns the content fingerprint of the message.
func (m *Message) Fingerprint() Fingerprint {
	fp := Fingerprint{
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		GroupID:    m.GroupID,
		Text:       m.Text,
	}
	if m.Media != nil {
		fp.MediaName = m.Media.Filename
		fp.MediaType = m.Media.Type
	}
	return fp
}

// Preview returns a short human-readable rendering for chat-list rows.
func (m *Message) Preview(maxLen int) string {
	s := m.Text
	if s == "" && m.Media != nil {
		s = "[" + m.Media.Type + "] " + m.Media.Filename
	}
	if maxLen > 0 && len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}

// ConversationSummary is one row of the chat list.
type ConversationSummary struct {
	Key             string
	IsGroup         bool
	LastMessage     *Message
	LastInteraction time.Time
	Preview         string
}

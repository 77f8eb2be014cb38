package gateway

import (
	"time"

	"github.com/quillchat/quill/internal/model"
)

// wireMedia is the media payload as the backend serializes it.
type wireMedia struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// wireMessage is a message as it travels over REST and the push channel.
// Timestamps are unix milliseconds.
type wireMessage struct {
	ID            string     `json:"id"`
	CorrelationID string     `json:"correlationId,omitempty"`
	SenderID      string     `json:"senderId"`
	ReceiverID    string     `json:"receiverId,omitempty"`
	GroupID       string     `json:"groupId,omitempty"`
	Text          string     `json:"text,omitempty"`
	Media         *wireMedia `json:"media,omitempty"`
	ReplyToID     string     `json:"replyToId,omitempty"`
	CreatedAt     int64      `json:"createdAt"`
}

// wireFrame is one push-channel frame. Exactly one payload field is set,
// selected by Type.
type wireFrame struct {
	Type       string          `json:"type"`
	Message    *wireMessage    `json:"message,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	Online     []string        `json:"online,omitempty"`
	Typing     *wireTyping     `json:"typing,omitempty"`
	Membership *wireMembership `json:"membership,omitempty"`
}

type wireTyping struct {
	PeerID   string `json:"peerId"`
	IsTyping bool   `json:"isTyping"`
}

type wireMembership struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	Joined  bool   `json:"joined"`
}

// toModel converts a wire message. Anything delivered by the backend is
// confirmed by definition.
func (w *wireMessage) toModel() *model.Message {
	m := &model.Message{
		ID:            w.ID,
		CorrelationID: w.CorrelationID,
		SenderID:      w.SenderID,
		ReceiverID:    w.ReceiverID,
		GroupID:       w.GroupID,
		Text:          w.Text,
		ReplyToID:     w.ReplyToID,
		CreatedAt:     time.UnixMilli(w.CreatedAt),
		Status:        model.StatusConfirmed,
	}
	if w.Media != nil {
		m.Media = &model.Media{
			URL:      w.Media.URL,
			Type:     w.Media.Type,
			Filename: w.Media.Filename,
			Size:     w.Media.Size,
		}
	}
	return m
}

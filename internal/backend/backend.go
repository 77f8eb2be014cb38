// Package backend defines the abstract operations the reconciliation core
// consumes from the remote side. The gateway implements them; tests use
// in-memory fakes. The exact transport and schema live behind this boundary.
package backend

import (
	"context"

	"github.com/quillchat/quill/internal/model"
)

// Content is the payload of an outgoing message.
type Content struct {
	Text          string       `json:"text,omitempty"`
	Media         *model.Media `json:"media,omitempty"`
	ReplyToID     string       `json:"replyToId,omitempty"`
	CorrelationID string       `json:"correlationId,omitempty"`
}

// Client is the full collaborator surface the engine depends on.
type Client interface {
	// SendMessage delivers content to the conversation and returns the
	// confirmed message with its server-assigned id. The correlation id is
	// passed through and may be echoed back.
	SendMessage(ctx context.Context, conversationKey string, content Content) (*model.Message, error)

	// FetchMessages loads the baseline message list for a conversation.
	// Also used by the poll fallback; results are merged, never trusted
	// as a replacement.
	FetchMessages(ctx context.Context, conversationKey string) ([]model.Message, error)

	// MarkRead acknowledges the given message ids as read in one batch.
	// Whether the server fans this out per message is its own business.
	MarkRead(ctx context.Context, conversationKey string, ids []string) error

	// DeleteMessage removes a message server-side.
	DeleteMessage(ctx context.Context, id string) error

	// FetchPresenceBaseline returns the ids last known to be online.
	FetchPresenceBaseline(ctx context.Context) ([]string, error)
}

package store

// Conversation is one cached chat-list row.
type Conversation struct {
	Key               string
	IsGroup           bool
	UnreadCount       int
	LastInteractionAt int64
	LastPreview       string
}

// Message is one cached confirmed message.
type Message struct {
	RowID           int64
	ConversationKey string
	MsgID           string
	SenderID        string
	ReceiverID      string
	GroupID         string
	Body            string
	MediaURL        string
	MediaType       string
	MediaFilename   string
	MediaSize       int64
	ReplyToID       string
	CreatedAt       int64
}

// SearchResult holds a cached message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}

package backend

import "fmt"

// SendError wraps a failed or rejected send call. The engine reacts by
// removing the optimistic pending entry; no silent retry happens.
type SendError struct {
	ConversationKey string
	Err             error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.ConversationKey, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// MarkReadError wraps a failed mark-as-read call; the unread counter rolls
// back to its prior value.
type MarkReadError struct {
	ConversationKey string
	Err             error
}

func (e *MarkReadError) Error() string {
	return fmt.Sprintf("mark read %s: %v", e.ConversationKey, e.Err)
}

func (e *MarkReadError) Unwrap() error { return e.Err }

// FetchError wraps a failed baseline load; the conversation opens empty
// and the poll fallback retries.
type FetchError struct {
	ConversationKey string
	Err             error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.ConversationKey, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

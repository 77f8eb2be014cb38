package bus

import "time"

// Event is a domain event published on the bus. Kind is a dot-separated
// name whose leading segment is the namespace subscribers filter on.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds published across the daemon. The "remote." namespace carries
// parsed push-channel events from the gateway into the engine; the rest flow
// outward to whatever frontend is attached.
const (
	KindRemoteEvent   = "remote.event"              // payload: model.Event
	KindThreadUpdated = "thread.updated"            // payload: ThreadChange
	KindSendFailed    = "message.send_failed"       // payload: SendFailure
	KindUnreadChanged = "unread.changed"            // payload: map[string]int snapshot
	KindPresenceMoved = "presence.changed"          // payload: PresenceDiff
	KindConnStatus    = "conn.status_changed"       // payload: status.Change
	KindFetchFailed   = "conversation.fetch_failed" // payload: conversation key
)

// ThreadChange identifies which conversation sequence changed and why.
type ThreadChange struct {
	ConversationKey string
	MessageID       string
	Reason          string // appended, confirmed, removed, reaped, cleared, merged, opened, membership, left
}

// SendFailure reports a failed optimistic send. The pending entry has
// already been removed when this event is published.
type SendFailure struct {
	ConversationKey string
	PendingID       string
	Err             error
}

// PresenceDiff lists ids that joined or left the online set in the most
// recent snapshot.
type PresenceDiff struct {
	Joined []string
	Left   []string
}

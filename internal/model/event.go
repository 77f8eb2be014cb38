package model

// EventKind tags the variants of the external-event union.
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventDelete     EventKind = "delete"
	EventPresence   EventKind = "presence"
	EventTyping     EventKind = "typing"
	EventMembership EventKind = "groupMembership"
)

// TypingSignal is an ephemeral typing notification for one peer.
type TypingSignal struct {
	PeerID string `json:"peerId"`
	Typing bool   `json:"typing"`
}

// MembershipChange reports a user joining or leaving a group.
type MembershipChange struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
	Joined  bool   `json:"joined"`
}

// Event is the tagged union carried on the push channel. Exactly one payload
// field is populated according to Kind.
type Event struct {
	Kind       EventKind
	Message    *Message          // EventMessage
	MessageID  string            // EventDelete
	Online     []string          // EventPresence: full snapshot, not a diff
	Typing     *TypingSignal     // EventTyping
	Membership *MembershipChange // EventMembership
}

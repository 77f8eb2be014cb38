package thread

import "github.com/quillchat/quill/internal/model"

// findPendingMatch scans the sequence for a pending entry the incoming
// confirmed message supersedes, returning its index or -1.
//
// A pending entry matches when all hold:
//   - same sender
//   - same destination (receiver for 1:1, group for group chats)
//   - content fingerprint equality: equal text when both are text messages,
//     equal media filename and type when both are media messages
//
// When the incoming message echoes a client correlation id, that id is
// checked first and wins outright. Without one, identical texts sent in
// quick succession by the same sender are indistinguishable; the first
// pending entry in scan order is picked and the other is left for the
// reaper. That ambiguity is inherent to fingerprint matching.
func findPendingMatch(msgs []model.Message, incoming *model.Message) int {
	if incoming.CorrelationID != "" {
		for i := range msgs {
			if msgs[i].Status == model.StatusPending && msgs[i].CorrelationID == incoming.CorrelationID {
				return i
			}
		}
	}

	for i := range msgs {
		p := &msgs[i]
		if p.Status != model.StatusPending {
			continue
		}
		if p.SenderID != incoming.SenderID {
			continue
		}
		if !sameDestination(p, incoming) {
			continue
		}
		if !contentMatches(p, incoming) {
			continue
		}
		return i
	}
	return -1
}

func sameDestination(a, b *model.Message) bool {
	if a.IsGroup() || b.IsGroup() {
		return a.GroupID == b.GroupID && a.GroupID != ""
	}
	return a.ReceiverID == b.ReceiverID
}

func contentMatches(pending, incoming *model.Message) bool {
	if pending.Text != "" && incoming.Text != "" {
		return pending.Text == incoming.Text
	}
	if pending.Media != nil && incoming.Media != nil {
		return pending.Media.Filename == incoming.Media.Filename &&
			pending.Media.Type == incoming.Media.Type
	}
	return false
}

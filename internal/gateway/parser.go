package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/quillchat/quill/internal/model"
)

// ParseFrame decodes one push-channel frame into an event. It rejects
// frames that are structurally broken or missing the fields their type
// requires; callers drop rejected frames and keep reading.
func ParseFrame(data []byte) (model.Event, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Event{}, fmt.Errorf("decode frame: %w", err)
	}

	switch f.Type {
	case "message":
		if f.Message == nil || f.Message.ID == "" || f.Message.SenderID == "" {
			return model.Event{}, fmt.Errorf("message frame missing fields")
		}
		if f.Message.ReceiverID == "" && f.Message.GroupID == "" {
			return model.Event{}, fmt.Errorf("message frame has no destination")
		}
		return model.Event{Kind: model.EventMessage, Message: f.Message.toModel()}, nil

	case "delete":
		if f.MessageID == "" {
			return model.Event{}, fmt.Errorf("delete frame missing messageId")
		}
		return model.Event{Kind: model.EventDelete, MessageID: f.MessageID}, nil

	case "presence":
		// An empty online list is a valid snapshot: everyone went offline.
		online := f.Online
		if online == nil {
			online = []string{}
		}
		return model.Event{Kind: model.EventPresence, Online: online}, nil

	case "typing":
		if f.Typing == nil || f.Typing.PeerID == "" {
			return model.Event{}, fmt.Errorf("typing frame missing peerId")
		}
		return model.Event{Kind: model.EventTyping, Typing: &model.TypingSignal{
			PeerID: f.Typing.PeerID,
			Typing: f.Typing.IsTyping,
		}}, nil

	case "groupMembership":
		if f.Membership == nil || f.Membership.GroupID == "" || f.Membership.UserID == "" {
			return model.Event{}, fmt.Errorf("membership frame missing fields")
		}
		return model.Event{Kind: model.EventMembership, Membership: &model.MembershipChange{
			GroupID: f.Membership.GroupID,
			UserID:  f.Membership.UserID,
			Joined:  f.Membership.Joined,
		}}, nil

	default:
		return model.Event{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
}

package realtime

import (
	"encoding/json"
	"time"
)

// Channels
const (
	ChannelAll    = "all"
	ChannelOrders = "os"
	ChannelChat   = "chat"
)

// Event types
const (
	EventOrderNew    = "os:new"
	EventOrderUpdate = "os:update"
	EventChatMessage = "chat:message"
	EventChatRead    = "chat:read"
	EventConnected   = "connected"
	EventPing        = "ping"
)

type Event struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	UserIDs   []int64         `json:"userIds,omitempty"`
	Payload   json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"timestamp"`

	// unaddressed marks a chat event whose recipient list could not be read.
	unaddressed bool
}

// VisibleTo reports whether a subscriber identified by userID may see the
// event. Chat events addressed to a recipient list are hidden from everyone
// else, including anonymous subscribers. A chat event with an unreadable
// recipient list is visible to nobody.
func (e Event) VisibleTo(userID int64) bool {
	if e.Channel == ChannelChat && e.unaddressed {
		return false
	}
	if e.Channel != ChannelChat || len(e.UserIDs) == 0 {
		return true
	}
	for _, id := range e.UserIDs {
		if id == userID && userID != 0 {
			return true
		}
	}
	return false
}

func matchesChannel(subscribed, channel string) bool {
	return subscribed == ChannelAll || subscribed == channel
}

func normalizePayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return json.RawMessage("{}")
	}
	return raw
}

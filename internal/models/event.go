package models

import "encoding/json"

// EventKind discriminates the kind-tagged union delivered over the
// persistent channel.
type EventKind string

const (
	EventNewMessage      EventKind = "new_message"
	EventMessageUpdated  EventKind = "message_updated"
	EventMessageDeleted  EventKind = "message_deleted"
	EventMessageRead     EventKind = "message_read"
	EventMessagesCleared EventKind = "messages_cleared"
	EventNewPhone        EventKind = "new_phone_message"
	EventPhoneResponded  EventKind = "phone_message_responded"
)

// Event is one frame from the persistent channel. Payload fields are
// populated according to Type; unknown kinds are preserved so callers can
// log and skip them.
type Event struct {
	Type EventKind `json:"type"`

	// CorrelationID echoes the temporary id the originating client sent
	// with its create request, when the server supports it. It keys
	// self-echo suppression.
	CorrelationID string `json:"correlation_id,omitempty"`

	Message *Message      `json:"message,omitempty"` // new_message, message_updated
	Phone   *PhoneMessage `json:"phone_message,omitempty"`
	ID      string        `json:"id,omitempty"`    // message_deleted, message_read
	Count   int           `json:"count,omitempty"` // messages_cleared
}

// DecodeEvent parses one raw channel frame.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

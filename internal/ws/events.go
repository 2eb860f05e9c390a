package ws

import (
	"encoding/json"
	"time"
)

// Live-connection event names. Names follow the wire protocol spoken by
// the web client, so they are camelCase on purpose.
const (
	EventIdentify        = "identify"
	EventNewMessage      = "newMessage"
	EventNewGroupMessage = "newGroupMessage"
	EventMessageIDUpdate = "messageIdUpdate"
	EventMarkAsRead      = "markAsRead"
	EventMessageRead     = "messageRead"
	EventMarkGroupRead   = "markGroupMessageAsRead"
	EventGroupRead       = "groupMessageRead"
	EventTyping          = "typing"
	EventTypingInGroup   = "typingInGroup"
	EventOnlineUsers     = "getOnlineUsers"
	EventError           = "error"
)

// Event is the JSON envelope exchanged over the live connection.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals data into an event envelope. Marshalling failures
// are programming errors; the envelope is sent with empty data so the
// connection survives.
func NewEvent(name string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{Name: name}
	}
	return Event{Name: name, Data: raw}
}

// IdentifyPayload binds a connection to a user in the presence registry.
type IdentifyPayload struct {
	UserID string `json:"user_id"`
}

// DirectMessagePayload carries a direct message over the live path. ID
// holds the durable id when known, otherwise the provisional temp id is
// all the receiver has to key the bubble by.
type DirectMessagePayload struct {
	ID         string    `json:"id,omitempty"`
	TempID     string    `json:"temp_id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// GroupMessagePayload carries a group message over the live path.
type GroupMessagePayload struct {
	ID        string    `json:"id,omitempty"`
	TempID    string    `json:"temp_id,omitempty"`
	SenderID  string    `json:"sender_id"`
	GroupID   string    `json:"group_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// IDUpdatePayload announces a provisional-to-durable id correspondence
// to every participant that may have rendered the provisional copy.
type IDUpdatePayload struct {
	TempID    string `json:"temp_id"`
	MessageID string `json:"message_id"`
}

// MarkReadPayload is the client request to record a read receipt.
type MarkReadPayload struct {
	MessageID string `json:"message_id"`
	SenderID  string `json:"sender_id"`
	ReaderID  string `json:"reader_id"`
	GroupID   string `json:"group_id,omitempty"`
}

// MessageReadPayload notifies the original sender that a direct message
// was read.
type MessageReadPayload struct {
	MessageID string    `json:"message_id"`
	ReaderID  string    `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

// GroupReadPayload notifies a sender that one member read their group
// message.
type GroupReadPayload struct {
	MessageID string `json:"message_id"`
	GroupID   string `json:"group_id"`
	ReaderID  string `json:"reader_id"`
}

// TypingPayload is the ephemeral typing signal, for both directions.
// ToID is a user id for direct conversations and a group id for groups.
type TypingPayload struct {
	FromUserID string `json:"from_user_id"`
	ToID       string `json:"to_id"`
	IsTyping   bool   `json:"is_typing"`
}

// ErrorPayload is sent to the offending connection only; remote peers
// never see internal error detail.
type ErrorPayload struct {
	Message string `json:"message"`
}

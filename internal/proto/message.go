package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello    = "hello"
	InboundTypeSend     = "send"
	InboundTypeMarkRead = "mark_read"
	InboundTypeTyping   = "typing"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNamePresence     = "presence"
	EventNameMessage      = "message"
	EventNameMessagesRead = "messages_read"
	EventNameTyping       = "user_typing"
)

// HelloData establishes the session identity from a credential.
type HelloData struct {
	Token    string `json:"token"`
	Protocol int    `json:"protocol,omitempty"`
}

// SendData is a chat message from the client. The sender is always the
// session identity; there is no recipient field on purpose.
type SendData struct {
	ConversationID int64  `json:"conversation_id"`
	Text           string `json:"text"`
}

// MarkReadData marks a conversation's messages as read.
type MarkReadData struct {
	ConversationID int64 `json:"conversation_id"`
}

// TypingData is a transient typing indicator.
type TypingData struct {
	ConversationID int64 `json:"conversation_id"`
	IsTyping       bool  `json:"is_typing"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// PresencePayload announces a user going online or offline.
type PresencePayload struct {
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

// MessagePayload is a delivered chat message with sender display fields.
type MessagePayload struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagesReadPayload tells a sender their messages were read.
type MessagesReadPayload struct {
	ConversationID int64 `json:"conversation_id"`
	ReaderID       int64 `json:"reader_id"`
}

// TypingPayload relays a typing indicator.
type TypingPayload struct {
	ConversationID int64 `json:"conversation_id"`
	UserID         int64 `json:"user_id"`
	IsTyping       bool  `json:"is_typing"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

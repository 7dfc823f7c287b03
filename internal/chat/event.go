package chat

import "github.com/marketline/chat-server/internal/store"

// EventKind is a notification pushed to connected clients.
type EventKind int

const (
	// EventPresence notifies clients that a user went online or offline.
	EventPresence EventKind = iota
	// EventMessage delivers a persisted chat message.
	EventMessage
	// EventMessagesRead notifies a sender that their messages were read.
	EventMessagesRead
	// EventTyping relays a typing indicator to other participants.
	EventTyping
	// EventError reports a delivery failure to the originating client only.
	EventError
)

// Presence status values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Event describes what happened in the system.
type Event struct {
	Kind           EventKind
	ConversationID int64
	UserID         int64  // subject of presence/typing events
	ReaderID       int64  // for EventMessagesRead
	Status         string // for EventPresence
	IsTyping       bool
	Message        *store.Message // non-nil for EventMessage
	Error          *ChatError     // non-nil for EventError
}

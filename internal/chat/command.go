package chat

// CommandKind describes what a connected client wants to do.
type CommandKind int

const (
	// CommandSend appends a message to a conversation and fans it out.
	CommandSend CommandKind = iota
	// CommandMarkRead marks a conversation's messages as read.
	CommandMarkRead
	// CommandTyping relays a typing indicator.
	CommandTyping
)

// Command represents an action requested by a client. The acting user is
// always the session's authenticated identity, never a field of the command.
type Command struct {
	Kind           CommandKind
	ConversationID int64
	Text           string
	IsTyping       bool
}

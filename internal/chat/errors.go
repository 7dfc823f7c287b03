package chat

import (
	"errors"

	"github.com/marketline/chat-server/internal/store"
)

// Error codes for domain errors as they appear on the wire.
const (
	ErrCodeBadRequest           = "bad_request"
	ErrCodeNotParticipant       = "not_participant"
	ErrCodeConversationNotFound = "conversation_not_found"
	ErrCodeStoreUnavailable     = "store_unavailable"
	ErrCodeUnauthorized         = "unauthorized"
)

// ChatError wraps a code and human-readable message.
type ChatError struct {
	Code    string
	Message string
}

func (e *ChatError) Error() string {
	return e.Message
}

func chatError(code, msg string) *ChatError {
	return &ChatError{Code: code, Message: msg}
}

// fromStoreError maps store sentinels to wire-level error codes.
// Anything unrecognized is reported as a transient store failure.
func fromStoreError(err error) *ChatError {
	switch {
	case errors.Is(err, store.ErrEmptyBody):
		return chatError(ErrCodeBadRequest, "message text is required")
	case errors.Is(err, store.ErrNotParticipant):
		return chatError(ErrCodeNotParticipant, "not a participant of this conversation")
	case errors.Is(err, store.ErrNotFound):
		return chatError(ErrCodeConversationNotFound, "conversation not found")
	default:
		return chatError(ErrCodeStoreUnavailable, "failed to send message")
	}
}

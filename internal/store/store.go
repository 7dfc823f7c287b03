package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by store implementations. Callers match with errors.Is.
var (
	// ErrNotFound is returned when a conversation, message or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotParticipant is returned when a user acts on a conversation they do not belong to.
	ErrNotParticipant = errors.New("not a participant")
	// ErrEmptyBody is returned when a message body trims to the empty string.
	ErrEmptyBody = errors.New("empty message body")
)

// User is reference data owned by the authentication subsystem.
// The conversation layer only ever reads it.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	AvatarURL    string
	CreatedAt    time.Time
}

// Conversation is a pairwise thread between exactly two users.
// PairKey is "dm:{minUserID}:{maxUserID}" and is unique per unordered pair.
type Conversation struct {
	ID             int64
	PairKey        string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// Message is a persisted chat message. Read flips unread->read once and never back.
type Message struct {
	ID             int64
	ConversationID int64
	SenderID       int64
	Body           string
	Read           bool
	CreatedAt      time.Time

	// Display fields resolved from the sender's user row.
	SenderName   string
	SenderAvatar string
}

// ConversationSummary is the retrieval-API view of a conversation for one user.
type ConversationSummary struct {
	Conversation
	OtherParticipant *User
	LastMessage      *Message
	UnreadCount      int
}

// ActivityEntry is a fire-and-forget audit record.
type ActivityEntry struct {
	ID        int64
	UserID    int64
	Action    string
	Detail    string
	Status    string
	CreatedAt time.Time
}

// UserStore handles user persistence for the auth and profile collaborators.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, name, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// ConversationStore handles conversation, participant and message persistence.
type ConversationStore interface {
	// FindOrCreateConversation resolves the conversation for an unordered user pair,
	// creating it together with both participant links atomically when absent.
	// Concurrent callers racing on the same pair all resolve to one row.
	FindOrCreateConversation(ctx context.Context, userA, userB int64) (*Conversation, error)

	// GetConversationByID retrieves a conversation. Returns ErrNotFound if absent.
	GetConversationByID(ctx context.Context, id int64) (*Conversation, error)

	// AppendMessage inserts a message and bumps the conversation's last-activity
	// timestamp in one transaction. Returns ErrEmptyBody, ErrNotFound or
	// ErrNotParticipant without side effects on validation failure. The returned
	// message carries resolved sender display fields.
	AppendMessage(ctx context.Context, conversationID, senderID int64, body string) (*Message, error)

	// MarkRead flips every unread message in the conversation not sent by readerID
	// to read and returns the distinct senders whose messages were affected.
	// Idempotent: a second call returns an empty set.
	MarkRead(ctx context.Context, conversationID, readerID int64) ([]int64, error)

	// IsParticipant reports whether the user belongs to the conversation.
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)

	// ListParticipantsExcept lists conversation participants excluding one user.
	ListParticipantsExcept(ctx context.Context, conversationID, excludedUserID int64) ([]int64, error)

	// ListMessages returns the conversation's messages in chronological order
	// with sender display fields resolved.
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)

	// GetConversationsForUser returns the user's conversations most-recently-active
	// first, each with its last message and unread count.
	GetConversationsForUser(ctx context.Context, userID int64) ([]*ConversationSummary, error)

	// UnreadCount counts unread messages addressed to the user across all
	// conversations they participate in.
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

// ActivityStore persists audit entries.
type ActivityStore interface {
	// InsertActivity records one activity entry.
	InsertActivity(ctx context.Context, entry *ActivityEntry) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConversationStore
	ActivityStore

	// Close closes the underlying database connection.
	Close() error
}

// PairKey builds the deterministic conversation key for an unordered user pair.
func PairKey(userA, userB int64) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("dm:%d:%d", userA, userB)
}

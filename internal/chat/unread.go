package chat

import (
	"context"

	"github.com/marketline/chat-server/internal/store"
)

// UnreadCounter answers "how many unread messages does this user have".
// It holds no state of its own; the count is recomputed from message rows on
// every call, so it is consistent with the store by construction.
type UnreadCounter struct {
	store store.ConversationStore
}

// NewUnreadCounter builds the read model over the conversation store.
func NewUnreadCounter(st store.ConversationStore) *UnreadCounter {
	return &UnreadCounter{store: st}
}

// Count returns the number of unread messages addressed to the user.
func (c *UnreadCounter) Count(ctx context.Context, userID int64) (int, error) {
	return c.store.UnreadCount(ctx, userID)
}

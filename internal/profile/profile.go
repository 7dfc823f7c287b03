// Package profile resolves display names and avatars for outbound payload
// enrichment. User rows are owned by the auth subsystem; this is read-only.
package profile

import (
	"context"
	"sync"

	"github.com/marketline/chat-server/internal/store"
)

// Resolver looks up user display data with a small in-process cache.
// Display fields are treated as immutable reference data, so cached entries
// are never invalidated within a process lifetime.
type Resolver struct {
	store store.UserStore

	mu    sync.RWMutex
	cache map[int64]*store.User
}

// NewResolver builds a resolver over the user store.
func NewResolver(userStore store.UserStore) *Resolver {
	return &Resolver{
		store: userStore,
		cache: make(map[int64]*store.User),
	}
}

// Resolve returns the user's display data. Returns store.ErrNotFound (wrapped)
// when the identity does not exist.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*store.User, error) {
	r.mu.RLock()
	cached, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	user, err := r.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[userID] = user
	r.mu.Unlock()

	return user, nil
}

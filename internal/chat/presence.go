package chat

import "sync"

// Registry is the single source of truth for which users currently hold a
// live connection. At most one connection per user: a reconnect replaces the
// previous handle. Entries are never persisted.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[int64]*Client)}
}

// Register installs the client as its user's live connection, replacing any
// prior handle. The previous handle is returned so the caller can close it.
// The "online" broadcast fires only on the offline-to-online transition;
// replacing a live handle is invisible to third parties.
func (r *Registry) Register(client *Client) *Client {
	r.mu.Lock()
	prev := r.clients[client.UserID]
	r.clients[client.UserID] = client
	var members []*Client
	if prev == nil {
		members = r.snapshotLocked()
	}
	r.mu.Unlock()

	if prev == nil {
		broadcast(members, &Event{
			Kind:   EventPresence,
			UserID: client.UserID,
			Status: StatusOnline,
		})
	}

	return prev
}

// Unregister removes the mapping only if the stored handle is still this
// exact client, so a stale disconnect cannot evict a newer registration.
// On success the remaining members see an "offline" broadcast.
func (r *Registry) Unregister(client *Client) bool {
	r.mu.Lock()
	current, ok := r.clients[client.UserID]
	if !ok || current != client {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, client.UserID)
	members := r.snapshotLocked()
	r.mu.Unlock()

	broadcast(members, &Event{
		Kind:   EventPresence,
		UserID: client.UserID,
		Status: StatusOffline,
	})

	return true
}

// Lookup returns the user's live connection, or nil if the user is offline.
// An absent entry is a normal outcome, not an error.
func (r *Registry) Lookup(userID int64) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[userID]
}

// OnlineUsers returns the IDs of all currently connected users.
func (r *Registry) OnlineUsers() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) snapshotLocked() []*Client {
	members := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		members = append(members, c)
	}
	return members
}

func broadcast(members []*Client, event *Event) {
	for _, c := range members {
		// Drop if slow consumer.
		_ = c.TrySend(event)
	}
}

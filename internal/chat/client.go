package chat

import "sync"

// Client is one live connection as seen by the delivery layer. It references
// the durable user identity but never owns it; the connection dying says
// nothing about the user row.
type Client struct {
	// ConnID distinguishes connections of the same user across reconnects.
	ConnID string
	UserID int64
	Name   string

	events chan *Event

	mu     sync.Mutex
	closed bool
}

// NewClient constructs a client with an initialized event channel.
func NewClient(connID string, userID int64, name string) *Client {
	return &Client{
		ConnID: connID,
		UserID: userID,
		Name:   name,
		events: make(chan *Event, 16),
	}
}

// Events returns the channel the write loop drains. It is closed by Close.
func (c *Client) Events() <-chan *Event {
	return c.events
}

// TrySend queues an event without blocking. Returns false if the client is
// already closed or its buffer is full; slow consumers lose events rather
// than stalling senders.
func (c *Client) TrySend(event *Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Close shuts the event channel exactly once. The write loop drains and exits.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Package activity persists fire-and-forget audit entries. A failure here
// must never block or fail the operation that triggered it.
package activity

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/store"
)

const queueSize = 256

// Logger buffers activity entries and writes them from a single worker
// goroutine. Record never blocks; entries are dropped when the buffer fills
// or when the logger is already closed.
type Logger struct {
	store store.ActivityStore
	log   *zerolog.Logger
	queue chan *store.ActivityEntry
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewLogger starts the write worker. Call Close to drain and stop it.
func NewLogger(st store.ActivityStore, logger *zerolog.Logger) *Logger {
	l := &Logger{
		store: st,
		log:   logger,
		queue: make(chan *store.ActivityEntry, queueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Record queues one entry. Drops silently when the queue is full.
func (l *Logger) Record(userID int64, action, status string) {
	l.RecordDetail(userID, action, "", status)
}

// RecordDetail queues one entry with a free-form detail string.
func (l *Logger) RecordDetail(userID int64, action, detail, status string) {
	entry := &store.ActivityEntry{
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	// Session teardown can outlive the server's shutdown, so a late Record
	// must not hit the closed queue.
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		l.log.Debug().Str("action", action).Msg("activity logger closed, entry dropped")
		return
	}
	select {
	case l.queue <- entry:
	default:
		l.log.Debug().Str("action", action).Msg("activity queue full, entry dropped")
	}
}

// Close stops accepting entries, drains the queue and waits for the worker.
// Safe to call more than once; later Records become no-ops.
func (l *Logger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.store.InsertActivity(ctx, entry); err != nil {
			l.log.Warn().Err(err).Str("action", entry.Action).Msg("failed to persist activity entry")
		}
		cancel()
	}
}

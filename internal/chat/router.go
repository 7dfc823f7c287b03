package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/store"
)

// ActivityRecorder accepts fire-and-forget audit entries. Implementations
// must never block or fail the caller.
type ActivityRecorder interface {
	Record(userID int64, action, status string)
}

// Router dispatches inbound events over the presence registry and the
// conversation store. It keeps no state of its own: persistence decides what
// happened, presence decides who hears about it.
type Router struct {
	store    store.ConversationStore
	presence *Registry
	activity ActivityRecorder
	log      *zerolog.Logger
}

// NewRouter constructs a delivery router. activity may be nil.
func NewRouter(st store.ConversationStore, presence *Registry, activity ActivityRecorder, logger *zerolog.Logger) *Router {
	return &Router{
		store:    st,
		presence: presence,
		activity: activity,
		log:      logger,
	}
}

// Presence exposes the registry for session registration by the transport.
func (r *Router) Presence() *Registry {
	return r.presence
}

// Connect registers the client's connection. If the user already had a live
// connection the old handle is closed, and third parties observe a single
// online transition because the registry replaces rather than duplicates.
func (r *Router) Connect(client *Client) {
	prev := r.presence.Register(client)
	if prev != nil {
		prev.Close()
	}
	r.record(client.UserID, "connect", "success")
	r.log.Debug().Int64("user_id", client.UserID).Str("conn_id", client.ConnID).Msg("client connected")
}

// Disconnect releases the client's presence entry. The offline broadcast
// happens inside Unregister and only when this handle was still current, so
// a stale disconnect racing a newer reconnect stays silent.
func (r *Router) Disconnect(client *Client) {
	if r.presence.Unregister(client) {
		r.record(client.UserID, "disconnect", "success")
		r.log.Debug().Int64("user_id", client.UserID).Str("conn_id", client.ConnID).Msg("client disconnected")
	}
	client.Close()
}

// Dispatch routes one inbound command from a session.
func (r *Router) Dispatch(ctx context.Context, client *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandSend:
		r.Send(ctx, client, cmd.ConversationID, cmd.Text)
	case CommandMarkRead:
		r.MarkRead(ctx, client.UserID, cmd.ConversationID)
	case CommandTyping:
		r.Typing(ctx, client.UserID, cmd.ConversationID, cmd.IsTyping)
	default:
		client.TrySend(&Event{Kind: EventError, Error: chatError(ErrCodeBadRequest, "unknown command")})
	}
}

// Send persists the message, then fans it out: echo to the sender, push to
// the recipient if present. Persistence happens-before fan-out, so a
// delivered message is always fetchable afterwards. Store failures reach the
// originating client only and are never retried here.
func (r *Router) Send(ctx context.Context, client *Client, conversationID int64, text string) {
	msg, err := r.store.AppendMessage(ctx, conversationID, client.UserID, text)
	if err != nil {
		chatErr := fromStoreError(err)
		if chatErr.Code == ErrCodeStoreUnavailable {
			r.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("append message failed")
		}
		r.record(client.UserID, "send_message", "failure")
		client.TrySend(&Event{Kind: EventError, ConversationID: conversationID, Error: chatErr})
		return
	}

	event := &Event{Kind: EventMessage, ConversationID: conversationID, Message: msg}
	client.TrySend(event)
	r.fanOutToParticipants(ctx, conversationID, client.UserID, event)
	r.record(client.UserID, "send_message", "success")
}

// FanOutMessage pushes an already-persisted message to every present
// participant of its conversation, the sender's own connection included.
// Used by the REST send path, which persists before calling here, so the
// same persistence-before-fan-out ordering holds.
func (r *Router) FanOutMessage(ctx context.Context, msg *store.Message) {
	event := &Event{Kind: EventMessage, ConversationID: msg.ConversationID, Message: msg}
	if sender := r.presence.Lookup(msg.SenderID); sender != nil {
		sender.TrySend(event)
	}
	r.fanOutToParticipants(ctx, msg.ConversationID, msg.SenderID, event)
}

// MarkRead flips unread messages and notifies each affected sender that is
// currently present. A no-op mark produces no receipts.
func (r *Router) MarkRead(ctx context.Context, readerID, conversationID int64) {
	senders, err := r.store.MarkRead(ctx, conversationID, readerID)
	if err != nil {
		r.log.Error().Err(err).Int64("conversation_id", conversationID).Msg("mark read failed")
		if reader := r.presence.Lookup(readerID); reader != nil {
			reader.TrySend(&Event{Kind: EventError, ConversationID: conversationID, Error: fromStoreError(err)})
		}
		return
	}

	for _, senderID := range senders {
		if sender := r.presence.Lookup(senderID); sender != nil {
			sender.TrySend(&Event{
				Kind:           EventMessagesRead,
				ConversationID: conversationID,
				ReaderID:       readerID,
			})
		}
	}
}

// Typing relays a typing indicator to every other participant currently
// present. Nothing is persisted.
func (r *Router) Typing(ctx context.Context, userID, conversationID int64, isTyping bool) {
	ok, err := r.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		r.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("typing participant check failed")
		return
	}
	if !ok {
		if client := r.presence.Lookup(userID); client != nil {
			client.TrySend(&Event{
				Kind:           EventError,
				ConversationID: conversationID,
				Error:          chatError(ErrCodeNotParticipant, "not a participant of this conversation"),
			})
		}
		return
	}

	r.fanOutToParticipants(ctx, conversationID, userID, &Event{
		Kind:           EventTyping,
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
}

func (r *Router) fanOutToParticipants(ctx context.Context, conversationID, excludedUserID int64, event *Event) {
	participants, err := r.store.ListParticipantsExcept(ctx, conversationID, excludedUserID)
	if err != nil {
		r.log.Warn().Err(err).Int64("conversation_id", conversationID).Msg("list participants failed")
		return
	}

	for _, userID := range participants {
		if client := r.presence.Lookup(userID); client != nil {
			client.TrySend(event)
		}
	}
}

func (r *Router) record(userID int64, action, status string) {
	if r.activity != nil {
		r.activity.Record(userID, action, status)
	}
}

package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/auth"
	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/profile"
	"github.com/marketline/chat-server/internal/store"
)

// APIHandlers provides HTTP handlers for the REST retrieval endpoints. They
// share the conversation store with the real-time path and feed read receipts
// back through the delivery router.
type APIHandlers struct {
	authService *auth.Service
	store       store.ConversationStore
	router      *chat.Router
	unread      *chat.UnreadCounter
	profiles    *profile.Resolver
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(
	authService *auth.Service,
	st store.ConversationStore,
	router *chat.Router,
	unread *chat.UnreadCounter,
	profiles *profile.Resolver,
	logger *zerolog.Logger,
) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		store:       st,
		router:      router,
		unread:      unread,
		profiles:    profiles,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartConversationRequest opens (or resolves) a conversation with a user.
type StartConversationRequest struct {
	RecipientID    int64  `json:"recipient_id" binding:"required"`
	InitialMessage string `json:"initial_message,omitempty"`
}

// SendMessageRequest posts a message over REST.
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// ParticipantView is a conversation participant in API responses.
type ParticipantView struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// MessageView is a message in API responses.
type MessageView struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar,omitempty"`
	Text           string    `json:"text"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationView is a conversation summary in API responses.
type ConversationView struct {
	ID             int64            `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
	Participant    *ParticipantView `json:"participant,omitempty"`
	LastMessage    *MessageView     `json:"last_message,omitempty"`
	UnreadCount    int              `json:"unread_count"`
}

// Register handles user registration.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
			return
		}
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("email", req.Email).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// ListConversations returns the user's conversations, most recently active
// first, with last message and unread count.
// GET /api/conversations
func (h *APIHandlers) ListConversations(c *gin.Context) {
	uid := userID(c)

	summaries, err := h.store.GetConversationsForUser(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list conversations")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	views := make([]ConversationView, 0, len(summaries))
	for _, sum := range summaries {
		views = append(views, conversationView(sum))
	}

	c.JSON(http.StatusOK, gin.H{"count": len(views), "conversations": views})
}

// StartConversation resolves or creates the pairwise conversation with the
// recipient, optionally sending an initial message through the router.
// POST /api/conversations
func (h *APIHandlers) StartConversation(c *gin.Context) {
	uid := userID(c)

	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.RecipientID == uid {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot start a conversation with yourself"})
		return
	}

	if _, err := h.profiles.Resolve(c.Request.Context(), req.RecipientID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "recipient not found"})
			return
		}
		h.log.Error().Err(err).Int64("recipient_id", req.RecipientID).Msg("failed to resolve recipient")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	conv, err := h.store.FindOrCreateConversation(c.Request.Context(), uid, req.RecipientID)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to start conversation")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if text := req.InitialMessage; text != "" {
		msg, err := h.store.AppendMessage(c.Request.Context(), conv.ID, uid, text)
		if err != nil {
			// The conversation exists either way; the client must learn the
			// message itself was not recorded.
			if errors.Is(err, store.ErrEmptyBody) {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "initial message text must not be blank"})
				return
			}
			h.log.Error().Err(err).Int64("conversation_id", conv.ID).Msg("failed to append initial message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		h.router.FanOutMessage(c.Request.Context(), msg)
	}

	c.JSON(http.StatusCreated, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns a conversation's messages and marks them read, which
// fans read receipts out to any present senders.
// GET /api/conversations/:id/messages
func (h *APIHandlers) GetMessages(c *gin.Context) {
	uid := userID(c)

	convID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	ok, err := h.store.IsParticipant(c.Request.Context(), convID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("conversation_id", convID).Msg("participant check failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to access this conversation"})
		return
	}

	messages, err := h.store.ListMessages(c.Request.Context(), convID)
	if err != nil {
		h.log.Error().Err(err).Int64("conversation_id", convID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	// Opening the conversation reads it; receipts go out through the router.
	h.router.MarkRead(c.Request.Context(), uid, convID)

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, messageView(msg))
	}

	c.JSON(http.StatusOK, gin.H{"count": len(views), "messages": views})
}

// SendMessage posts a message to a conversation over REST. Delivery to
// present participants goes through the same router path as the socket.
// POST /api/conversations/:id/messages
func (h *APIHandlers) SendMessage(c *gin.Context) {
	uid := userID(c)

	convID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid conversation id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.store.AppendMessage(c.Request.Context(), convID, uid, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyBody):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message text is required"})
		case errors.Is(err, store.ErrNotParticipant):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "not authorized to send messages in this conversation"})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "conversation not found"})
		default:
			h.log.Error().Err(err).Int64("conversation_id", convID).Msg("failed to send message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.router.FanOutMessage(c.Request.Context(), msg)

	c.JSON(http.StatusCreated, gin.H{"message": messageView(msg)})
}

// OnlineUsers returns the ids of all currently connected users.
// GET /api/users/online
func (h *APIHandlers) OnlineUsers(c *gin.Context) {
	ids := h.router.Presence().OnlineUsers()
	c.JSON(http.StatusOK, gin.H{"count": len(ids), "user_ids": ids})
}

// UnreadCount returns how many unread messages the user has.
// GET /api/messages/unread
func (h *APIHandlers) UnreadCount(c *gin.Context) {
	uid := userID(c)

	count, err := h.unread.Count(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to count unread messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func conversationView(sum *store.ConversationSummary) ConversationView {
	view := ConversationView{
		ID:             sum.ID,
		CreatedAt:      sum.CreatedAt,
		LastActivityAt: sum.LastActivityAt,
		UnreadCount:    sum.UnreadCount,
	}
	if sum.OtherParticipant != nil {
		view.Participant = &ParticipantView{
			ID:        sum.OtherParticipant.ID,
			Name:      sum.OtherParticipant.Name,
			AvatarURL: sum.OtherParticipant.AvatarURL,
		}
	}
	if sum.LastMessage != nil {
		mv := messageView(sum.LastMessage)
		view.LastMessage = &mv
	}
	return view
}

func messageView(msg *store.Message) MessageView {
	return MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		SenderAvatar:   msg.SenderAvatar,
		Text:           msg.Body,
		Read:           msg.Read,
		CreatedAt:      msg.CreatedAt,
	}
}

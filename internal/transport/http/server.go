package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/activity"
	"github.com/marketline/chat-server/internal/auth"
	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/config"
	"github.com/marketline/chat-server/internal/profile"
	"github.com/marketline/chat-server/internal/store"
)

// NewServer builds the HTTP server: REST retrieval API plus the WebSocket
// endpoint for the real-time path.
func NewServer(
	cfg config.Config,
	router *chat.Router,
	authService *auth.Service,
	st store.ConversationStore,
	unread *chat.UnreadCounter,
	profiles *profile.Resolver,
	recorder *activity.Logger,
	logger *zerolog.Logger,
) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	handlers := NewAPIHandlers(authService, st, router, unread, profiles, logger)

	engine.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	api := engine.Group("/api")
	api.POST("/register", handlers.Register)
	api.POST("/login", handlers.Login)

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService, logger))
	protected.Use(ActivityMiddleware(recorder))
	protected.GET("/conversations", handlers.ListConversations)
	protected.POST("/conversations", handlers.StartConversation)
	protected.GET("/conversations/:id/messages", handlers.GetMessages)
	protected.POST("/conversations/:id/messages", handlers.SendMessage)
	protected.GET("/messages/unread", handlers.UnreadCount)
	protected.GET("/users/online", handlers.OnlineUsers)

	engine.GET("/ws", gin.WrapH(NewWSHandler(router, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

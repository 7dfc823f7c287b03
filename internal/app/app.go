package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/activity"
	"github.com/marketline/chat-server/internal/auth"
	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/config"
	"github.com/marketline/chat-server/internal/profile"
	"github.com/marketline/chat-server/internal/store"
	"github.com/marketline/chat-server/internal/store/sqlite"
	transporthttp "github.com/marketline/chat-server/internal/transport/http"
)

// App wires together the store, the delivery core and the transport layer.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	activity        *activity.Logger
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	recorder := activity.NewLogger(st, logger)
	presence := chat.NewRegistry()
	router := chat.NewRouter(st, presence, recorder, logger)
	unread := chat.NewUnreadCounter(st)
	profiles := profile.NewResolver(st)

	server := transporthttp.NewServer(*cfg, router, authService, st, unread, profiles, recorder, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		activity:        recorder,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup drains the activity worker and closes the database.
func (a *App) cleanup() {
	if a.activity != nil {
		a.activity.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

package http

import (
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/activity"
	"github.com/marketline/chat-server/internal/auth"
	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/config"
	"github.com/marketline/chat-server/internal/profile"
	"github.com/marketline/chat-server/internal/store/sqlite"
)

// testEnv bundles everything handler tests need around one in-memory store.
type testEnv struct {
	server      *stdhttp.Server
	store       *sqlite.SQLiteStore
	authService *auth.Service
	router      *chat.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	disabledLogger := zerolog.Nop()
	recorder := activity.NewLogger(st, &disabledLogger)
	t.Cleanup(recorder.Close)

	router := chat.NewRouter(st, chat.NewRegistry(), recorder, &disabledLogger)
	unread := chat.NewUnreadCounter(st)
	profiles := profile.NewResolver(st)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	server := NewServer(cfg, router, authService, st, unread, profiles, recorder, &disabledLogger)

	return &testEnv{
		server:      server,
		store:       st,
		authService: authService,
		router:      router,
	}
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marketline/chat-server/internal/auth"
	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/proto"
)

const helloTimeout = 10 * time.Second

// WSHandler upgrades HTTP connections and bridges them to chat.Client.
type WSHandler struct {
	router      *chat.Router
	authService *auth.Service
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(router *chat.Router, authService *auth.Service, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{router: router, authService: authService, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// Identity is established once, from the hello credential, before any
	// presence registration or command handling.
	identity, err := h.awaitHello(ctx, conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws hello failed")
		conn.Close(websocket.StatusPolicyViolation, "unauthenticated")
		return
	}

	client := chat.NewClient(uuid.NewString(), identity.UserID, identity.Name)
	h.router.Connect(client)
	defer h.router.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Int64("user_id", client.UserID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// awaitHello reads the first frame, which must be a hello carrying a valid
// credential, and resolves it through the authentication collaborator.
func (h *WSHandler) awaitHello(ctx context.Context, conn *websocket.Conn) (*auth.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, err
	}
	if inbound.Type != proto.InboundTypeHello {
		return nil, errors.New("first frame must be hello")
	}

	var hello proto.HelloData
	if err := json.Unmarshal(inbound.Data, &hello); err != nil {
		return nil, err
	}

	identity, err := h.authService.Authenticate(ctx, hello.Token)
	if err != nil {
		writeErr := wsjson.Write(ctx, conn, proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: chat.ErrCodeUnauthorized, Msg: "invalid token"},
		})
		if writeErr != nil {
			return nil, writeErr
		}
		return nil, err
	}

	return identity, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *chat.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.log.Warn().Err(err).Int64("user_id", client.UserID).Msg("failed to decode inbound frame")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			h.router.Dispatch(ctx, client, cmd)
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *chat.Client) error {
	for {
		select {
		case event, ok := <-client.Events():
			if !ok {
				// Channel closed: the registration was replaced by a newer
				// connection for the same user.
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Debug().Err(err).Int64("user_id", client.UserID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

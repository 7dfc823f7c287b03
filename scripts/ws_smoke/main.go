package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/marketline/chat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT from /api/login")
	conversation := flag.Int64("conversation", 0, "conversation id to send into")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required")
	}
	if *conversation == 0 {
		return fmt.Errorf("-conversation is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	mustSend := func(frameType string, payload any) error {
		raw, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return fmt.Errorf("marshal %s: %w", frameType, marshalErr)
		}
		if writeErr := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: raw}); writeErr != nil {
			return fmt.Errorf("send %s: %w", frameType, writeErr)
		}
		return nil
	}

	if err := mustSend(proto.InboundTypeHello, proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := mustSend(proto.InboundTypeSend, proto.SendData{ConversationID: *conversation, Text: *text}); err != nil {
		return err
	}

	// Loop until the sent message echoes back to us.
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Error != nil {
			return fmt.Errorf("server error: %s: %s", outbound.Error.Code, outbound.Error.Msg)
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			return fmt.Errorf("marshal outbound data: %w", err)
		}

		switch outbound.Event {
		case proto.EventNameMessage:
			var evt proto.MessagePayload
			if unmarshalErr := json.Unmarshal(raw, &evt); unmarshalErr != nil {
				fmt.Printf("Raw data: %s\n", string(raw))
				return fmt.Errorf("unmarshal message: %w", unmarshalErr)
			}
			fmt.Printf("Message: conversation=%d sender=%s text=%q id=%d\n", evt.ConversationID, evt.SenderName, evt.Text, evt.ID)
			return nil
		case proto.EventNamePresence:
			var evt proto.PresencePayload
			if err := json.Unmarshal(raw, &evt); err == nil {
				fmt.Printf("Presence: user=%d status=%s\n", evt.UserID, evt.Status)
			}
		default:
			// keep looping for the message echo
		}
	}
}

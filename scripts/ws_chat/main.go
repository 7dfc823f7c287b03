package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/marketline/chat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "JWT from /api/login")
	conversation := flag.Int64("conversation", 0, "conversation id to chat in")
	flag.Parse()

	if *token == "" {
		return errors.New("-token is required (log in over /api/login first)")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	helloPayload, err := json.Marshal(proto.HelloData{Token: *token, Protocol: proto.ProtocolVersion})
	if err != nil {
		return fmt.Errorf("marshal hello: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeHello, Data: helloPayload}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}

	fmt.Printf("Connected to %s\n", *addr)
	if *conversation != 0 {
		fmt.Printf("Messages go to conversation %d. Prefix with /conv <id> to switch.\n", *conversation)
	} else {
		fmt.Println("Set a conversation first: /conv <id>")
	}
	fmt.Println("Commands: /conv <id>, /read. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, *conversation)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			fmt.Printf("!! %s: %s\n", outbound.Error.Code, outbound.Error.Msg)
			continue
		}

		switch outbound.Event {
		case proto.EventNameMessage:
			var evt proto.MessagePayload
			if err := reparse(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			fmt.Printf("[conv %d] %s: %s\n", evt.ConversationID, evt.SenderName, evt.Text)
		case proto.EventNamePresence:
			var evt proto.PresencePayload
			if err := reparse(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal presence: %v", err)
				continue
			}
			fmt.Printf("** user %d is %s\n", evt.UserID, evt.Status)
		case proto.EventNameMessagesRead:
			var evt proto.MessagesReadPayload
			if err := reparse(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal messages_read: %v", err)
				continue
			}
			fmt.Printf("** user %d read conversation %d\n", evt.ReaderID, evt.ConversationID)
		case proto.EventNameTyping:
			var evt proto.TypingPayload
			if err := reparse(outbound.Data, &evt); err != nil {
				log.Printf("unmarshal user_typing: %v", err)
				continue
			}
			if evt.IsTyping {
				fmt.Printf("** user %d is typing in conversation %d\n", evt.UserID, evt.ConversationID)
			}
		default:
			fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
		}
	}
}

// reparse round-trips the already-decoded payload into a typed struct.
func reparse(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func writeLoop(ctx context.Context, conn *websocket.Conn, conversation int64) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if rest, found := strings.CutPrefix(text, "/conv "); found {
				id, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64)
				if err != nil {
					fmt.Printf("bad conversation id: %v\n", err)
					continue
				}
				conversation = id
				fmt.Printf("Now chatting in conversation %d\n", conversation)
				continue
			}

			if conversation == 0 {
				fmt.Println("No conversation set. Use /conv <id> first.")
				continue
			}

			if text == "/read" {
				payload, err := json.Marshal(proto.MarkReadData{ConversationID: conversation})
				if err != nil {
					log.Printf("marshal mark_read: %v", err)
					return
				}
				if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMarkRead, Data: payload}); err != nil {
					log.Printf("send error: %v", err)
					return
				}
				continue
			}

			payload, err := json.Marshal(proto.SendData{ConversationID: conversation, Text: text})
			if err != nil {
				log.Printf("marshal send: %v", err)
				return
			}
			if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeSend, Data: payload}); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}

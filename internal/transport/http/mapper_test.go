package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/proto"
	"github.com/marketline/chat-server/internal/store"
)

func inbound(t *testing.T, typ string, data any) proto.Inbound {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal inbound data: %v", err)
	}
	return proto.Inbound{Type: typ, Data: raw}
}

func TestInboundToCommand_Send(t *testing.T) {
	cmd, protoErr, err := inboundToCommand(inbound(t, proto.InboundTypeSend, proto.SendData{
		ConversationID: 7,
		Text:           "hello",
	}))
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected errors: %v %v", err, protoErr)
	}
	if cmd.Kind != chat.CommandSend || cmd.ConversationID != 7 || cmd.Text != "hello" {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestInboundToCommand_RequiresConversationID(t *testing.T) {
	for _, typ := range []string{proto.InboundTypeSend, proto.InboundTypeMarkRead, proto.InboundTypeTyping} {
		_, protoErr, err := inboundToCommand(proto.Inbound{Type: typ, Data: json.RawMessage(`{}`)})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", typ, err)
		}
		if protoErr == nil || protoErr.Code != chat.ErrCodeBadRequest {
			t.Fatalf("%s: expected bad_request, got %+v", typ, protoErr)
		}
	}
}

func TestInboundToCommand_Typing(t *testing.T) {
	cmd, protoErr, err := inboundToCommand(inbound(t, proto.InboundTypeTyping, proto.TypingData{
		ConversationID: 3,
		IsTyping:       true,
	}))
	if err != nil || protoErr != nil {
		t.Fatalf("unexpected errors: %v %v", err, protoErr)
	}
	if cmd.Kind != chat.CommandTyping || !cmd.IsTyping {
		t.Fatalf("unexpected command: %+v", cmd)
	}
}

func TestInboundToCommand_UnknownType(t *testing.T) {
	_, protoErr, err := inboundToCommand(proto.Inbound{Type: "dance", Data: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if protoErr == nil || protoErr.Code != "invalid_message" {
		t.Fatalf("expected invalid_message, got %+v", protoErr)
	}
}

func TestOutboundFromEvent_Message(t *testing.T) {
	created := time.Now()
	out := outboundFromEvent(&chat.Event{
		Kind:           chat.EventMessage,
		ConversationID: 5,
		Message: &store.Message{
			ID:             11,
			ConversationID: 5,
			SenderID:       1,
			SenderName:     "alice",
			Body:           "hi",
			CreatedAt:      created,
		},
	})

	if out.Type != proto.OutboundTypeEvent || out.Event != proto.EventNameMessage {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	payload, ok := out.Data.(proto.MessagePayload)
	if !ok {
		t.Fatalf("unexpected payload type: %T", out.Data)
	}
	if payload.ID != 11 || payload.Text != "hi" || payload.SenderName != "alice" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestOutboundFromEvent_Error(t *testing.T) {
	out := outboundFromEvent(&chat.Event{
		Kind:  chat.EventError,
		Error: &chat.ChatError{Code: chat.ErrCodeNotParticipant, Message: "nope"},
	})

	if out.Type != proto.OutboundTypeError || out.Error == nil {
		t.Fatalf("unexpected envelope: %+v", out)
	}
	if out.Error.Code != chat.ErrCodeNotParticipant || out.Error.Msg != "nope" {
		t.Fatalf("unexpected error payload: %+v", out.Error)
	}
}

func TestOutboundFromEvent_Presence(t *testing.T) {
	out := outboundFromEvent(&chat.Event{
		Kind:   chat.EventPresence,
		UserID: 4,
		Status: chat.StatusOnline,
	})

	payload, ok := out.Data.(proto.PresencePayload)
	if !ok {
		t.Fatalf("unexpected payload type: %T", out.Data)
	}
	if payload.UserID != 4 || payload.Status != "online" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

package http

import (
	"encoding/json"

	"github.com/marketline/chat-server/internal/chat"
	"github.com/marketline/chat-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*chat.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeSend:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		if send.ConversationID == 0 {
			return nil, &proto.Error{Code: chat.ErrCodeBadRequest, Msg: "conversation_id is required"}, nil
		}
		return &chat.Command{
			Kind:           chat.CommandSend,
			ConversationID: send.ConversationID,
			Text:           send.Text,
		}, nil, nil
	case proto.InboundTypeMarkRead:
		var mark proto.MarkReadData
		if err := json.Unmarshal(inbound.Data, &mark); err != nil {
			return nil, nil, err
		}
		if mark.ConversationID == 0 {
			return nil, &proto.Error{Code: chat.ErrCodeBadRequest, Msg: "conversation_id is required"}, nil
		}
		return &chat.Command{
			Kind:           chat.CommandMarkRead,
			ConversationID: mark.ConversationID,
		}, nil, nil
	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := json.Unmarshal(inbound.Data, &typing); err != nil {
			return nil, nil, err
		}
		if typing.ConversationID == 0 {
			return nil, &proto.Error{Code: chat.ErrCodeBadRequest, Msg: "conversation_id is required"}, nil
		}
		return &chat.Command{
			Kind:           chat.CommandTyping,
			ConversationID: typing.ConversationID,
			IsTyping:       typing.IsTyping,
		}, nil, nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func outboundFromEvent(event *chat.Event) proto.Outbound {
	switch event.Kind {
	case chat.EventPresence:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNamePresence,
			Data: proto.PresencePayload{
				UserID: event.UserID,
				Status: event.Status,
			},
		}
	case chat.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessage,
			Data: proto.MessagePayload{
				ID:             event.Message.ID,
				ConversationID: event.Message.ConversationID,
				SenderID:       event.Message.SenderID,
				SenderName:     event.Message.SenderName,
				SenderAvatar:   event.Message.SenderAvatar,
				Text:           event.Message.Body,
				CreatedAt:      event.Message.CreatedAt,
			},
		}
	case chat.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessagesRead,
			Data: proto.MessagesReadPayload{
				ConversationID: event.ConversationID,
				ReaderID:       event.ReaderID,
			},
		}
	case chat.EventTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameTyping,
			Data: proto.TypingPayload{
				ConversationID: event.ConversationID,
				UserID:         event.UserID,
				IsTyping:       event.IsTyping,
			},
		}
	case chat.EventError:
		return proto.Outbound{
			Type: proto.OutboundTypeError,
			Error: &proto.Error{
				Code: event.Error.Code,
				Msg:  event.Error.Message,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

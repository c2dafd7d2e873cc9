package http

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/proto"
)

// inboundSend maps a send frame to the message service call. Clients carry
// the room in both the destination and the body; the payload's roomId wins
// when present and the destination's room is the fallback.
func inboundSend(inbound proto.Inbound) (string, core.SendRequest, *proto.Error) {
	var data proto.SendData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return "", core.SendRequest{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed send payload"}
	}

	roomID := strings.TrimSpace(data.RoomID)
	if roomID == "" {
		destRoom, ok := proto.ParseSendDestination(inbound.Destination)
		if !ok {
			return "", core.SendRequest{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}
		}
		roomID = destRoom
	}

	return roomID, core.SendRequest{
		Sender:    data.Sender,
		Content:   data.Content,
		Timestamp: parseMessageTime(data.MessageTime),
	}, nil
}

// parseMessageTime parses the client-supplied timestamp, returning the zero
// time when absent or unparseable so the service substitutes receive time.
func parseMessageTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func eventFrame(roomID string, msg core.Message) proto.Outbound {
	return proto.Outbound{
		Type:        proto.OutboundTypeEvent,
		Destination: proto.UpdatesDestination(roomID),
		Data: proto.MessageData{
			Sender:    msg.Sender,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.Format(time.RFC3339Nano),
		},
	}
}

func errorFrame(code, msg string) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	}
}

func domainErrorFrame(err error) proto.Outbound {
	var domErr *core.DomainError
	if errors.As(err, &domErr) {
		return errorFrame(domErr.Code, domErr.Message)
	}
	return errorFrame("internal", "internal server error")
}

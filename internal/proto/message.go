// Package proto defines the frames exchanged with chat clients over the
// websocket gateway. Destinations tie frames to rooms: clients send to
// "send-message-to-room/{roomId}" and receive on "room-updates/{roomId}".
package proto

import (
	"encoding/json"
	"strings"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type        string          `json:"type"`
	Destination string          `json:"destination"`
	Data        json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeSend        = "send"
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

const (
	sendDestinationPrefix    = "send-message-to-room/"
	updatesDestinationPrefix = "room-updates/"
)

// SendData carries an incoming chat message. MessageTime is whatever the
// sender claims; it is persisted as-is, not verified or overridden.
type SendData struct {
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	RoomID      string `json:"roomId"`
	MessageTime string `json:"messageTime,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
	Data        any    `json:"data,omitempty"`
	Error       *Error `json:"error,omitempty"`
}

// MessageData is the persisted message as delivered to subscribers and
// returned from the REST API.
type MessageData struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// SendDestination builds the destination a client sends room messages to.
func SendDestination(roomID string) string {
	return sendDestinationPrefix + roomID
}

// UpdatesDestination builds the topic destination a client subscribes to
// for a room's updates.
func UpdatesDestination(roomID string) string {
	return updatesDestinationPrefix + roomID
}

// ParseSendDestination extracts the room identifier from a send destination.
func ParseSendDestination(dest string) (string, bool) {
	return parseDestination(dest, sendDestinationPrefix)
}

// ParseUpdatesDestination extracts the room identifier from an updates
// destination.
func ParseUpdatesDestination(dest string) (string, bool) {
	return parseDestination(dest, updatesDestinationPrefix)
}

func parseDestination(dest, prefix string) (string, bool) {
	roomID, ok := strings.CutPrefix(dest, prefix)
	if !ok || roomID == "" {
		return "", false
	}
	return roomID, true
}

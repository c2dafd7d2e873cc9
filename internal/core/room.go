package core

import "time"

// Room is a named chat channel with a persistent message history.
// ID is assigned by the store and never set by callers. RoomID is the
// caller-chosen identifier; it is unique, immutable after creation, and
// doubles as the broker topic name for the room's updates.
type Room struct {
	ID        string
	RoomID    string
	Messages  []Message
	CreatedAt time.Time
}

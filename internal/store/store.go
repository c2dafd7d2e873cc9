package store

import (
	"context"
	"errors"
	"time"
)

// Room is a persisted chat room record.
type Room struct {
	ID        string // storage-assigned, opaque to callers
	RoomID    string // caller-chosen identifier, unique
	CreatedAt time.Time
}

// Message is a persisted chat message. Seq is the position within the
// owning room's history, starting at 1; it is assigned by the store on
// append and defines arrival order.
type Message struct {
	RoomID    string
	Seq       int64
	Sender    string
	Content   string
	Timestamp time.Time
}

// Sentinel errors distinguishing domain misses from transient storage
// failures. Anything else returned by a RoomStore is treated as retryable
// by the calling service.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

// RoomStore handles room and message persistence. It is the single source
// of truth for room history and may be called from many goroutines.
type RoomStore interface {
	// CreateRoom persists a new room with an empty history. Returns
	// ErrRoomExists if the room identifier is already taken.
	CreateRoom(ctx context.Context, roomID string) (*Room, error)

	// GetRoomByRoomID retrieves a room by its caller-chosen identifier.
	GetRoomByRoomID(ctx context.Context, roomID string) (*Room, error)

	// ListRooms lists all rooms in creation order.
	ListRooms(ctx context.Context) ([]*Room, error)

	// AppendMessage appends a message to the room's history and returns the
	// stored record with its assigned sequence number. The append is atomic
	// with respect to concurrent appends to the same room. Returns
	// ErrRoomNotFound if the room does not exist; the history is then
	// unchanged.
	AppendMessage(ctx context.Context, roomID string, msg Message) (*Message, error)

	// ListMessages returns the room's full history in append order.
	ListMessages(ctx context.Context, roomID string) ([]Message, error)

	// Close closes the underlying database connection.
	Close() error
}

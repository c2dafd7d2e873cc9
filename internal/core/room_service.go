package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

// RoomService enforces room identifier uniqueness and room lifecycle.
// Rooms are created once, read many times, and never updated or deleted.
type RoomService struct {
	store        store.RoomStore
	log          *zerolog.Logger
	storeTimeout time.Duration
}

// NewRoomService constructs a room service backed by the given store.
// storeTimeout bounds each store call; zero disables the bound.
func NewRoomService(st store.RoomStore, logger *zerolog.Logger, storeTimeout time.Duration) *RoomService {
	return &RoomService{
		store:        st,
		log:          logger,
		storeTimeout: storeTimeout,
	}
}

// CreateRoom creates a room under the trimmed identifier. Returns
// ErrRoomExists if the identifier is already taken and ErrBadRequest if it
// is empty after trimming.
func (s *RoomService) CreateRoom(ctx context.Context, roomID string) (*Room, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, badRequest("room id is required")
	}

	var rec *store.Room
	err := withStoreRetry(ctx, s.log, s.storeTimeout, "create room", func(ctx context.Context) error {
		var err error
		rec, err = s.store.CreateRoom(ctx, roomID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomExists) {
			return nil, ErrRoomExists
		}
		return nil, err
	}

	s.log.Info().Str("room_id", rec.RoomID).Msg("room created")
	return &Room{
		ID:        rec.ID,
		RoomID:    rec.RoomID,
		Messages:  []Message{},
		CreatedAt: rec.CreatedAt,
	}, nil
}

// GetRoom looks up a room by exact identifier match and returns it with its
// full message history. Returns ErrRoomNotFound if absent.
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var rec *store.Room
	err := withStoreRetry(ctx, s.log, s.storeTimeout, "get room", func(ctx context.Context) error {
		var err error
		rec, err = s.store.GetRoomByRoomID(ctx, roomID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	messages, err := s.ListMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return &Room{
		ID:        rec.ID,
		RoomID:    rec.RoomID,
		Messages:  messages,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// ListRooms returns all rooms in creation order, without histories.
func (s *RoomService) ListRooms(ctx context.Context) ([]*Room, error) {
	var recs []*store.Room
	err := withStoreRetry(ctx, s.log, s.storeTimeout, "list rooms", func(ctx context.Context) error {
		var err error
		recs, err = s.store.ListRooms(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rooms := make([]*Room, 0, len(recs))
	for _, rec := range recs {
		rooms = append(rooms, &Room{
			ID:        rec.ID,
			RoomID:    rec.RoomID,
			CreatedAt: rec.CreatedAt,
		})
	}
	return rooms, nil
}

// ListMessages returns the room's full history in arrival order. Returns
// ErrRoomNotFound if the room does not exist.
func (s *RoomService) ListMessages(ctx context.Context, roomID string) ([]Message, error) {
	var recs []store.Message
	err := withStoreRetry(ctx, s.log, s.storeTimeout, "list messages", func(ctx context.Context) error {
		var err error
		recs, err = s.store.ListMessages(ctx, roomID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	messages := make([]Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, Message{
			Sender:    rec.Sender,
			Content:   rec.Content,
			Timestamp: rec.Timestamp,
		})
	}
	return messages, nil
}

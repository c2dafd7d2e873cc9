package core_test

import (
	"context"
	"errors"
	"time"

	"github.com/roomchat/roomchat-server/internal/store"
)

// flakyStore fails the first N calls with a transient error, or always with
// a fixed domain error, to exercise the services' retry policy.
type flakyStore struct {
	failures  int
	domainErr error
	calls     int
}

var errTransient = errors.New("disk on fire")

func (f *flakyStore) fail() error {
	f.calls++
	if f.domainErr != nil {
		return f.domainErr
	}
	if f.calls <= f.failures {
		return errTransient
	}
	return nil
}

func (f *flakyStore) CreateRoom(_ context.Context, roomID string) (*store.Room, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &store.Room{ID: "fake-id", RoomID: roomID, CreatedAt: time.Now()}, nil
}

func (f *flakyStore) GetRoomByRoomID(_ context.Context, roomID string) (*store.Room, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &store.Room{ID: "fake-id", RoomID: roomID, CreatedAt: time.Now()}, nil
}

func (f *flakyStore) ListRooms(context.Context) ([]*store.Room, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *flakyStore) AppendMessage(_ context.Context, roomID string, msg store.Message) (*store.Message, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	rec := msg
	rec.RoomID = roomID
	rec.Seq = int64(f.calls)
	return &rec, nil
}

func (f *flakyStore) ListMessages(context.Context, string) ([]store.Message, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *flakyStore) Close() error { return nil }

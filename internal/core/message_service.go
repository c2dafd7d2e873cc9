package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/store"
)

// Publisher fans a persisted message out to the subscribers of a topic.
// The topic name is always the room identifier; see the broker package.
type Publisher interface {
	Publish(topic string, msg Message)
}

// MessageService validates an incoming message request, appends it to the
// target room's history, and publishes the persisted message to the room's
// topic. Persistence happens before publication, so every delivered message
// is durable.
type MessageService struct {
	store        store.RoomStore
	pub          Publisher
	log          *zerolog.Logger
	storeTimeout time.Duration
}

// NewMessageService constructs a message service. pub may be nil, in which
// case messages are persisted but not fanned out.
func NewMessageService(st store.RoomStore, pub Publisher, logger *zerolog.Logger, storeTimeout time.Duration) *MessageService {
	return &MessageService{
		store:        st,
		pub:          pub,
		log:          logger,
		storeTimeout: storeTimeout,
	}
}

// SendMessage appends a message built from the request fields to the room's
// history and returns the persisted message. The room identifier is trimmed
// before lookup. Returns ErrRoomNotFound if the room does not exist; the
// history is then unchanged. The sender must be non-empty; content is kept
// exactly as supplied, empty included.
func (s *MessageService) SendMessage(ctx context.Context, roomID string, req SendRequest) (*Message, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, badRequest("room id is required")
	}
	if strings.TrimSpace(req.Sender) == "" {
		return nil, badRequest("sender is required")
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var rec *store.Message
	err := withStoreRetry(ctx, s.log, s.storeTimeout, "append message", func(ctx context.Context) error {
		var err error
		rec, err = s.store.AppendMessage(ctx, roomID, store.Message{
			RoomID:    roomID,
			Sender:    req.Sender,
			Content:   req.Content,
			Timestamp: ts,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	msg := Message{
		Sender:    rec.Sender,
		Content:   rec.Content,
		Timestamp: rec.Timestamp,
	}

	if s.pub != nil {
		s.pub.Publish(roomID, msg)
	}

	s.log.Debug().Str("room_id", roomID).Str("sender", msg.Sender).Int64("seq", rec.Seq).Msg("message sent")
	return &msg, nil
}

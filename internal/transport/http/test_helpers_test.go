package http

import (
	stdhttp "net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/broker"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/store/sqlite"
)

type testEnv struct {
	server   *stdhttp.Server
	rooms    *core.RoomService
	messages *core.MessageService
	broker   *broker.Broker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zerolog.New(nil)
	br := broker.New(&logger)
	t.Cleanup(br.Close)

	rooms := core.NewRoomService(st, &logger, 0)
	messages := core.NewMessageService(st, br, &logger, 0)

	cfg := &config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
		AllowedOrigins:    []string{"localhost:*"},
		MaxMessageBytes:   1 << 20,
	}

	return &testEnv{
		server:   NewServer(rooms, messages, br, cfg, &logger),
		rooms:    rooms,
		messages: messages,
		broker:   br,
	}
}

package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/broker"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/store"
	"github.com/roomchat/roomchat-server/internal/store/sqlite"
	transporthttp "github.com/roomchat/roomchat-server/internal/transport/http"
)

// App wires together store, services, broker and transport.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	broker          *broker.Broker
	store           store.RoomStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	br := broker.New(logger)
	rooms := core.NewRoomService(st, logger, cfg.StoreTimeout)
	messages := core.NewMessageService(st, br, logger, cfg.StoreTimeout)

	server := transporthttp.NewServer(rooms, messages, br, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		broker:          br,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup detaches all subscribers and closes the store.
func (a *App) cleanup() {
	if a.broker != nil {
		a.broker.Close()
		a.log.Info().Msg("broker closed")
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

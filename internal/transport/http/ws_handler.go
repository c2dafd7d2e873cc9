package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/roomchat/roomchat-server/internal/broker"
	"github.com/roomchat/roomchat-server/internal/config"
	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/proto"
)

// outboundBuffer is the per-connection queue between subscription pumps and
// the socket writer.
const outboundBuffer = 32

// WSHandler upgrades HTTP connections into gateway sessions: inbound frames
// become message service calls, broker subscriptions are written back out.
type WSHandler struct {
	messages *core.MessageService
	broker   *broker.Broker
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds the websocket gateway handler.
func NewWSHandler(messages *core.MessageService, br *broker.Broker, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{messages: messages, broker: br, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.AllowedOrigins,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("origin", r.Header.Get("Origin")).Msg("ws accept rejected")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := &wsSession{
		handler: h,
		conn:    conn,
		subs:    make(map[string]*broker.Subscription),
		out:     make(chan proto.Outbound, outboundBuffer),
		limiter: newRateLimiter(h.cfg.MessageRateLimit),
	}
	sess.limiter.startReset(ctx.Done())
	defer sess.unsubscribeAll()

	errCh := make(chan error, 2)
	go func() {
		errCh <- sess.readLoop(ctx)
	}()
	go func() {
		errCh <- sess.writeLoop(ctx)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// wsSession is the per-connection gateway state. subs is touched only by
// the read loop, so it needs no lock.
type wsSession struct {
	handler *WSHandler
	conn    *websocket.Conn
	subs    map[string]*broker.Subscription
	out     chan proto.Outbound
	limiter *rateLimiter
}

func (s *wsSession) readLoop(ctx context.Context) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, s.conn, &inbound); err != nil {
			return err
		}

		if err := s.handleInbound(ctx, inbound); err != nil {
			return err
		}
	}
}

func (s *wsSession) handleInbound(ctx context.Context, inbound proto.Inbound) error {
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		roomID, ok := proto.ParseUpdatesDestination(inbound.Destination)
		if !ok {
			return s.send(ctx, errorFrame(core.ErrCodeBadRequest, "invalid subscribe destination"))
		}
		s.subscribe(ctx, roomID)
		return nil

	case proto.InboundTypeUnsubscribe:
		roomID, ok := proto.ParseUpdatesDestination(inbound.Destination)
		if !ok {
			return s.send(ctx, errorFrame(core.ErrCodeBadRequest, "invalid unsubscribe destination"))
		}
		if sub, exists := s.subs[roomID]; exists {
			s.handler.broker.Unsubscribe(sub)
			delete(s.subs, roomID)
		}
		return nil

	case proto.InboundTypeSend:
		if !s.limiter.allow() {
			return s.send(ctx, errorFrame("rate_limited", "too many messages"))
		}
		roomID, req, protoErr := inboundSend(inbound)
		if protoErr != nil {
			return s.send(ctx, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
		}
		if _, err := s.handler.messages.SendMessage(ctx, roomID, req); err != nil {
			return s.send(ctx, domainErrorFrame(err))
		}
		return nil

	default:
		return s.send(ctx, errorFrame("invalid_frame", "unknown frame type"))
	}
}

// subscribe attaches the session to a room's topic and starts a pump that
// forwards deliveries to the socket writer. Subscribing twice to the same
// room is a no-op.
func (s *wsSession) subscribe(ctx context.Context, roomID string) {
	if _, exists := s.subs[roomID]; exists {
		return
	}

	sub := s.handler.broker.Subscribe(roomID)
	s.subs[roomID] = sub

	go func() {
		for msg := range sub.C() {
			select {
			case s.out <- eventFrame(roomID, msg):
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *wsSession) writeLoop(ctx context.Context) error {
	for {
		select {
		case frame := <-s.out:
			if err := wsjson.Write(ctx, s.conn, frame); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// send queues a frame for the writer without blocking the read loop behind
// a stalled socket.
func (s *wsSession) send(ctx context.Context, frame proto.Outbound) error {
	select {
	case s.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *wsSession) unsubscribeAll() {
	for roomID, sub := range s.subs {
		s.handler.broker.Unsubscribe(sub)
		delete(s.subs, roomID)
	}
}

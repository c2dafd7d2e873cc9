package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/roomchat/roomchat-server/internal/core"
	"github.com/roomchat/roomchat-server/internal/proto"
)

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.Outbound {
	t.Helper()

	var frame proto.Outbound
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("ws read failed: %v", err)
	}
	return frame
}

func TestGatewaySendAndFanOut(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := env.rooms.CreateRoom(ctx, "lobby"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	first := dialWS(t, ctx, ts)
	second := dialWS(t, ctx, ts)

	subscribeFrame := proto.Inbound{
		Type:        proto.InboundTypeSubscribe,
		Destination: proto.UpdatesDestination("lobby"),
	}
	for _, conn := range []*websocket.Conn{first, second} {
		if err := wsjson.Write(ctx, conn, subscribeFrame); err != nil {
			t.Fatalf("subscribe write failed: %v", err)
		}
	}
	// Subscriptions are registered by the read loop; give it a moment before
	// publishing so both handles are attached.
	time.Sleep(100 * time.Millisecond)

	sendFrame := proto.Inbound{
		Type:        proto.InboundTypeSend,
		Destination: proto.SendDestination("lobby"),
		Data:        json.RawMessage(`{"sender":"alice","content":"hello","roomId":"lobby"}`),
	}
	if err := wsjson.Write(ctx, first, sendFrame); err != nil {
		t.Fatalf("send write failed: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"first": first, "second": second} {
		frame := readFrame(t, ctx, conn)
		if frame.Type != proto.OutboundTypeEvent {
			t.Fatalf("%s: expected event frame, got %+v", name, frame)
		}
		if frame.Destination != proto.UpdatesDestination("lobby") {
			t.Errorf("%s: unexpected destination %q", name, frame.Destination)
		}

		data, err := json.Marshal(frame.Data)
		if err != nil {
			t.Fatalf("%s: re-marshal data: %v", name, err)
		}
		var msg proto.MessageData
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("%s: unmarshal message data: %v", name, err)
		}
		if msg.Sender != "alice" || msg.Content != "hello" {
			t.Errorf("%s: unexpected message: %+v", name, msg)
		}
	}

	// Exactly one persisted entry.
	history, err := env.rooms.ListMessages(ctx, "lobby")
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(history))
	}
}

func TestGatewaySendToGhostRoom(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)

	sendFrame := proto.Inbound{
		Type:        proto.InboundTypeSend,
		Destination: proto.SendDestination("ghost"),
		Data:        json.RawMessage(`{"sender":"alice","content":"boo","roomId":"ghost"}`),
	}
	if err := wsjson.Write(ctx, conn, sendFrame); err != nil {
		t.Fatalf("send write failed: %v", err)
	}

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil {
		t.Fatalf("expected error frame, got %+v", frame)
	}
	if frame.Error.Code != core.ErrCodeRoomNotFound {
		t.Errorf("expected code %q, got %q", core.ErrCodeRoomNotFound, frame.Error.Code)
	}
}

func TestGatewayUnsubscribeStopsDelivery(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := env.rooms.CreateRoom(ctx, "lobby"); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	conn := dialWS(t, ctx, ts)

	if err := wsjson.Write(ctx, conn, proto.Inbound{
		Type:        proto.InboundTypeSubscribe,
		Destination: proto.UpdatesDestination("lobby"),
	}); err != nil {
		t.Fatalf("subscribe write failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := wsjson.Write(ctx, conn, proto.Inbound{
		Type:        proto.InboundTypeUnsubscribe,
		Destination: proto.UpdatesDestination("lobby"),
	}); err != nil {
		t.Fatalf("unsubscribe write failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	if _, err := env.messages.SendMessage(ctx, "lobby", core.SendRequest{Sender: "bob", Content: "after"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	readCtx, readCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer readCancel()
	var frame proto.Outbound
	if err := wsjson.Read(readCtx, conn, &frame); err == nil {
		t.Fatalf("expected no delivery after unsubscribe, got %+v", frame)
	}
}

func TestGatewayRejectsDisallowedOrigin(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/chat"
	header := stdhttp.Header{}
	header.Set("Origin", "http://evil.example")

	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err == nil {
		conn.Close(websocket.StatusNormalClosure, "unexpected")
		t.Fatal("expected handshake rejection for disallowed origin")
	}
	if resp != nil && resp.StatusCode != stdhttp.StatusForbidden {
		t.Errorf("expected 403 handshake response, got %d", resp.StatusCode)
	}
}

func TestGatewayUnknownFrameType(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: "dance"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	frame := readFrame(t, ctx, conn)
	if frame.Type != proto.OutboundTypeError || frame.Error == nil || frame.Error.Code != "invalid_frame" {
		t.Fatalf("expected invalid_frame error, got %+v", frame)
	}
}

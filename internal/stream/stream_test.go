package stream_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
	"github.com/kiwari-pos/monitor/internal/stream"
)

var upgrader = websocket.Upgrader{}

// fakeStreamServer upgrades each connection and hands it to script.
func fakeStreamServer(t *testing.T, script func(conn *websocket.Conn, connNum int)) *httptest.Server {
	t.Helper()
	connNum := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		connNum++
		script(conn, connNum)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func orderEnvelope(t *testing.T, o model.Order) []byte {
	t.Helper()
	payload, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal order: %v", err)
	}
	env, err := json.Marshal(stream.Event{Type: enum.EventOrderChanged, Payload: payload})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return env
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStreamDeliversOrderChanged(t *testing.T) {
	order := model.Order{
		ID:        uuid.New(),
		Status:    enum.OrderStatusPending,
		OrderType: enum.OrderTypeCounter,
		CreatedAt: time.Now(),
	}

	srv := fakeStreamServer(t, func(conn *websocket.Conn, _ int) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CONNECTION_ESTABLISHED"}`))
		env := orderEnvelope(t, order)
		conn.WriteMessage(websocket.TextMessage, env)
		// Keep the connection open until the client goes away.
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := stream.New(wsURL(srv), "tok", false, testLogger())
	go a.Run(ctx)

	select {
	case got := <-a.Events():
		if got.ID != order.ID {
			t.Errorf("order id: got %s, want %s", got.ID, order.ID)
		}
		if got.Status != enum.OrderStatusPending {
			t.Errorf("status: got %s, want PENDING", got.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestStreamDropsMalformedMessages(t *testing.T) {
	order := model.Order{
		ID:        uuid.New(),
		Status:    enum.OrderStatusPreparing,
		OrderType: enum.OrderTypeDelivery,
		CreatedAt: time.Now(),
	}

	srv := fakeStreamServer(t, func(conn *websocket.Conn, _ int) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ORDER_CHANGED","payload":{"status":"PENDING"}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SOMETHING_ELSE","payload":{}}`))
		conn.WriteMessage(websocket.TextMessage, orderEnvelope(t, order))
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := stream.New(wsURL(srv), "tok", false, testLogger())
	go a.Run(ctx)

	select {
	case got := <-a.Events():
		if got.ID != order.ID {
			t.Errorf("order id: got %s, want %s (malformed messages must be skipped)", got.ID, order.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after malformed ones was not delivered")
	}

	select {
	case got := <-a.Events():
		t.Fatalf("unexpected extra event: %v", got.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStreamReconnectsAfterServerClose(t *testing.T) {
	first := model.Order{ID: uuid.New(), Status: enum.OrderStatusPending, OrderType: enum.OrderTypeCounter}
	second := model.Order{ID: uuid.New(), Status: enum.OrderStatusPending, OrderType: enum.OrderTypeCounter}

	srv := fakeStreamServer(t, func(conn *websocket.Conn, connNum int) {
		if connNum == 1 {
			conn.WriteMessage(websocket.TextMessage, orderEnvelope(t, first))
			conn.Close()
			return
		}
		conn.WriteMessage(websocket.TextMessage, orderEnvelope(t, second))
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := stream.New(wsURL(srv), "tok", true, testLogger())
	go a.Run(ctx)

	for i, want := range []uuid.UUID{first.ID, second.ID} {
		select {
		case got := <-a.Events():
			if got.ID != want {
				t.Errorf("event %d: got %s, want %s", i, got.ID, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d not received", i)
		}
	}

	select {
	case <-a.Disconnects():
	case <-time.After(time.Second):
		t.Fatal("disconnect was not signaled")
	}
}

func TestStreamReturnsFaultWithoutReconnect(t *testing.T) {
	srv := fakeStreamServer(t, func(conn *websocket.Conn, _ int) {
		conn.Close()
	})

	a := stream.New(wsURL(srv), "tok", false, testLogger())
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected a transport fault")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after server close")
	}
}

func TestStreamStopsOnCancel(t *testing.T) {
	srv := fakeStreamServer(t, func(conn *websocket.Conn, _ int) {
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	a := stream.New(wsURL(srv), "tok", true, testLogger())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestStreamRequiresToken(t *testing.T) {
	srv := fakeStreamServer(t, func(conn *websocket.Conn, _ int) {
		conn.ReadMessage()
	})

	a := stream.New(wsURL(srv), "", false, testLogger())
	err := a.Run(context.Background())
	if err == nil {
		t.Fatal("expected dial failure without token")
	}
	if !strings.Contains(err.Error(), "dial") {
		t.Errorf("unexpected error: %v", err)
	}
}

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
)

const (
	// Time allowed to write a control message to the peer
	writeWait = 10 * time.Second

	// Time allowed between messages from the server (which pings us)
	readWait = 60 * time.Second

	// Cap on the reconnect backoff between attempts
	maxReconnectWait = 30 * time.Second
)

// Event is the JSON envelope pushed by the server. Type discriminates
// control messages from business payloads.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Adapter owns the long-lived push connection for one session. It decodes
// envelopes and forwards order changes on Events; a malformed message is
// dropped and logged, never fatal. It performs no merge logic itself.
type Adapter struct {
	url       string
	token     string
	reconnect bool
	dialer    *websocket.Dialer
	log       *slog.Logger

	events      chan model.Order
	disconnects chan error
}

// New creates an adapter for the given ws endpoint. The token is passed as
// a query parameter at connect time. When reconnect is true the adapter
// re-dials with exponential backoff after any transport fault; when false
// Run returns the fault to the owner.
func New(url, token string, reconnect bool, log *slog.Logger) *Adapter {
	return &Adapter{
		url:         url,
		token:       token,
		reconnect:   reconnect,
		dialer:      websocket.DefaultDialer,
		log:         log.With(slog.String("component", "stream")),
		events:      make(chan model.Order, 64),
		disconnects: make(chan error, 1),
	}
}

// Events is the sequence of decoded order changes.
func (a *Adapter) Events() <-chan model.Order {
	return a.events
}

// Disconnects signals transport faults to the owner. The channel has a
// buffer of one and signals coalesce.
func (a *Adapter) Disconnects() <-chan error {
	return a.disconnects
}

// Run connects and consumes the stream until ctx is canceled. Blocking;
// the owner runs it in its own goroutine.
func (a *Adapter) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxReconnectWait
	bo.MaxElapsedTime = 0

	for {
		connected, err := a.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.log.Warn("stream disconnected", slog.String("error", err.Error()))
		select {
		case a.disconnects <- err:
		default:
		}

		if !a.reconnect {
			return err
		}
		if connected {
			bo.Reset()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.NextBackOff()):
		}
	}
}

// connectAndRead dials once and reads until a fault. Reports whether the
// dial succeeded so the caller can reset its backoff.
func (a *Adapter) connectAndRead(ctx context.Context) (bool, error) {
	conn, _, err := a.dialer.DialContext(ctx, a.url+"?token="+a.token, nil)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	// Unblock the read loop deterministically on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	a.log.Info("stream connected", slog.String("url", a.url))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readWait))
		if err := a.handleMessage(ctx, message); err != nil {
			return true, err
		}
	}
}

// handleMessage decodes one envelope. Decode faults are dropped so a single
// malformed message cannot terminate the stream.
func (a *Adapter) handleMessage(ctx context.Context, message []byte) error {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		a.log.Warn("dropping malformed envelope", slog.String("error", err.Error()))
		return nil
	}

	switch ev.Type {
	case enum.EventConnectionEstablished:
		a.log.Debug("connection established")
		return nil

	case enum.EventOrderChanged:
		var order model.Order
		if err := json.Unmarshal(ev.Payload, &order); err != nil {
			a.log.Warn("dropping malformed order payload", slog.String("error", err.Error()))
			return nil
		}
		if err := order.Validate(); err != nil {
			a.log.Warn("dropping invalid order payload",
				slog.String("error", err.Error()),
				slog.String("order_id", order.ID.String()),
			)
			return nil
		}
		select {
		case a.events <- order:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil

	default:
		a.log.Warn("dropping envelope with unknown type", slog.String("type", ev.Type))
		return nil
	}
}

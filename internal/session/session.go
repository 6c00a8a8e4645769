package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/api"
	"github.com/kiwari-pos/monitor/internal/auth"
	"github.com/kiwari-pos/monitor/internal/config"
	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
	"github.com/kiwari-pos/monitor/internal/notify"
	"github.com/kiwari-pos/monitor/internal/poll"
	"github.com/kiwari-pos/monitor/internal/printing"
	"github.com/kiwari-pos/monitor/internal/status"
	"github.com/kiwari-pos/monitor/internal/store"
	"github.com/kiwari-pos/monitor/internal/stream"
)

// Session owns everything scoped to one authenticated monitoring context:
// the order store, the push connection, the fallback pollers, the alert
// controller and the print pipeline. Nothing is shared across sessions;
// Run tears the whole set down when its context ends.
type Session struct {
	cfg      *config.Config
	log      *slog.Logger
	outletID uuid.UUID

	store    *store.Store
	api      *api.Client
	stream   *stream.Adapter
	notify   *notify.Controller
	pipeline *printing.Pipeline
	status   *status.Controller

	mu       sync.RWMutex
	settings model.Settings
}

// New validates the session token, scopes the session to its outlet and
// wires the component graph. printer and alerter are the two collaborators
// the caller must provide.
func New(cfg *config.Config, log *slog.Logger, printer printing.Printer, alerter notify.Alerter) (*Session, error) {
	claims, err := auth.ValidateToken(cfg.Auth.JWTSecret, cfg.Auth.Token)
	if err != nil {
		return nil, fmt.Errorf("validate session token: %w", err)
	}

	s := &Session{
		cfg:      cfg,
		log:      log.With(slog.String("outlet_id", claims.OutletID.String())),
		outletID: claims.OutletID,
		store:    store.New(),
	}
	s.api = api.New(cfg.Server.BaseURL, cfg.Auth.Token, claims.OutletID, cfg.Server.Timeout, s.log)

	streamURL := fmt.Sprintf("%s/outlets/%s/orders", cfg.Server.StreamURL, claims.OutletID)
	s.stream = stream.New(streamURL, cfg.Auth.Token, cfg.Server.Reconnect, s.log)

	s.notify = notify.New(s.store, alerter, s.Settings, s.log)
	s.pipeline = printing.NewPipeline(
		s.store, s.api, printer, s.notify, s.Settings,
		cfg.Printer, cfg.Receipt, cfg.Server.Timeout, s.log,
	)
	s.status = status.New(s.store, s.api, s.log)
	return s, nil
}

// Store is the live order view rendered by the UI.
func (s *Session) Store() *store.Store {
	return s.store
}

// Settings returns the last fetched outlet settings.
func (s *Session) Settings() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *Session) setSettings(v model.Settings) {
	s.mu.Lock()
	s.settings = v
	s.mu.Unlock()
}

// Run performs the cold start, launches the stream and the pollers, and
// consumes events until ctx is canceled. All goroutines and in-flight print
// submissions are joined before it returns.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.coldStart(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.stream.Run(ctx)
	}()

	tablePoller := poll.New("table_requests", s.cfg.Poll.TableRequests, s.pollTableRequests, s.log)
	settingsPoller := poll.New("settings", s.cfg.Poll.Settings, s.pollSettings, s.log)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tablePoller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		settingsPoller.Run(ctx)
	}()

	storeCh, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	// Cold-start inserts are fresh; evaluate them before the first event.
	s.evaluate(ctx)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.pipeline.Wait()
			s.log.Info("session closed")
			return ctx.Err()

		case order := <-s.stream.Events():
			s.store.Apply(order)

		case err := <-s.stream.Disconnects():
			s.notify.Notice(fmt.Sprintf("connection to server lost: %v", err))

		case <-storeCh:
			s.evaluate(ctx)
		}
	}
}

// coldStart seeds settings and the order snapshot. Both fetches are
// non-fatal: a transport fault leaves the store empty and the stream and
// pollers fill it in as they recover.
func (s *Session) coldStart(ctx context.Context) {
	settings, err := s.api.FetchSettings(ctx)
	if err != nil {
		s.log.Warn("cold-start settings fetch failed", slog.String("error", err.Error()))
	} else {
		s.setSettings(settings)
	}

	orders, err := s.api.FetchActiveOrders(ctx)
	if err != nil {
		s.log.Warn("cold-start order fetch failed", slog.String("error", err.Error()))
		return
	}
	for _, o := range orders {
		s.store.Apply(o)
	}
	s.log.Info("cold start complete", slog.Int("orders", len(orders)))
}

// evaluate runs one cycle: consume freshly observed orders, auto-accept or
// alert, then scan for print work.
func (s *Session) evaluate(ctx context.Context) {
	fresh := s.store.ConsumeFresh()

	if s.Settings().AutoAcceptOrders {
		for _, o := range fresh {
			if o.Status != enum.OrderStatusPending {
				continue
			}
			if err := s.status.Transition(ctx, o.ID, enum.OrderStatusPreparing); err != nil {
				s.log.Warn("auto-accept failed",
					slog.String("order_id", o.ID.String()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.notify.EvaluateOrders(fresh)
	s.pipeline.Scan(ctx)
}

func (s *Session) pollTableRequests(ctx context.Context) error {
	reqs, err := s.api.FetchTableRequests(ctx)
	if err != nil {
		// Empty-result treatment: keep the previous snapshot, no alert.
		return err
	}
	s.notify.ObserveTableRequests(reqs)
	return nil
}

func (s *Session) pollSettings(ctx context.Context) error {
	settings, err := s.api.FetchSettings(ctx)
	if err != nil {
		return err
	}
	s.setSettings(settings)
	return nil
}

// AcceptOrder moves a pending order into preparation and refreshes the
// decision surface so it disappears immediately.
func (s *Session) AcceptOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.status.Transition(ctx, id, enum.OrderStatusPreparing); err != nil {
		return err
	}
	s.notify.RefreshPending()
	return nil
}

// RejectOrder cancels a pending order and refreshes the decision surface.
func (s *Session) RejectOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.status.Transition(ctx, id, enum.OrderStatusCanceled); err != nil {
		return err
	}
	s.notify.RefreshPending()
	return nil
}

// UpdateStatus applies one optimistic status transition.
func (s *Session) UpdateStatus(ctx context.Context, id uuid.UUID, target string) error {
	return s.status.Transition(ctx, id, target)
}

// UpdateStatusBulk applies the target status to each selected order
// independently; failures are isolated per order.
func (s *Session) UpdateStatusBulk(ctx context.Context, ids []uuid.UUID, target string) error {
	return s.status.TransitionAll(ctx, ids, target)
}

// ResolveTableRequest acknowledges a table request on the server and
// removes it from the surfaced list synchronously.
func (s *Session) ResolveTableRequest(ctx context.Context, id uuid.UUID) error {
	if err := s.api.ResolveTableRequest(ctx, id); err != nil {
		return err
	}
	s.notify.RemoveTableRequest(id)
	return nil
}

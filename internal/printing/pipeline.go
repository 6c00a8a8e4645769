package printing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
	"github.com/kiwari-pos/monitor/internal/store"
)

// MarkPrintedAPI is the server operation confirming a print submission.
// Satisfied by *api.Client.
type MarkPrintedAPI interface {
	MarkOrderPrinted(ctx context.Context, id uuid.UUID) error
}

// Noticer surfaces transient, non-blocking failure notices.
// Satisfied by *notify.Controller.
type Noticer interface {
	Notice(message string)
}

// Eligible reports whether the order's current state calls for a ticket,
// and which kind. Evaluated from current state only, never from history:
// a PREPARING order needs a kitchen ticket, a completed delivery order
// needs a delivery ticket, and a printed order needs nothing.
func Eligible(o model.Order) (kind string, ok bool) {
	if o.IsPrinted {
		return "", false
	}
	switch {
	case o.Status == enum.OrderStatusPreparing:
		return TicketKitchen, true
	case o.Status == enum.OrderStatusCompleted && o.OrderType == enum.OrderTypeDelivery:
		return TicketDelivery, true
	}
	return "", false
}

// Pipeline scans the store for print-eligible orders and drives each one
// through submit → mark-printed → set IsPrinted. Orders are processed
// independently: a hung or failing printer call neither blocks the scan of
// subsequent orders nor poisons their submissions.
type Pipeline struct {
	store    *store.Store
	api      MarkPrintedAPI
	printer  Printer
	notices  Noticer
	settings func() model.Settings
	config   Config
	receipt  ReceiptSettings
	timeout  time.Duration
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewPipeline creates a pipeline. timeout bounds one submit plus its
// mark-printed call; zero means 15s.
func NewPipeline(
	st *store.Store,
	api MarkPrintedAPI,
	printer Printer,
	notices Noticer,
	settings func() model.Settings,
	config Config,
	receipt ReceiptSettings,
	timeout time.Duration,
	log *slog.Logger,
) *Pipeline {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Pipeline{
		store:    st,
		api:      api,
		printer:  printer,
		notices:  notices,
		settings: settings,
		config:   config,
		receipt:  receipt,
		timeout:  timeout,
		log:      log.With(slog.String("component", "print_pipeline")),
	}
}

// Scan evaluates every stored order against the eligibility predicate and
// dispatches the eligible ones. Called on every store mutation. The
// in-flight marker claimed under the store's lock guarantees that
// overlapping scans cannot submit the same order twice. Gated off entirely
// when auto-print is disabled.
func (p *Pipeline) Scan(ctx context.Context) {
	s := p.settings()
	if !s.AutoPrintEnabled {
		return
	}

	for _, o := range p.store.Snapshot() {
		kind, ok := Eligible(o)
		if !ok {
			continue
		}
		if !p.store.BeginPrint(o.ID) {
			continue
		}
		p.wg.Add(1)
		go p.print(ctx, o, kind, s.RestaurantInfo)
	}
}

// Wait blocks until all in-flight submissions have finished. Used during
// session teardown and in tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// print drives one order through the submission sequence. The caller must
// already hold the order's in-flight marker.
func (p *Pipeline) print(ctx context.Context, o model.Order, kind string, info model.RestaurantInfo) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	job := Job{
		Kind:       kind,
		Order:      o,
		Config:     p.config,
		Receipt:    p.receipt,
		Restaurant: info,
	}

	if err := p.printer.Submit(ctx, job); err != nil {
		p.fail(o, kind, fmt.Errorf("submit: %w", err))
		return
	}
	if err := p.api.MarkOrderPrinted(ctx, o.ID); err != nil {
		p.fail(o, kind, fmt.Errorf("mark printed: %w", err))
		return
	}

	p.store.MarkPrinted(o.ID)
	p.log.Info("ticket printed",
		slog.String("order_id", o.ID.String()),
		slog.Int("display_number", o.DisplayNumber),
		slog.String("kind", kind),
	)
}

// fail releases the in-flight marker so the next scan retries, and raises
// a notice naming the order by its display number.
func (p *Pipeline) fail(o model.Order, kind string, err error) {
	p.store.EndPrint(o.ID)
	p.log.Error("print failed",
		slog.String("order_id", o.ID.String()),
		slog.Int("display_number", o.DisplayNumber),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	p.notices.Notice(fmt.Sprintf("printing failed for order #%d", o.DisplayNumber))
}

package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/store"
)

// Errors returned by the status controller.
var (
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// rank orders the forward flow. A transition is valid when it moves
// strictly forward, or cancels a non-terminal order.
var rank = map[string]int{
	enum.OrderStatusPending:   0,
	enum.OrderStatusPreparing: 1,
	enum.OrderStatusReady:     2,
	enum.OrderStatusShipped:   3,
	enum.OrderStatusDelivered: 4,
	enum.OrderStatusCompleted: 5,
}

// ValidTransition reports whether from → to is allowed.
func ValidTransition(from, to string) bool {
	if enum.IsTerminalStatus(from) {
		return false
	}
	if to == enum.OrderStatusCanceled {
		return true
	}
	rf, okf := rank[from]
	rt, okt := rank[to]
	return okf && okt && rt > rf
}

// UpdateAPI is the server operation confirming a transition.
// Satisfied by *api.Client.
type UpdateAPI interface {
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Controller applies status transitions optimistically: the store reflects
// the change immediately, the server confirms it asynchronously through the
// stream, and a failed submission rolls the local value back.
type Controller struct {
	store *store.Store
	api   UpdateAPI
	log   *slog.Logger
}

// New creates a controller.
func New(st *store.Store, api UpdateAPI, log *slog.Logger) *Controller {
	return &Controller{
		store: st,
		api:   api,
		log:   log.With(slog.String("component", "status")),
	}
}

// Transition moves one order to the target status. The optimistic write
// happens before the server call; on submission failure the write is rolled
// back, but only if the value is still the optimistic one, so an
// authoritative event that landed in between is never clobbered.
func (c *Controller) Transition(ctx context.Context, id uuid.UUID, target string) error {
	o, ok := c.store.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}
	if !ValidTransition(o.Status, target) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, o.Status, target)
	}

	prev, ok := c.store.SetStatus(id, target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, id)
	}

	if err := c.api.UpdateOrderStatus(ctx, id, target); err != nil {
		if c.store.CompareAndSetStatus(id, target, prev) {
			c.log.Warn("transition rolled back",
				slog.String("order_id", id.String()),
				slog.String("target", target),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("submit transition: %w", err)
	}
	return nil
}

// TransitionAll applies the target status to each order independently. A
// failure on one order rolls back that order only; the rest keep their new
// status. The joined error reports every failed order.
func (c *Controller) TransitionAll(ctx context.Context, ids []uuid.UUID, target string) error {
	var errs []error
	for _, id := range ids {
		if err := c.Transition(ctx, id, target); err != nil {
			errs = append(errs, fmt.Errorf("order %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

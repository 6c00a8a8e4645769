package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
	"github.com/kiwari-pos/monitor/internal/store"
)

// Alerter is the human-facing notification surface. PlaySound has no error
// return: implementations swallow audio failures (a blocked audio device
// must never propagate as a fault). ShowPendingOrders and ShowTableRequests
// replace the surfaced list; an empty list dismisses the surface.
type Alerter interface {
	PlaySound()
	ShowPendingOrders(orders []model.Order)
	ShowTableRequests(reqs []model.TableRequest)
	ShowNotice(message string)
}

// Controller derives alert state from the store and the polled table
// request snapshot. Decisions compare current against previous snapshot
// only; there is no accumulating already-notified set.
type Controller struct {
	store    *store.Store
	alerter  Alerter
	settings func() model.Settings
	log      *slog.Logger

	mu        sync.Mutex
	prevReqs  map[uuid.UUID]bool
	lastReqs  []model.TableRequest
	surfacing bool
}

// New creates a controller. settings is read at evaluation time so toggle
// flips take effect without restart.
func New(st *store.Store, alerter Alerter, settings func() model.Settings, log *slog.Logger) *Controller {
	return &Controller{
		store:    st,
		alerter:  alerter,
		settings: settings,
		log:      log.With(slog.String("component", "notify")),
	}
}

// EvaluateOrders handles the order side of one evaluation cycle. fresh is
// the set of orders inserted since the previous cycle; the sound fires once
// per freshly observed pending order, and the decision surface always
// reflects the live pending set.
func (c *Controller) EvaluateOrders(fresh []model.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.settings().AutoAcceptOrders {
		return
	}

	for _, o := range fresh {
		if o.Status == enum.OrderStatusPending {
			c.log.Info("new pending order",
				slog.String("order_id", o.ID.String()),
				slog.Int("display_number", o.DisplayNumber),
			)
			c.alerter.PlaySound()
		}
	}

	c.refreshPendingLocked()
}

// RefreshPending re-renders the pending decision surface from the live
// store, dismissing it when the list has emptied. Called after an accept or
// reject so the resolved order disappears synchronously.
func (c *Controller) RefreshPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshPendingLocked()
}

func (c *Controller) refreshPendingLocked() {
	pending := c.store.Pending()
	if len(pending) == 0 && !c.surfacing {
		return
	}
	c.surfacing = len(pending) > 0
	c.alerter.ShowPendingOrders(pending)
}

// ObserveTableRequests handles one polled snapshot. The sound fires at most
// once per cycle, and only when the snapshot contains a request that was
// absent from the previous one; a steady-state snapshot is silent.
func (c *Controller) ObserveTableRequests(reqs []model.TableRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[uuid.UUID]bool, len(reqs))
	grew := false
	for _, r := range reqs {
		current[r.ID] = true
		if !c.prevReqs[r.ID] {
			grew = true
		}
	}

	if grew {
		c.log.Info("unresolved table requests", slog.Int("count", len(reqs)))
		c.alerter.PlaySound()
	}
	if grew || len(reqs) != len(c.prevReqs) {
		c.alerter.ShowTableRequests(reqs)
	}
	c.prevReqs = current
	c.lastReqs = reqs
}

// RemoveTableRequest drops a resolved request from the surfaced list
// without waiting for the next poll. An emptied list dismisses the surface.
func (c *Controller) RemoveTableRequest(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.prevReqs[id] {
		return
	}
	delete(c.prevReqs, id)
	remaining := c.lastReqs[:0:0]
	for _, r := range c.lastReqs {
		if r.ID != id {
			remaining = append(remaining, r)
		}
	}
	c.lastReqs = remaining
	c.alerter.ShowTableRequests(remaining)
}

// Notice surfaces a transient, non-blocking message.
func (c *Controller) Notice(message string) {
	c.alerter.ShowNotice(message)
}

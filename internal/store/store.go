package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kiwari-pos/monitor/internal/enum"
	"github.com/kiwari-pos/monitor/internal/model"
)

// Store is the in-memory source of truth for live orders. It is the single
// mutation path shared by the stream consumer, the status controller and the
// print pipeline; every mutation is serialized under one mutex and announced
// to subscribers.
type Store struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]model.Order

	// Display ordering, newest first. Inserts go to the front.
	order []uuid.UUID

	// Freshly observed inserts, consumed by exactly one evaluation cycle.
	fresh []uuid.UUID

	// In-flight print markers. An order with a marker set must not be
	// submitted to the printer again until the marker is cleared.
	printing map[uuid.UUID]bool

	subs map[chan struct{}]bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		orders:   make(map[uuid.UUID]model.Order),
		printing: make(map[uuid.UUID]bool),
		subs:     make(map[chan struct{}]bool),
	}
}

// Subscribe registers for mutation notifications. The channel has a buffer
// of one and notifications coalesce, so a slow subscriber sees at least one
// wakeup after any burst of mutations. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = true
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

func (s *Store) notifyLocked() {
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Apply merges an authoritative order event into the store. An existing
// record is replaced wholesale (last-write-wins); an unknown id is inserted
// at the front of the display order and marked freshly observed. Applying
// the same event twice yields the same state as applying it once.
// Reports whether the event was an insert.
func (s *Store) Apply(o model.Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.orders[o.ID]
	s.orders[o.ID] = o
	if !exists {
		s.order = append([]uuid.UUID{o.ID}, s.order...)
		s.fresh = append(s.fresh, o.ID)
	}
	s.notifyLocked()
	return !exists
}

// Get returns a copy of the order with the given id.
func (s *Store) Get(id uuid.UUID) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// Len returns the number of orders known to the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Snapshot returns all orders in display order, newest first.
func (s *Store) Snapshot() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.orders[id])
	}
	return out
}

// Active returns the non-terminal working set in display order. Terminal
// orders stay in the store for the session but are filtered from display.
func (s *Store) Active() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, id := range s.order {
		if o := s.orders[id]; !enum.IsTerminalStatus(o.Status) {
			out = append(out, o)
		}
	}
	return out
}

// Pending returns the orders awaiting an accept/reject decision.
func (s *Store) Pending() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for _, id := range s.order {
		if o := s.orders[id]; o.Status == enum.OrderStatusPending {
			out = append(out, o)
		}
	}
	return out
}

// ConsumeFresh returns the orders inserted since the previous call and
// clears the set. Ids whose record disappeared in the meantime are skipped.
func (s *Store) ConsumeFresh() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, id := range s.fresh {
		if o, ok := s.orders[id]; ok {
			out = append(out, o)
		}
	}
	s.fresh = nil
	return out
}

// SetStatus writes a status optimistically and returns the previous value.
func (s *Store) SetStatus(id uuid.UUID, status string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, exists := s.orders[id]
	if !exists {
		return "", false
	}
	prev = o.Status
	o.Status = status
	s.orders[id] = o
	s.notifyLocked()
	return prev, true
}

// CompareAndSetStatus writes status only if the current value still equals
// expect. Used to roll back an optimistic write without clobbering an
// authoritative event that arrived in the meantime.
func (s *Store) CompareAndSetStatus(id uuid.UUID, expect, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, exists := s.orders[id]
	if !exists || o.Status != expect {
		return false
	}
	o.Status = status
	s.orders[id] = o
	s.notifyLocked()
	return true
}

// BeginPrint sets the in-flight marker for id. It returns false when the
// order is unknown, already printed, or already being printed, so at most
// one concurrent submission can win for a given order.
func (s *Store) BeginPrint(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, exists := s.orders[id]
	if !exists || o.IsPrinted || s.printing[id] {
		return false
	}
	s.printing[id] = true
	return true
}

// EndPrint clears the in-flight marker after a failed submission, making
// the order eligible again on the next scan.
func (s *Store) EndPrint(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.printing, id)
}

// MarkPrinted records a confirmed print submission: sets IsPrinted and
// clears the in-flight marker in one step.
func (s *Store) MarkPrinted(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.printing, id)
	o, exists := s.orders[id]
	if !exists {
		return
	}
	o.IsPrinted = true
	s.orders[id] = o
	s.notifyLocked()
}

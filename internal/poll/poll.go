package poll

import (
	"context"
	"log/slog"
	"time"
)

// Func is one poll cycle. A returned error is logged and the cycle's result
// treated as empty; the poller keeps running.
type Func func(ctx context.Context) error

// Poller invokes fn on a fixed interval. Cycles run inline in the loop, so
// a slow fetch can never overlap the next one; ticks that fire while a
// cycle is still running are dropped by the ticker.
type Poller struct {
	name     string
	interval time.Duration
	fn       Func
	log      *slog.Logger
}

// New creates a poller. The first cycle runs immediately when Run starts.
func New(name string, interval time.Duration, fn Func, log *slog.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		fn:       fn,
		log:      log.With(slog.String("component", "poller"), slog.String("poller", name)),
	}
}

// Run polls until ctx is canceled. Blocking; the owner runs it in its own
// goroutine.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if err := p.fn(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("poll cycle failed", slog.String("error", err.Error()))
	}
}

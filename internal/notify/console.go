package notify

import (
	"log/slog"
	"os"

	"github.com/kiwari-pos/monitor/internal/model"
)

// ConsoleAlerter is the headless notification surface: alerts go to the
// log and the audio cue is the terminal bell. Suitable for running the
// monitor next to the counter terminal.
type ConsoleAlerter struct {
	log *slog.Logger
}

// NewConsoleAlerter creates a console surface.
func NewConsoleAlerter(log *slog.Logger) *ConsoleAlerter {
	return &ConsoleAlerter{log: log.With(slog.String("component", "alerter"))}
}

// PlaySound rings the terminal bell. Write failures are swallowed; a muted
// or redirected terminal must never surface as an error.
func (a *ConsoleAlerter) PlaySound() {
	os.Stdout.Write([]byte{'\a'})
}

// ShowPendingOrders renders the accept/reject decision list. An empty list
// dismisses it.
func (a *ConsoleAlerter) ShowPendingOrders(orders []model.Order) {
	if len(orders) == 0 {
		a.log.Info("pending orders cleared")
		return
	}
	for _, o := range orders {
		a.log.Info("pending order awaiting decision",
			slog.Int("display_number", o.DisplayNumber),
			slog.String("order_type", o.OrderType),
			slog.String("total", o.Total().StringFixed(2)),
		)
	}
}

// ShowTableRequests renders the unresolved table request list. An empty
// list dismisses it.
func (a *ConsoleAlerter) ShowTableRequests(reqs []model.TableRequest) {
	if len(reqs) == 0 {
		a.log.Info("table requests cleared")
		return
	}
	for _, r := range reqs {
		a.log.Info("table requesting service", slog.String("table", r.TableNumber))
	}
}

// ShowNotice logs a transient notice.
func (a *ConsoleAlerter) ShowNotice(message string) {
	a.log.Warn(message)
}

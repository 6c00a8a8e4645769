package printing

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shopspring/decimal"
)

const defaultPaperWidth = 32

// Render formats a job as a plain-text ticket for a line printer. The
// layout is fixed-width: header from restaurant info, one line per item,
// totals, and delivery details on delivery tickets.
func Render(job Job) string {
	width := job.Config.PaperWidth
	if width <= 0 {
		width = defaultPaperWidth
	}

	var b strings.Builder
	center := func(s string) {
		if pad := (width - len(s)) / 2; pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}
	rule := func() {
		b.WriteString(strings.Repeat("-", width))
		b.WriteByte('\n')
	}

	center(job.Restaurant.Name)
	if job.Restaurant.Address != "" {
		center(job.Restaurant.Address)
	}
	if job.Restaurant.Phone != "" {
		center(job.Restaurant.Phone)
	}
	if job.Restaurant.FiscalID != "" {
		center("NPWP " + job.Restaurant.FiscalID)
	}
	rule()

	if job.Kind == TicketKitchen {
		center("** KITCHEN **")
	} else {
		center("** DELIVERY **")
	}
	b.WriteString(fmt.Sprintf("Order #%d  %s\n", job.Order.DisplayNumber, job.Order.OrderType))
	if job.Order.TableNumber != "" {
		b.WriteString("Table " + job.Order.TableNumber + "\n")
	}
	b.WriteString(job.Order.CreatedAt.Format("02 Jan 2006 15:04") + "\n")
	rule()

	total := decimal.Zero
	for _, item := range job.Order.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		total = total.Add(line)
		b.WriteString(fmt.Sprintf("%dx %-*s %s\n",
			item.Quantity, width-len(line.StringFixed(2))-4, item.ProductName, line.StringFixed(2)))
		if item.Notes != "" {
			b.WriteString("   " + item.Notes + "\n")
		}
	}
	rule()
	b.WriteString(fmt.Sprintf("%-*s %s\n", width-len(total.StringFixed(2))-1, "TOTAL", total.StringFixed(2)))

	if job.Kind == TicketDelivery && job.Order.DeliveryInfo != nil {
		rule()
		b.WriteString("Deliver to: " + job.Order.DeliveryInfo.Address + "\n")
		if job.Order.DeliveryInfo.Phone != "" {
			b.WriteString("Phone: " + job.Order.DeliveryInfo.Phone + "\n")
		}
		if job.Order.DeliveryInfo.Platform != "" {
			b.WriteString("Platform: " + job.Order.DeliveryInfo.Platform + "\n")
		}
		for _, pay := range job.Order.Payments {
			b.WriteString(fmt.Sprintf("Paid %s %s\n", pay.Method, pay.Amount.StringFixed(2)))
		}
	}

	if job.Receipt.FooterText != "" {
		rule()
		center(job.Receipt.FooterText)
	}
	b.WriteByte('\n')
	return b.String()
}

// SpoolPrinter submits rendered tickets to the OS print spooler via lp(1).
type SpoolPrinter struct{}

// Submit renders the job and pipes it to lp for the configured device.
func (SpoolPrinter) Submit(ctx context.Context, job Job) error {
	copies := job.Config.Copies
	if copies <= 0 {
		copies = 1
	}
	cmd := exec.CommandContext(ctx, "lp", "-d", job.Config.Device, "-n", fmt.Sprint(copies), "-o", "raw")
	cmd.Stdin = strings.NewReader(Render(job))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("lp %s: %w: %s", job.Config.Device, err, strings.TrimSpace(string(out)))
	}
	return nil
}

package printing

import (
	"context"

	"github.com/kiwari-pos/monitor/internal/model"
)

// Ticket kinds. A kitchen ticket is cut when the order starts preparation;
// a delivery ticket accompanies a completed delivery order out the door.
const (
	TicketKitchen  = "KITCHEN"
	TicketDelivery = "DELIVERY"
)

// Config is the local print target configuration. Opaque session input;
// read from the monitor's config file, never from the server.
type Config struct {
	Device     string `yaml:"device" validate:"required"`
	PaperWidth int    `yaml:"paper_width"`
	Copies     int    `yaml:"copies"`
}

// ReceiptSettings are the local receipt layout preferences.
type ReceiptSettings struct {
	ShowLogo   bool   `yaml:"show_logo"`
	FooterText string `yaml:"footer_text"`
}

// Job is one print submission: the order, the ticket kind its state calls
// for, and the formatting inputs.
type Job struct {
	Kind       string
	Order      model.Order
	Config     Config
	Receipt    ReceiptSettings
	Restaurant model.RestaurantInfo
}

// Printer renders and submits a job to a physical or OS print target. The
// rendering itself is opaque to the pipeline; an error means the job did
// not reach the device and the order stays eligible for retry.
type Printer interface {
	Submit(ctx context.Context, job Job) error
}

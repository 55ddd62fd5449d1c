package whatsapp

import (
	"context"
	"log/slog"

	"filingscout/internal/ports"
)

// DryRunNotifier logs what would be sent without touching the channel.
// Used by the -dry-run CLI flag and the dry_run HTTP parameter.
type DryRunNotifier struct {
	logger *slog.Logger
}

var _ ports.Notifier = (*DryRunNotifier)(nil)

// NewDryRun builds the logging notifier.
func NewDryRun(logger *slog.Logger) *DryRunNotifier {
	return &DryRunNotifier{logger: logger}
}

// Send records the would-be message and succeeds.
func (d *DryRunNotifier) Send(_ context.Context, phone string, msg ports.Notification) error {
	if d.logger != nil {
		d.logger.Info("dry-run notification",
			"phone", phone,
			"customer", msg.Customer,
			"company", msg.Company,
			"price", msg.Price,
			"update_len", len(msg.Update))
	}
	return nil
}

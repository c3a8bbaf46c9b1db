package notify

import (
	"context"
	"log/slog"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

// LogDeliverer writes email jobs to the log. It stands in for SMTP when no
// mail server is configured.
type LogDeliverer struct {
	log *slog.Logger
}

func NewLogDeliverer(log *slog.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(_ context.Context, msg model.EmailMessage) error {
	d.log.Info("email not sent, smtp disabled",
		"message_id", msg.ID, "kind", msg.Kind, "to", msg.To, "order_number", msg.OrderNumber)
	return nil
}

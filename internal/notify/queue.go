package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

const (
	EmailQueue    = "notifications.email"
	EmailDLX      = "notifications.dlx"
	EmailDLQQueue = "notifications.dlq"
)

// Publisher is the part of *amqp.Channel the queue deliverer needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueDeliverer publishes email jobs to RabbitMQ for the email worker.
type QueueDeliverer struct {
	ch Publisher
}

func NewQueueDeliverer(ch Publisher) *QueueDeliverer {
	return &QueueDeliverer{ch: ch}
}

func (d *QueueDeliverer) Deliver(ctx context.Context, msg model.EmailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email job: %w", err)
	}
	err = d.ch.PublishWithContext(ctx, "", EmailQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID,
		Type:         string(msg.Kind),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/notify"
)

const idempotencyTTL = 24 * time.Hour

// Consumer is the part of *amqp.Channel the worker reads from.
type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// IdempotencyStore remembers which email jobs were already delivered.
type IdempotencyStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type redisIdempotency struct{ client *redis.Client }

func NewRedisIdempotency(client *redis.Client) IdempotencyStore {
	return &redisIdempotency{client: client}
}

func (r *redisIdempotency) Seen(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, "email_sent:"+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisIdempotency) Mark(ctx context.Context, id string) error {
	return r.client.Set(ctx, "email_sent:"+id, "1", idempotencyTTL).Err()
}

// EmailWorker consumes queued email jobs and hands them to a Deliverer,
// usually SMTP.
type EmailWorker struct {
	channel   Consumer
	deliverer notify.Deliverer
	seen      IdempotencyStore
	log       *slog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewEmailWorker builds a worker. seen may be nil, in which case duplicate
// deliveries are not detected.
func NewEmailWorker(ch Consumer, deliverer notify.Deliverer, seen IdempotencyStore, log *slog.Logger) *EmailWorker {
	return &EmailWorker{
		channel:   ch,
		deliverer: deliverer,
		seen:      seen,
		log:       log,
		done:      make(chan struct{}),
	}
}

// SetupRabbitMQ declares the email queue and its dead-letter exchange and queue.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(notify.EmailDLX, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(notify.EmailDLQQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(notify.EmailDLQQueue, notify.EmailQueue, notify.EmailDLX, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(notify.EmailQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    notify.EmailDLX,
		"x-dead-letter-routing-key": notify.EmailQueue,
	}); err != nil {
		return fmt.Errorf("declare email queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *EmailWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(notify.EmailQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("email worker started", "queue", notify.EmailQueue)
	return nil
}

// Stop ends consumption and waits for the message in hand to finish.
func (w *EmailWorker) Stop() {
	close(w.done)
	w.wg.Wait()
}

func (w *EmailWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var job model.EmailMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		w.log.Error("unmarshal email job", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("message_id", job.ID, "kind", job.Kind, "order_id", job.OrderID)

	if w.seen != nil {
		seen, err := w.seen.Seen(ctx, job.ID)
		if err != nil {
			log.Error("check idempotency key", "error", err)
			_ = msg.Nack(false, true)
			return
		}
		if seen {
			log.Info("email already sent, skipping")
			_ = msg.Ack(false)
			return
		}
	}

	if err := w.deliverer.Deliver(ctx, job); err != nil {
		// One retry through the queue, then the dead-letter queue.
		requeue := !msg.Redelivered
		log.Error("deliver email failed", "error", err, "requeue", requeue)
		_ = msg.Nack(false, requeue)
		return
	}

	if w.seen != nil {
		if err := w.seen.Mark(ctx, job.ID); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}

	_ = msg.Ack(false)
	log.Info("email sent", "to", job.To)
}

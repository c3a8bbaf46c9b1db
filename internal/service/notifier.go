package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderCancelled     EventType = "order.cancelled"
)

const (
	RoomAdmin            = "admin"
	defaultNotifyTimeout = 30 * time.Second
)

// UserRoom is the real-time room of a single account.
func UserRoom(userID uuid.UUID) string { return "user:" + userID.String() }

// Event is a snapshot of an order change handed to the notifier.
type Event struct {
	Type           EventType
	Order          model.Order
	Invoice        *model.Invoice
	PreviousStatus model.OrderStatus
	Note           string
}

// EventPayload is what real-time subscribers receive.
type EventPayload struct {
	OrderID        uuid.UUID           `json:"orderId"`
	OrderNumber    string              `json:"orderNumber"`
	Status         model.OrderStatus   `json:"status"`
	PreviousStatus model.OrderStatus   `json:"previousStatus,omitempty"`
	PaymentStatus  model.PaymentStatus `json:"paymentStatus"`
	Total          decimal.Decimal     `json:"total"`
	RefundAmount   decimal.Decimal     `json:"refundAmount"`
	CustomerName   string              `json:"customerName"`
	InvoiceNumber  string              `json:"invoiceNumber,omitempty"`
	Note           string              `json:"note,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *model.Order, invoice *model.Invoice) error
	SendOrderStatusUpdate(ctx context.Context, order *model.Order, note string) error
	SendOrderCancellation(ctx context.Context, order *model.Order) error
}

type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, payload any) error
}

// Notifier fans order events out to email and real-time subscribers. It
// never blocks or fails the caller.
type Notifier struct {
	email       EmailSender
	broadcaster Broadcaster
	log         *slog.Logger
	timeout     time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotifier(email EmailSender, broadcaster Broadcaster, log *slog.Logger) *Notifier {
	return &Notifier{email: email, broadcaster: broadcaster, log: log, timeout: defaultNotifyTimeout}
}

// Notify dispatches ev in the background on a context detached from ctx.
func (n *Notifier) Notify(ctx context.Context, ev Event) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warn("notifier closed, dropping event", "event", ev.Type, "order_id", ev.Order.ID)
		return
	}
	n.wg.Add(1)
	n.mu.Unlock()

	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		n.dispatch(ctx, ev)
	}()
}

func (n *Notifier) dispatch(ctx context.Context, ev Event) {
	log := n.log.With("event", ev.Type, "order_id", ev.Order.ID)

	var g errgroup.Group
	g.Go(guard(log, "email", func() error {
		return n.sendEmail(ctx, ev)
	}))
	g.Go(guard(log, "broadcast", func() error {
		payload := payloadFor(ev)
		var errs []error
		for _, room := range rooms(ev.Order) {
			if err := n.broadcaster.Broadcast(ctx, room, string(ev.Type), payload); err != nil {
				errs = append(errs, fmt.Errorf("room %s: %w", room, err))
			}
		}
		return errors.Join(errs...)
	}))
	_ = g.Wait()
}

// guard logs the failure or panic of one delivery channel so it cannot
// affect the others.
func guard(log *slog.Logger, channel string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", channel, r)
				log.Error("notification channel panicked", "channel", channel, "panic", r)
			}
		}()
		if err = fn(); err != nil {
			log.Error("notification channel failed", "channel", channel, "error", err)
		}
		return err
	}
}

func (n *Notifier) sendEmail(ctx context.Context, ev Event) error {
	if ev.Order.Customer.Email == "" {
		return nil
	}
	switch ev.Type {
	case EventOrderCreated:
		return n.email.SendOrderConfirmation(ctx, &ev.Order, ev.Invoice)
	case EventOrderStatusChanged:
		return n.email.SendOrderStatusUpdate(ctx, &ev.Order, ev.Note)
	case EventOrderCancelled:
		return n.email.SendOrderCancellation(ctx, &ev.Order)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// Close stops accepting events and waits for in-flight dispatches or ctx.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rooms(order model.Order) []string {
	out := []string{RoomAdmin}
	if order.UserID != nil {
		out = append(out, UserRoom(*order.UserID))
	}
	return out
}

func payloadFor(ev Event) EventPayload {
	p := EventPayload{
		OrderID:        ev.Order.ID,
		OrderNumber:    ev.Order.OrderNumber,
		Status:         ev.Order.Status,
		PreviousStatus: ev.PreviousStatus,
		PaymentStatus:  ev.Order.PaymentStatus,
		Total:          ev.Order.Total,
		RefundAmount:   ev.Order.RefundAmount,
		CustomerName:   ev.Order.Customer.Name,
		Note:           ev.Note,
		Timestamp:      ev.Order.UpdatedAt,
	}
	if ev.Invoice != nil {
		p.InvoiceNumber = ev.Invoice.InvoiceNumber
	}
	return p
}

// Package notify delivers order notifications: email through SMTP or a
// RabbitMQ queue, and real-time events through Redis pub/sub or an
// in-process hub.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

// Deliverer hands a rendered email job to its transport.
type Deliverer interface {
	Deliver(ctx context.Context, msg model.EmailMessage) error
}

// Mailer turns order events into email jobs for a Deliverer.
type Mailer struct {
	deliverer Deliverer
}

func NewMailer(d Deliverer) *Mailer {
	return &Mailer{deliverer: d}
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, order *model.Order, invoice *model.Invoice) error {
	msg := baseMessage(model.EmailOrderConfirmation, order)
	if invoice != nil {
		msg.InvoiceNo = invoice.InvoiceNumber
	}
	return m.deliverer.Deliver(ctx, msg)
}

func (m *Mailer) SendOrderStatusUpdate(ctx context.Context, order *model.Order, note string) error {
	msg := baseMessage(model.EmailOrderStatusUpdate, order)
	msg.Note = note
	return m.deliverer.Deliver(ctx, msg)
}

func (m *Mailer) SendOrderCancellation(ctx context.Context, order *model.Order) error {
	msg := baseMessage(model.EmailOrderCancellation, order)
	msg.Note = order.CancelReason
	if order.RefundAmount.IsPositive() {
		msg.Refund = order.RefundAmount.StringFixed(2)
	}
	return m.deliverer.Deliver(ctx, msg)
}

func baseMessage(kind model.EmailKind, order *model.Order) model.EmailMessage {
	return model.EmailMessage{
		ID:          uuid.NewString(),
		Kind:        kind,
		To:          order.Customer.Email,
		Name:        order.Customer.Name,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Total:       order.Total.StringFixed(2),
		Method:      order.PaymentMethod,
	}
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders a rupee amount with grouping, e.g. ₹1,250.00. The
// digits come from the decimal itself so large totals keep every paisa.
func FormatAmount(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	sign := ""
	if d.IsNegative() {
		sign, d = "-", d.Neg()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = printer.Sprintf("%d", n)
	}
	return sign + "₹" + whole + "." + frac
}

// Compose renders the subject and plain-text body of msg.
func Compose(msg model.EmailMessage, company string) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", msg.Name)

	switch msg.Kind {
	case model.EmailOrderConfirmation:
		subject = fmt.Sprintf("Order %s confirmed", msg.OrderNumber)
		fmt.Fprintf(&b, "Thank you for your order %s.\n", msg.OrderNumber)
		fmt.Fprintf(&b, "Order total: %s\n", FormatAmount(msg.Total))
		fmt.Fprintf(&b, "Payment method: %s\n", strings.ToUpper(string(msg.Method)))
		if msg.InvoiceNo != "" {
			fmt.Fprintf(&b, "Invoice: %s\n", msg.InvoiceNo)
		}
	case model.EmailOrderStatusUpdate:
		subject = fmt.Sprintf("Order %s is now %s", msg.OrderNumber, msg.Status)
		fmt.Fprintf(&b, "Your order %s is now %s.\n", msg.OrderNumber, msg.Status)
		if msg.Note != "" {
			fmt.Fprintf(&b, "Note: %s\n", msg.Note)
		}
	case model.EmailOrderCancellation:
		subject = fmt.Sprintf("Order %s cancelled", msg.OrderNumber)
		fmt.Fprintf(&b, "Your order %s has been cancelled.\n", msg.OrderNumber)
		if msg.Note != "" {
			fmt.Fprintf(&b, "Reason: %s\n", msg.Note)
		}
		if msg.Refund != "" {
			fmt.Fprintf(&b, "A refund of %s will be issued to your original payment method.\n", FormatAmount(msg.Refund))
		}
	default:
		subject = fmt.Sprintf("Update on order %s", msg.OrderNumber)
	}

	fmt.Fprintf(&b, "\nRegards,\n%s\n", company)
	return subject, b.String()
}

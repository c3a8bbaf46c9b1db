package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

const invoicePrefix = "HKM-INV"

// QREncoder renders content as an image data URI.
type QREncoder interface {
	Encode(content string) (string, error)
}

type InvoiceService struct {
	invoices   repository.InvoiceRepository
	qr         QREncoder
	baseDomain string
	company    string
	log        *slog.Logger
	now        func() time.Time
}

func NewInvoiceService(invoices repository.InvoiceRepository, qr QREncoder, baseDomain, company string, log *slog.Logger) *InvoiceService {
	return &InvoiceService{
		invoices:   invoices,
		qr:         qr,
		baseDomain: strings.TrimRight(baseDomain, "/"),
		company:    company,
		log:        log,
		now:        time.Now,
	}
}

// Generate derives and stores the invoice for order. It runs inside the
// caller's transaction when ctx carries one. A QR failure leaves QRCode nil.
func (s *InvoiceService) Generate(ctx context.Context, order *model.Order) (*model.Invoice, error) {
	now := s.now().UTC()
	day := now.Format("2006-0102")
	seq, err := s.invoices.NextSequence(ctx, day)
	if err != nil {
		return nil, unavailable("next invoice number", err)
	}
	number := fmt.Sprintf("%s-%s-%03d", invoicePrefix, day, seq)
	url := s.baseDomain + "/invoice/" + number

	payload, err := json.Marshal(model.InvoiceQRPayload{
		InvoiceID:       number,
		CustomerName:    order.Customer.Name,
		TotalAmount:     order.Total.StringFixed(2),
		VerificationURL: url,
		GeneratedAt:     now.Format(time.RFC3339),
		Company:         s.company,
		Type:            model.InvoiceVerificationType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}

	invoice := &model.Invoice{
		InvoiceNumber:   number,
		OrderID:         order.ID,
		UserID:          order.UserID,
		CustomerName:    order.Customer.Name,
		CustomerEmail:   order.Customer.Email,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Tax:             order.Tax,
		Discount:        order.Discount,
		Total:           order.Total,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		QRCode:          s.encodeQR(number, url),
		QRPayload:       string(payload),
		VerificationURL: url,
		GeneratedAt:     now,
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, unavailable("create invoice", err)
	}
	return invoice, nil
}

func (s *InvoiceService) encodeQR(number, url string) *string {
	if s.qr == nil {
		return nil
	}
	img, err := s.qr.Encode(url)
	if err != nil {
		s.log.Warn("qr generation failed, invoice stored without qr", "invoice_number", number, "error", err)
		return nil
	}
	return &img
}

// Verify resolves the identifier carried by a QR code. It accepts the
// invoice number or the invoice uuid.
func (s *InvoiceService) Verify(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var (
		invoice *model.Invoice
		err     error
	)
	if id, parseErr := uuid.Parse(invoiceID); parseErr == nil {
		invoice, err = s.invoices.GetByID(ctx, id)
	} else {
		invoice, err = s.invoices.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(invoiceID)))
	}
	if err != nil {
		return nil, unavailable("get invoice", err)
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *InvoiceService) GetByID(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoices.GetByID(ctx, id)
	return s.visible(actor, invoice, err)
}

func (s *InvoiceService) GetByOrderID(ctx context.Context, actor Actor, orderID uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.invoices.GetByOrderID(ctx, orderID)
	return s.visible(actor, invoice, err)
}

func (s *InvoiceService) visible(actor Actor, invoice *model.Invoice, err error) (*model.Invoice, error) {
	if err != nil {
		return nil, unavailable("get invoice", err)
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if !actor.canSee(invoice.UserID) {
		return nil, ErrAccessDenied
	}
	return invoice, nil
}

func (s *InvoiceService) ListByUser(ctx context.Context, actor Actor, page pagination.Params) (pagination.Page[model.Invoice], error) {
	invoices, total, err := s.invoices.ListByUser(ctx, actor.UserID, page)
	if err != nil {
		return pagination.Page[model.Invoice]{}, unavailable("list invoices", err)
	}
	return pagination.NewPage(invoices, total, page), nil
}

// RegenerateQR re-renders the QR image from the stored verification URL, so
// the code keeps resolving to the same invoice.
func (s *InvoiceService) RegenerateQR(ctx context.Context, actor Actor, id uuid.UUID) (*model.Invoice, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	invoice, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get invoice", err)
	}
	if invoice == nil {
		return nil, ErrInvoiceNotFound
	}
	if s.qr == nil {
		return nil, fmt.Errorf("%w: qr encoder not configured", ErrDependencyUnavailable)
	}
	img, err := s.qr.Encode(invoice.VerificationURL)
	if err != nil {
		return nil, unavailable("encode qr", err)
	}
	if err := s.invoices.UpdateQR(ctx, id, &img); err != nil {
		return nil, unavailable("update invoice qr", err)
	}
	invoice.QRCode = &img
	return invoice, nil
}

// SyncPaymentStatus copies the order's payment status onto its invoice.
func (s *InvoiceService) SyncPaymentStatus(ctx context.Context, order *model.Order) error {
	if order.InvoiceID == nil {
		return nil
	}
	err := s.invoices.UpdatePaymentStatus(ctx, *order.InvoiceID, order.PaymentStatus)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Warn("order references a missing invoice", "order_id", order.ID, "invoice_id", *order.InvoiceID)
		return nil
	}
	if err != nil {
		return unavailable("sync invoice payment status", err)
	}
	return nil
}

package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber || existing.OrderID == inv.OrderID {
			return fmt.Errorf("insert invoice: %w", repository.ErrDuplicate)
		}
	}
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now().UTC()
	inv.UpdatedAt = inv.CreatedAt
	r.s.invoices[inv.ID] = cloneInvoice(*inv)
	record(ctx, restore(r.s.invoices, inv.ID, model.Invoice{}, false))
	return nil
}

func (r *invoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.find(func(inv model.Invoice) bool { return inv.ID == id })
}

func (r *invoiceRepo) GetByNumber(_ context.Context, number string) (*model.Invoice, error) {
	return r.find(func(inv model.Invoice) bool { return inv.InvoiceNumber == number })
}

func (r *invoiceRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	return r.find(func(inv model.Invoice) bool { return inv.OrderID == orderID })
}

func (r *invoiceRepo) find(match func(model.Invoice) bool) (*model.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, inv := range r.s.invoices {
		if match(inv) {
			inv = cloneInvoice(inv)
			return &inv, nil
		}
	}
	return nil, nil
}

func (r *invoiceRepo) ListByUser(_ context.Context, userID uuid.UUID, page pagination.Params) ([]model.Invoice, int, error) {
	r.s.mu.Lock()
	var matched []model.Invoice
	for _, inv := range r.s.invoices {
		if inv.UserID != nil && *inv.UserID == userID {
			matched = append(matched, cloneInvoice(inv))
		}
	}
	r.s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].GeneratedAt.After(matched[j].GeneratedAt)
	})
	return pagination.Slice(matched, page), len(matched), nil
}

func (r *invoiceRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	return r.update(ctx, id, func(inv *model.Invoice) { inv.PaymentStatus = status })
}

func (r *invoiceRepo) UpdateQR(ctx context.Context, id uuid.UUID, qrCode *string) error {
	return r.update(ctx, id, func(inv *model.Invoice) { inv.QRCode = clonePtr(qrCode) })
}

func (r *invoiceRepo) update(ctx context.Context, id uuid.UUID, mutate func(*model.Invoice)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.invoices[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := cloneInvoice(prev)
	mutate(&next)
	next.UpdatedAt = time.Now().UTC()
	r.s.invoices[id] = next
	record(ctx, restore(r.s.invoices, id, prev, true))
	return nil
}

func (r *invoiceRepo) NextSequence(ctx context.Context, day string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, existed := r.s.counters[day]
	r.s.counters[day] = prev + 1
	record(ctx, restore(r.s.counters, day, prev, existed))
	return prev + 1, nil
}

func cloneInvoice(inv model.Invoice) model.Invoice {
	inv.Items = slices.Clone(inv.Items)
	inv.UserID = clonePtr(inv.UserID)
	inv.QRCode = clonePtr(inv.QRCode)
	return inv
}

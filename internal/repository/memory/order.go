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

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, order *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, o := range r.s.orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("insert order: %w", repository.ErrDuplicate)
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	r.s.orders[order.ID] = cloneOrder(*order)
	record(ctx, restore(r.s.orders, order.ID, model.Order{}, false))
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

// GetForUpdate needs no row lock: transactions are already serialized.
func (r *orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) List(_ context.Context, filter model.OrderFilter, page pagination.Params) ([]model.Order, int, error) {
	r.s.mu.Lock()
	matched := make([]model.Order, 0)
	for _, o := range r.s.orders {
		if filter.UserID != nil && !o.OwnedBy(*filter.UserID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	r.s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return pagination.Slice(matched, page), len(matched), nil
}

func (r *orderRepo) Update(ctx context.Context, order *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := cloneOrder(prev)
	next.Status = order.Status
	next.PaymentStatus = order.PaymentStatus
	next.InvoiceID = clonePtr(order.InvoiceID)
	next.CancelReason = order.CancelReason
	next.RefundAmount = order.RefundAmount
	next.DeliveredAt = clonePtr(order.DeliveredAt)
	next.CancelledAt = clonePtr(order.CancelledAt)
	next.UpdatedAt = time.Now().UTC()
	r.s.orders[order.ID] = next
	record(ctx, restore(r.s.orders, order.ID, prev, true))
	order.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *orderRepo) AppendHistory(ctx context.Context, orderID uuid.UUID, change model.StatusChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	next := cloneOrder(prev)
	next.StatusHistory = append(next.StatusHistory, change)
	r.s.orders[orderID] = next
	record(ctx, restore(r.s.orders, orderID, prev, true))
	return nil
}

// cloneOrder copies the slices and pointers so callers never share state
// with the store.
func cloneOrder(o model.Order) model.Order {
	o.Items = slices.Clone(o.Items)
	o.StatusHistory = slices.Clone(o.StatusHistory)
	o.UserID = clonePtr(o.UserID)
	o.InvoiceID = clonePtr(o.InvoiceID)
	o.DeliveredAt = clonePtr(o.DeliveredAt)
	o.CancelledAt = clonePtr(o.CancelledAt)
	return o
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

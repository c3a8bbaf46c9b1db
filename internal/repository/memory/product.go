package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

type productRepo struct{ s *Store }

func (r *productRepo) Create(ctx context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p.ID = uuid.New()
	p.SalesCount = 0
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.s.products[p.ID] = *p
	record(ctx, restore(r.s.products, p.ID, model.Product{}, false))
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *productRepo) GetForUpdate(_ context.Context, ids []uuid.UUID) ([]model.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(ids))
	var out []model.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *productRepo) List(_ context.Context, filter model.ProductFilter, page pagination.Params) ([]model.Product, int, error) {
	r.s.mu.Lock()
	matched := make([]model.Product, 0, len(r.s.products))
	search := strings.ToLower(filter.Search)
	for _, p := range r.s.products {
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !p.Active {
			continue
		}
		matched = append(matched, p)
	}
	r.s.mu.Unlock()

	less := productLess(filter.Sort)
	desc := filter.Order != "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})
	return pagination.Slice(matched, page), len(matched), nil
}

func productLess(field string) func(a, b model.Product) bool {
	switch field {
	case "name":
		return func(a, b model.Product) bool { return a.Name < b.Name }
	case "price":
		return func(a, b model.Product) bool { return a.Price.LessThan(b.Price) }
	case "sales_count":
		return func(a, b model.Product) bool { return a.SalesCount < b.SalesCount }
	default:
		return func(a, b model.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func (r *productRepo) Update(ctx context.Context, p *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.products[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := prev
	next.Name = p.Name
	next.Description = p.Description
	next.Price = p.Price
	next.Category = p.Category
	next.Active = p.Active
	next.UpdatedAt = time.Now().UTC()
	r.s.products[p.ID] = next
	record(ctx, restore(r.s.products, p.ID, prev, true))
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *productRepo) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := prev
	next.Stock = stock
	next.UpdatedAt = time.Now().UTC()
	r.s.products[id] = next
	record(ctx, restore(r.s.products, id, prev, true))
	return nil
}

func (r *productRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := prev
	next.Active = false
	next.UpdatedAt = time.Now().UTC()
	r.s.products[id] = next
	record(ctx, restore(r.s.products, id, prev, true))
	return nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.products[id]
	if !ok || prev.Stock+delta < 0 {
		return fmt.Errorf("adjust stock for product %s: %w", id, repository.ErrStockConflict)
	}
	next := prev
	next.Stock += delta
	next.SalesCount = max(next.SalesCount-delta, 0)
	next.UpdatedAt = time.Now().UTC()
	r.s.products[id] = next
	record(ctx, restore(r.s.products, id, prev, true))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

// StockLedger owns every change to product stock and sales counters.
type StockLedger struct {
	tx       repository.Transactor
	products repository.ProductRepository
	log      *slog.Logger
}

func NewStockLedger(tx repository.Transactor, products repository.ProductRepository, log *slog.Logger) *StockLedger {
	return &StockLedger{tx: tx, products: products, log: log}
}

// Reserve takes stock for every line or for none of them. All lines are
// validated before the first decrement.
func (l *StockLedger) Reserve(ctx context.Context, lines []model.StockLine) error {
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := l.products.GetForUpdate(ctx, lineIDs(merged))
		if err != nil {
			return unavailable("lock products", err)
		}
		byID := make(map[uuid.UUID]model.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		for _, line := range merged {
			p, ok := byID[line.ProductID]
			switch {
			case !ok:
				return fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
			case !p.Active:
				return fmt.Errorf("%w: %s", ErrProductInactive, p.Name)
			case p.Stock < line.Quantity:
				return fmt.Errorf("%w: %s has %d left, %d requested", ErrInsufficientStock, p.Name, p.Stock, line.Quantity)
			}
		}

		for _, line := range merged {
			if err := l.products.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					return fmt.Errorf("%w: %s", ErrInsufficientStock, line.ProductID)
				}
				return unavailable("reserve stock", err)
			}
		}
		return nil
	})
}

// Release returns stock taken by Reserve. Lines that cannot be applied are
// logged and skipped; only storage failures are returned.
func (l *StockLedger) Release(ctx context.Context, lines []model.StockLine) error {
	return l.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, line := range sumLines(lines) {
			if line.Quantity <= 0 {
				l.log.Warn("skipping stock release with non-positive quantity",
					"product_id", line.ProductID, "quantity", line.Quantity)
				continue
			}
			err := l.products.AdjustStock(ctx, line.ProductID, line.Quantity)
			if errors.Is(err, repository.ErrStockConflict) {
				l.log.Warn("skipping stock release for unknown product", "product_id", line.ProductID)
				continue
			}
			if err != nil {
				return unavailable("release stock", err)
			}
		}
		return nil
	})
}

// mergeLines sums duplicate products, keeping first-seen order, and rejects
// empty input and non-positive quantities.
func mergeLines(lines []model.StockLine) ([]model.StockLine, error) {
	if len(lines) == 0 {
		return nil, validationError("at least one item is required")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, validationError("item product is required")
		}
		if line.Quantity <= 0 {
			return nil, validationError("quantity for product %s must be positive", line.ProductID)
		}
	}
	return sumLines(lines), nil
}

func sumLines(lines []model.StockLine) []model.StockLine {
	index := make(map[uuid.UUID]int, len(lines))
	out := make([]model.StockLine, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

func lineIDs(lines []model.StockLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

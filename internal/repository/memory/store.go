// Package memory is an in-process implementation of the repository
// interfaces. It backs the service when STORE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

// Store holds every collection behind one mutex. Transactions are
// serialized and undone from a per-transaction log on error.
type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	products map[uuid.UUID]model.Product
	users    map[uuid.UUID]model.User
	orders   map[uuid.UUID]model.Order
	invoices map[uuid.UUID]model.Invoice
	counters map[string]int
}

func New() *Store {
	return &Store{
		products: make(map[uuid.UUID]model.Product),
		users:    make(map[uuid.UUID]model.User),
		orders:   make(map[uuid.UUID]model.Order),
		invoices: make(map[uuid.UUID]model.Invoice),
		counters: make(map[string]int),
	}
}

func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }
func (s *Store) Users() repository.UserRepository       { return &userRepo{s: s} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{s: s} }
func (s *Store) Invoices() repository.InvoiceRepository { return &invoiceRepo{s: s} }
func (s *Store) Transactor() repository.Transactor      { return &transactor{s: s} }

type txKey struct{}

type txLog struct{ undo []func() }

type transactor struct{ s *Store }

func (t *transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txLog); ok {
		return fn(ctx)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	log := &txLog{}
	if err := fn(context.WithValue(ctx, txKey{}, log)); err != nil {
		t.s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		t.s.mu.Unlock()
		return err
	}
	return nil
}

// record registers an undo step for the transaction carried by ctx.
// Callers hold s.mu.
func record(ctx context.Context, undo func()) {
	if log, ok := ctx.Value(txKey{}).(*txLog); ok {
		log.undo = append(log.undo, undo)
	}
}

// restore returns an undo step that puts prev back under key, or removes
// the key when it did not exist.
func restore[K comparable, V any](m map[K]V, key K, prev V, existed bool) func() {
	return func() {
		if existed {
			m[key] = prev
		} else {
			delete(m, key)
		}
	}
}

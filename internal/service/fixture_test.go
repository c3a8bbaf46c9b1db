package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeQR struct{ err error }

func (f fakeQR) Encode(content string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "data:image/png;base64," + content, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingNotifier) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	ledger   *StockLedger
	invoices *InvoiceService
	products *ProductService
	orders   *OrderService
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fakeQR{}, Pricing{})
}

func newFixtureWith(t *testing.T, qr QREncoder, pricing Pricing) *fixture {
	t.Helper()
	log := discardLogger()
	store := memory.New()
	f := &fixture{store: store, notifier: &recordingNotifier{}}
	f.ledger = NewStockLedger(store.Transactor(), store.Products(), log)
	f.invoices = NewInvoiceService(store.Invoices(), qr, "https://harekrishnamedical.com/", "Hare Krishna Medical", log)
	f.products = NewProductService(store.Products(), nil, log)
	f.orders = NewOrderService(OrderDeps{
		Tx:       store.Transactor(),
		Orders:   store.Orders(),
		Products: store.Products(),
		Users:    store.Users(),
		Ledger:   f.ledger,
		Invoices: f.invoices,
		Cache:    f.products,
		Notifier: f.notifier,
		Pricing:  pricing,
		Log:      log,
	})
	return f
}

func (f *fixture) addProduct(t *testing.T, name string, price int64, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name: name, Price: decimal.NewFromInt(price), Stock: stock,
		Category: model.CategoryMedicines, Active: true,
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) product(t *testing.T, p *model.Product) *model.Product {
	t.Helper()
	found, err := f.store.Products().GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	return found
}

func (f *fixture) addUser(t *testing.T, role model.Role) Actor {
	t.Helper()
	u := &model.User{
		Email: role.String() + "@example.com", Phone: "9876543210",
		FirstName: "Radha", LastName: "Sharma", Role: role, Active: true,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return Actor{UserID: u.ID, Role: role}
}

func testAddress() model.Address {
	return model.Address{Line1: "12 MG Road", City: "Surat", State: "Gujarat", PostalCode: "395003"}
}

func guestInput(lines ...model.StockLine) CreateOrderInput {
	return CreateOrderInput{
		Customer:        model.Contact{Name: "Guest Buyer", Email: "guest@example.com"},
		Items:           lines,
		ShippingAddress: testAddress(),
		PaymentMethod:   model.PaymentMethodCOD,
	}
}

func line(p *model.Product, qty int) model.StockLine {
	return model.StockLine{ProductID: p.ID, Quantity: qty}
}

var errBoom = errors.New("boom")

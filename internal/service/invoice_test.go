package service

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
)

var invoiceNumberPattern = regexp.MustCompile(`^HKM-INV-\d{4}-\d{4}-\d{3}$`)

func TestInvoiceService_NumbersAreSequentialPerDay(t *testing.T) {
	f := newFixture(t)
	f.invoices.now = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	p := f.addProduct(t, "Crocin", 20, 10)

	_, first, err := f.orders.CreateOrder(context.Background(), guestInput(line(p, 1)))
	require.NoError(t, err)
	_, second, err := f.orders.CreateOrder(context.Background(), guestInput(line(p, 1)))
	require.NoError(t, err)

	assert.Regexp(t, invoiceNumberPattern, first.InvoiceNumber)
	assert.Equal(t, "HKM-INV-2026-1016-001", first.InvoiceNumber)
	assert.Equal(t, "HKM-INV-2026-1016-002", second.InvoiceNumber)

	f.invoices.now = func() time.Time { return time.Date(2026, 10, 17, 0, 0, 1, 0, time.UTC) }
	_, next, err := f.orders.CreateOrder(context.Background(), guestInput(line(p, 1)))
	require.NoError(t, err)
	assert.Equal(t, "HKM-INV-2026-1017-001", next.InvoiceNumber)
}

func TestInvoiceService_QRPayload(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Crocin", 50, 10)

	order, invoice, err := f.orders.CreateOrder(context.Background(), guestInput(line(p, 3)))
	require.NoError(t, err)

	wantURL := "https://harekrishnamedical.com/invoice/" + invoice.InvoiceNumber
	assert.Equal(t, wantURL, invoice.VerificationURL)
	require.NotNil(t, invoice.QRCode)
	assert.Equal(t, "data:image/png;base64,"+wantURL, *invoice.QRCode)

	var payload model.InvoiceQRPayload
	require.NoError(t, json.Unmarshal([]byte(invoice.QRPayload), &payload))
	assert.Equal(t, invoice.InvoiceNumber, payload.InvoiceID)
	assert.Equal(t, "Guest Buyer", payload.CustomerName)
	assert.Equal(t, "150.00", payload.TotalAmount)
	assert.Equal(t, wantURL, payload.VerificationURL)
	assert.Equal(t, "Hare Krishna Medical", payload.Company)
	assert.Equal(t, "invoice_verification", payload.Type)
	_, err = time.Parse(time.RFC3339, payload.GeneratedAt)
	assert.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(invoice.QRPayload), &raw))
	assert.Len(t, raw, 7)
	assert.Equal(t, order.ID, invoice.OrderID)
}

func TestInvoiceService_KeepsPunctuationInCustomerName(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "Crocin", 50, 10)

	in := guestInput(line(p, 1))
	in.Customer.Name = "Anita D'Souza & Co"
	in.Notes = "<i>Ring twice</i> & wait"
	order, invoice, err := f.orders.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "Anita D'Souza & Co", order.Customer.Name)
	assert.Equal(t, "Ring twice & wait", order.Notes)
	assert.Equal(t, "Anita D'Souza & Co", invoice.CustomerName)

	var payload model.InvoiceQRPayload
	require.NoError(t, json.Unmarshal([]byte(invoice.QRPayload), &payload))
	assert.Equal(t, "Anita D'Souza & Co", payload.CustomerName)
}

func TestInvoiceService_QRFailureKeepsInvoice(t *testing.T) {
	f := newFixtureWith(t, fakeQR{err: errBoom}, Pricing{})
	ctx := context.Background()
	admin := f.addUser(t, model.RoleAdmin)
	p := f.addProduct(t, "Crocin", 50, 10)

	order, invoice, err := f.orders.CreateOrder(ctx, guestInput(line(p, 1)))
	require.NoError(t, err)
	assert.Nil(t, invoice.QRCode)
	assert.NotEmpty(t, invoice.QRPayload)
	assert.Equal(t, 9, f.product(t, p).Stock)

	stored, err := f.invoices.GetByOrderID(ctx, admin, order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.QRCode)

	_, err = f.invoices.RegenerateQR(ctx, admin, invoice.ID)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	f.invoices.qr = fakeQR{}
	regenerated, err := f.invoices.RegenerateQR(ctx, admin, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, regenerated.QRCode)
	assert.Equal(t, invoice.QRPayload, regenerated.QRPayload)

	verified, err := f.invoices.Verify(ctx, invoice.InvoiceNumber)
	require.NoError(t, err)
	assert.NotNil(t, verified.QRCode)
}

func TestInvoiceService_Verify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "Crocin", 50, 10)
	_, invoice, err := f.orders.CreateOrder(ctx, guestInput(line(p, 1)))
	require.NoError(t, err)

	byNumber, err := f.invoices.Verify(ctx, invoice.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, byNumber.ID)

	byID, err := f.invoices.Verify(ctx, invoice.ID.String())
	require.NoError(t, err)
	assert.Equal(t, invoice.InvoiceNumber, byID.InvoiceNumber)

	_, err = f.invoices.Verify(ctx, "HKM-INV-1999-0101-001")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestInvoiceService_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.addUser(t, model.RoleCustomer)
	stranger := Actor{UserID: uuid.New(), Role: model.RoleCustomer}
	p := f.addProduct(t, "Crocin", 50, 10)

	_, invoice, err := f.orders.CreateOrder(ctx, CreateOrderInput{
		Actor: &owner, Items: []model.StockLine{line(p, 1)},
		ShippingAddress: testAddress(), PaymentMethod: model.PaymentMethodCOD,
	})
	require.NoError(t, err)

	_, err = f.invoices.GetByID(ctx, owner, invoice.ID)
	assert.NoError(t, err)
	_, err = f.invoices.GetByID(ctx, stranger, invoice.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = f.invoices.GetByID(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
	_, err = f.invoices.RegenerateQR(ctx, owner, invoice.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)

	page, err := f.invoices.ListByUser(ctx, owner, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = f.invoices.ListByUser(ctx, stranger, pagination.Params{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.NotNil(t, page.Items)
}

package service

import (
	"context"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

const (
	orderNumberPrefix = "HKM-ORD-"
	defaultCountry    = "India"
)

var tracer = otel.Tracer("github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/service")

// Pricing holds the store-wide shipping and tax rules.
type Pricing struct {
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
	TaxRate               decimal.Decimal
}

func (p Pricing) shipping(subtotal decimal.Decimal) decimal.Decimal {
	if p.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		return decimal.Zero
	}
	return p.ShippingFee
}

func (p Pricing) tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(p.TaxRate).Round(2)
}

// ProductCache is invalidated for every product whose stock changed.
type ProductCache interface {
	InvalidateCache(ctx context.Context, ids ...uuid.UUID)
}

// EventNotifier receives order events after they are committed.
type EventNotifier interface {
	Notify(ctx context.Context, ev Event)
}

type OrderDeps struct {
	Tx       repository.Transactor
	Orders   repository.OrderRepository
	Products repository.ProductRepository
	Users    repository.UserRepository
	Ledger   *StockLedger
	Invoices *InvoiceService
	Cache    ProductCache
	Notifier EventNotifier
	Pricing  Pricing
	Log      *slog.Logger
}

type OrderService struct {
	tx        repository.Transactor
	orders    repository.OrderRepository
	products  repository.ProductRepository
	users     repository.UserRepository
	ledger    *StockLedger
	invoices  *InvoiceService
	cache     ProductCache
	notifier  EventNotifier
	pricing   Pricing
	sanitizer *bluemonday.Policy
	log       *slog.Logger
	now       func() time.Time
}

func NewOrderService(d OrderDeps) *OrderService {
	return &OrderService{
		tx:        d.Tx,
		orders:    d.Orders,
		products:  d.Products,
		users:     d.Users,
		ledger:    d.Ledger,
		invoices:  d.Invoices,
		cache:     d.Cache,
		notifier:  d.Notifier,
		pricing:   d.Pricing,
		sanitizer: bluemonday.StrictPolicy(),
		log:       d.Log,
		now:       time.Now,
	}
}

type CreateOrderInput struct {
	// Actor is nil for guest checkout.
	Actor           *Actor
	Customer        model.Contact
	Items           []model.StockLine
	ShippingAddress model.Address
	PaymentMethod   model.PaymentMethod
	Notes           string
}

// CreateOrder reserves stock, stores the order and its invoice in one
// transaction, then notifies. Nothing is persisted when any step fails.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, *model.Invoice, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	order, err := s.draftOrder(ctx, in)
	if err != nil {
		return nil, nil, spanError(span, err)
	}
	lines := order.StockLines()

	var invoice *model.Invoice
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Reserve(ctx, lines); err != nil {
			return err
		}
		if err := s.snapshotItems(ctx, order, lines); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return unavailable("create order", err)
		}

		inv, err := s.invoices.Generate(ctx, order)
		if err != nil {
			return err
		}
		invoice = inv
		order.InvoiceID = &inv.ID
		if err := s.orders.Update(ctx, order); err != nil {
			return unavailable("link invoice", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, spanError(span, err)
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.number", order.OrderNumber),
	)
	s.log.Info("order created",
		"order_id", order.ID, "order_number", order.OrderNumber,
		"invoice_number", invoice.InvoiceNumber, "total", order.Total.StringFixed(2))

	s.cache.InvalidateCache(ctx, lineIDs(lines)...)
	s.notifier.Notify(ctx, Event{Type: EventOrderCreated, Order: *order, Invoice: invoice})
	return order, invoice, nil
}

// draftOrder validates the request and fills everything that does not need
// the catalog.
func (s *OrderService) draftOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	merged, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}
	if !in.PaymentMethod.IsValid() {
		return nil, validationError("unknown payment method %q", in.PaymentMethod)
	}
	addr, err := normalizeAddress(in.ShippingAddress)
	if err != nil {
		return nil, err
	}
	contact, userID, err := s.resolveContact(ctx, in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	items := make([]model.OrderItem, 0, len(merged))
	for _, line := range merged {
		items = append(items, model.OrderItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	var actorID *uuid.UUID
	if in.Actor != nil {
		actorID = &in.Actor.UserID
	}
	return &model.Order{
		OrderNumber:     orderNumberPrefix + ulid.Make().String(),
		UserID:          userID,
		Customer:        contact,
		Items:           items,
		ShippingAddress: addr,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   model.PaymentStatusPending,
		Status:          model.OrderStatusPending,
		Notes:           s.sanitize(in.Notes),
		StatusHistory: []model.StatusChange{{
			Status: model.OrderStatusPending, Timestamp: now, Note: "Order placed", ActorID: actorID,
		}},
	}, nil
}

// resolveContact snapshots the account's contact details for registered
// users, letting the request fill blanks. The account must exist and be
// active. Guests must supply name and email.
func (s *OrderService) resolveContact(ctx context.Context, in CreateOrderInput) (model.Contact, *uuid.UUID, error) {
	contact := model.Contact{
		Name:  strings.TrimSpace(s.sanitize(in.Customer.Name)),
		Email: strings.ToLower(strings.TrimSpace(in.Customer.Email)),
		Phone: strings.TrimSpace(in.Customer.Phone),
	}

	var userID *uuid.UUID
	if in.Actor != nil {
		id := in.Actor.UserID
		userID = &id
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			return model.Contact{}, nil, unavailable("get user", err)
		}
		if user == nil {
			return model.Contact{}, nil, ErrUserNotFound
		}
		if !user.Active {
			return model.Contact{}, nil, ErrAccessDenied
		}
		if name := user.FullName(); name != "" {
			contact.Name = name
		}
		if user.Email != "" {
			contact.Email = user.Email
		}
		if user.Phone != "" {
			contact.Phone = user.Phone
		}
	}

	if contact.Name == "" || contact.Email == "" {
		return model.Contact{}, nil, validationError("customer name and email are required")
	}
	return contact, userID, nil
}

func normalizeAddress(a model.Address) (model.Address, error) {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Line1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" {
		return model.Address{}, validationError("shipping address requires line1, city, state and postal code")
	}
	if a.Country == "" {
		a.Country = defaultCountry
	}
	return a, nil
}

// snapshotItems copies name and price from the catalog into the order items
// and computes the totals.
func (s *OrderService) snapshotItems(ctx context.Context, order *model.Order, lines []model.StockLine) error {
	products, err := s.products.GetForUpdate(ctx, lineIDs(lines))
	if err != nil {
		return unavailable("load products", err)
	}
	byID := make(map[uuid.UUID]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	subtotal := decimal.Zero
	for i := range order.Items {
		item := &order.Items[i]
		p, ok := byID[item.ProductID]
		if !ok {
			return ErrProductNotFound
		}
		item.ProductName = p.Name
		item.UnitPrice = p.Price
		item.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
	}

	order.Subtotal = subtotal
	order.ShippingCost = s.pricing.shipping(subtotal)
	order.Tax = s.pricing.tax(subtotal)
	order.Discount = decimal.Zero
	order.Total = order.ComputeTotal()
	return nil
}

// TransitionStatus moves an order along the status table. Admin only.
func (s *OrderService) TransitionStatus(ctx context.Context, actor Actor, orderID uuid.UUID, target model.OrderStatus, note string) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.TransitionStatus",
		trace.WithAttributes(attribute.String("order.id", orderID.String()), attribute.String("order.target_status", string(target))))
	defer span.End()

	if !actor.IsAdmin() {
		return nil, spanError(span, ErrAccessDenied)
	}
	if !target.IsValid() {
		return nil, spanError(span, validationError("unknown order status %q", target))
	}

	var (
		order *model.Order
		prev  model.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		prev = order.Status
		if !CanTransition(prev, target) {
			return invalidTransition(prev, target)
		}
		return s.apply(ctx, order, target, s.sanitize(note), &actor.UserID)
	})
	if err != nil {
		return nil, spanError(span, err)
	}

	s.log.Info("order status changed", "order_id", order.ID, "from", prev, "to", target, "actor_id", actor.UserID)
	s.afterTransition(ctx, order, prev)
	return order, nil
}

// Cancel is the customer-facing cancellation. Owners may cancel their own
// orders while they are pending or confirmed; admins may cancel any order in
// those states. It returns the refund owed.
func (s *OrderService) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID, reason string) (*model.Order, decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	reason = s.sanitize(reason)
	if reason == "" {
		reason = "Cancelled by customer"
	}

	var (
		order *model.Order
		prev  model.OrderStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !actor.canSee(order.UserID) {
			return ErrAccessDenied
		}
		prev = order.Status
		if !customerCancellable(prev) {
			return invalidTransition(prev, model.OrderStatusCancelled)
		}
		return s.apply(ctx, order, model.OrderStatusCancelled, reason, &actor.UserID)
	})
	if err != nil {
		return nil, decimal.Zero, spanError(span, err)
	}

	s.log.Info("order cancelled", "order_id", order.ID, "actor_id", actor.UserID, "refund", order.RefundAmount.StringFixed(2))
	s.afterTransition(ctx, order, prev)
	return order, order.RefundAmount, nil
}

// apply performs the transition and its side effects inside the caller's
// transaction.
func (s *OrderService) apply(ctx context.Context, order *model.Order, target model.OrderStatus, note string, actorID *uuid.UUID) error {
	now := s.now().UTC()
	paymentChanged := false

	switch target {
	case model.OrderStatusDelivered:
		order.DeliveredAt = &now
		if order.PaymentMethod == model.PaymentMethodCOD && order.PaymentStatus != model.PaymentStatusCompleted {
			order.PaymentStatus = model.PaymentStatusCompleted
			paymentChanged = true
		}
	case model.OrderStatusCancelled:
		if err := s.ledger.Release(ctx, order.StockLines()); err != nil {
			return err
		}
		order.CancelledAt = &now
		order.CancelReason = note
		if order.PaymentStatus == model.PaymentStatusCompleted {
			order.RefundAmount = order.Total
			order.PaymentStatus = model.PaymentStatusRefunded
			paymentChanged = true
		}
	}

	order.Status = target
	if err := s.orders.Update(ctx, order); err != nil {
		return unavailable("update order", err)
	}
	change := model.StatusChange{Status: target, Timestamp: now, Note: note, ActorID: actorID}
	if err := s.orders.AppendHistory(ctx, order.ID, change); err != nil {
		return unavailable("append status history", err)
	}
	order.StatusHistory = append(order.StatusHistory, change)

	if paymentChanged {
		return s.invoices.SyncPaymentStatus(ctx, order)
	}
	return nil
}

func (s *OrderService) afterTransition(ctx context.Context, order *model.Order, prev model.OrderStatus) {
	ev := Event{Type: EventOrderStatusChanged, Order: *order, PreviousStatus: prev}
	if n := len(order.StatusHistory); n > 0 {
		ev.Note = order.StatusHistory[n-1].Note
	}
	if order.Status == model.OrderStatusCancelled {
		ev.Type = EventOrderCancelled
		s.cache.InvalidateCache(ctx, lineIDs(order.StockLines())...)
	}
	s.notifier.Notify(ctx, ev)
}

// UpdatePaymentStatus records a payment outcome on the order and its
// invoice. Admin only.
func (s *OrderService) UpdatePaymentStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status model.PaymentStatus) (*model.Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if !status.IsValid() {
		return nil, validationError("unknown payment status %q", status)
	}

	var order *model.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.lockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		order.PaymentStatus = status
		if err := s.orders.Update(ctx, order); err != nil {
			return unavailable("update order", err)
		}
		return s.invoices.SyncPaymentStatus(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("payment status updated", "order_id", order.ID, "payment_status", status, "actor_id", actor.UserID)
	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, actor Actor, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, unavailable("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !actor.canSee(order.UserID) {
		return nil, ErrAccessDenied
	}
	return order, nil
}

// List returns the actor's own orders. Admins may pass all to see every
// order.
func (s *OrderService) List(ctx context.Context, actor Actor, all bool, status model.OrderStatus, page pagination.Params) (pagination.Page[model.Order], error) {
	if status != "" && !status.IsValid() {
		return pagination.Page[model.Order]{}, validationError("unknown order status %q", status)
	}
	if all && !actor.IsAdmin() {
		return pagination.Page[model.Order]{}, ErrAccessDenied
	}

	filter := model.OrderFilter{Status: status}
	if !all {
		filter.UserID = &actor.UserID
	}
	orders, total, err := s.orders.List(ctx, filter, page)
	if err != nil {
		return pagination.Page[model.Order]{}, unavailable("list orders", err)
	}
	return pagination.NewPage(orders, total, page), nil
}

func (s *OrderService) lockOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetForUpdate(ctx, id)
	if err != nil {
		return nil, unavailable("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// sanitize strips markup and returns plain text. The policy escapes what it
// keeps, so entities are decoded again before the text is stored.
func (s *OrderService) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func invalidTransition(from, to model.OrderStatus) error {
	return &TransitionError{From: from, To: to}
}

// TransitionError is returned for a status change the table does not allow.
// It matches ErrInvalidStateTransition with errors.Is.
type TransitionError struct {
	From, To model.OrderStatus
}

func (e *TransitionError) Error() string {
	return ErrInvalidStateTransition.Error() + ": " + string(e.From) + " -> " + string(e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidStateTransition }

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

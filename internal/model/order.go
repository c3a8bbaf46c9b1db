package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned:
		return true
	default:
		return false
	}
}

type PaymentMethod string

const (
	PaymentMethodCOD        PaymentMethod = "cod"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetBanking PaymentMethod = "netbanking"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// Contact is the denormalized customer snapshot stored on every order.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          *uuid.UUID
	Customer        Contact
	Items           []OrderItem
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	Status          OrderStatus
	StatusHistory   []StatusChange
	InvoiceID       *uuid.UUID
	Notes           string
	CancelReason    string
	RefundAmount    decimal.Decimal
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem is a snapshot of the product at order time, not a live reference.
type OrderItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
	ActorID   *uuid.UUID  `json:"actorId,omitempty"`
}

// StockLines returns the ledger lines for the order's items.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, item := range o.Items {
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

// ComputeTotal returns subtotal + shipping + tax - discount.
func (o *Order) ComputeTotal() decimal.Decimal {
	return o.Subtotal.Add(o.ShippingCost).Add(o.Tax).Sub(o.Discount)
}

func (o *Order) OwnedBy(userID uuid.UUID) bool {
	return o.UserID != nil && *o.UserID == userID
}

type OrderFilter struct {
	UserID *uuid.UUID
	Status OrderStatus
}

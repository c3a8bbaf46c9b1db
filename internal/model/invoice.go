package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID              uuid.UUID
	InvoiceNumber   string
	OrderID         uuid.UUID
	UserID          *uuid.UUID
	CustomerName    string
	CustomerEmail   string
	Items           []OrderItem
	Subtotal        decimal.Decimal
	ShippingCost    decimal.Decimal
	Tax             decimal.Decimal
	Discount        decimal.Decimal
	Total           decimal.Decimal
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	QRCode          *string
	QRPayload       string
	VerificationURL string
	GeneratedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InvoiceQRPayload is the JSON document stored next to the QR image.
type InvoiceQRPayload struct {
	InvoiceID       string `json:"invoice_id"`
	CustomerName    string `json:"customer_name"`
	TotalAmount     string `json:"total_amount"`
	VerificationURL string `json:"verification_url"`
	GeneratedAt     string `json:"generated_at"`
	Company         string `json:"company"`
	Type            string `json:"type"`
}

const InvoiceVerificationType = "invoice_verification"

// EmailMessage is a queued notification email.
type EmailMessage struct {
	ID          string        `json:"id"`
	Kind        EmailKind     `json:"kind"`
	To          string        `json:"to"`
	Name        string        `json:"name"`
	OrderID     uuid.UUID     `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	Status      OrderStatus   `json:"status,omitempty"`
	Note        string        `json:"note,omitempty"`
	Total       string        `json:"total"`
	Refund      string        `json:"refund,omitempty"`
	InvoiceNo   string        `json:"invoice_number,omitempty"`
	Method      PaymentMethod `json:"payment_method,omitempty"`
}

type EmailKind string

const (
	EmailOrderConfirmation EmailKind = "order_confirmation"
	EmailOrderStatusUpdate EmailKind = "order_status_update"
	EmailOrderCancellation EmailKind = "order_cancellation"
)

package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
)

// --- Errors ---

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- User ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone" binding:"omitempty,min=10,max=15"`
	// Role is honoured only when an admin creates the account.
	Role string `json:"role" binding:"omitempty,oneof=customer admin"`
}

type UserResponse struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone,omitempty"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Role          model.Role `json:"role"`
	Active        bool       `json:"active"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func ToUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID: u.ID, Email: u.Email, Phone: u.Phone,
		FirstName: u.FirstName, LastName: u.LastName, Role: u.Role,
		Active: u.Active, EmailVerified: u.EmailVerified, CreatedAt: u.CreatedAt,
	}
}

// --- Product ---

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"min=0"`
	Category    model.Category  `json:"category" binding:"required"`
	Active      *bool           `json:"active"`
}

type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *model.Category  `json:"category"`
	Active      *bool            `json:"active"`
}

type ListProductsRequest struct {
	pagination.Params
	Search   string `form:"search"`
	Category string `form:"category"`
	// All includes inactive products; only admins may set it.
	All   bool   `form:"all"`
	Sort  string `form:"sort,default=created_at" binding:"oneof=name price created_at sales_count"`
	Order string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	SalesCount  int             `json:"salesCount"`
	Category    model.Category  `json:"category"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func ToProductResponse(p *model.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		SalesCount:  p.SalesCount,
		Category:    p.Category,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// --- Order ---

type OrderLineRequest struct {
	Product  uuid.UUID `json:"product" binding:"required"`
	Quantity int       `json:"quantity" binding:"required,min=1"`
}

type AddressRequest struct {
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country"`
}

type ContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}

type CreateOrderRequest struct {
	Items           []OrderLineRequest  `json:"items" binding:"required,min=1,dive"`
	ShippingAddress AddressRequest      `json:"shippingAddress"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod" binding:"required"`
	Customer        *ContactRequest     `json:"customer"`
	Notes           string              `json:"notes" binding:"max=500"`
}

func (r CreateOrderRequest) StockLines() []model.StockLine {
	lines := make([]model.StockLine, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, model.StockLine{ProductID: item.Product, Quantity: item.Quantity})
	}
	return lines
}

func (r CreateOrderRequest) Contact() model.Contact {
	if r.Customer == nil {
		return model.Contact{}
	}
	return model.Contact{Name: r.Customer.Name, Email: r.Customer.Email, Phone: r.Customer.Phone}
}

func (a AddressRequest) Model() model.Address {
	return model.Address{
		Line1: a.Line1, Line2: a.Line2, City: a.City,
		State: a.State, PostalCode: a.PostalCode, Country: a.Country,
	}
}

type UpdateStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
	Note   string            `json:"note" binding:"max=500"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type UpdatePaymentRequest struct {
	PaymentStatus model.PaymentStatus `json:"paymentStatus" binding:"required"`
}

type ListOrdersRequest struct {
	pagination.Params
	All    bool   `form:"all"`
	Status string `form:"status"`
}

type OrderResponse struct {
	ID              uuid.UUID            `json:"id"`
	OrderNumber     string               `json:"orderNumber"`
	UserID          *uuid.UUID           `json:"userId"`
	Customer        model.Contact        `json:"customer"`
	Items           []model.OrderItem    `json:"items"`
	ShippingAddress model.Address        `json:"shippingAddress"`
	PaymentMethod   model.PaymentMethod  `json:"paymentMethod"`
	PaymentStatus   model.PaymentStatus  `json:"paymentStatus"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	ShippingCost    decimal.Decimal      `json:"shippingCost"`
	Tax             decimal.Decimal      `json:"tax"`
	Discount        decimal.Decimal      `json:"discount"`
	Total           decimal.Decimal      `json:"total"`
	Status          model.OrderStatus    `json:"status"`
	StatusHistory   []model.StatusChange `json:"statusHistory"`
	InvoiceID       *uuid.UUID           `json:"invoiceId"`
	Notes           string               `json:"notes,omitempty"`
	CancelReason    string               `json:"cancelReason,omitempty"`
	RefundAmount    decimal.Decimal      `json:"refundAmount"`
	DeliveredAt     *time.Time           `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time           `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

func ToOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Customer:        o.Customer,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Tax:             o.Tax,
		Discount:        o.Discount,
		Total:           o.Total,
		Status:          o.Status,
		StatusHistory:   o.StatusHistory,
		InvoiceID:       o.InvoiceID,
		Notes:           o.Notes,
		CancelReason:    o.CancelReason,
		RefundAmount:    o.RefundAmount,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type CreateOrderResponse struct {
	Order   OrderResponse    `json:"order"`
	Invoice *InvoiceResponse `json:"invoice"`
}

type OrderEnvelope struct {
	Order OrderResponse `json:"order"`
}

type CancelOrderResponse struct {
	RefundAmount decimal.Decimal `json:"refundAmount"`
	Order        OrderResponse   `json:"order"`
}

// --- Invoice ---

type InvoiceResponse struct {
	ID              uuid.UUID           `json:"id"`
	InvoiceNumber   string              `json:"invoiceNumber"`
	OrderID         uuid.UUID           `json:"orderId"`
	UserID          *uuid.UUID          `json:"userId"`
	CustomerName    string              `json:"customerName"`
	CustomerEmail   string              `json:"customerEmail"`
	Items           []model.OrderItem   `json:"items"`
	Subtotal        decimal.Decimal     `json:"subtotal"`
	ShippingCost    decimal.Decimal     `json:"shippingCost"`
	Tax             decimal.Decimal     `json:"tax"`
	Discount        decimal.Decimal     `json:"discount"`
	Total           decimal.Decimal     `json:"total"`
	PaymentMethod   model.PaymentMethod `json:"paymentMethod"`
	PaymentStatus   model.PaymentStatus `json:"paymentStatus"`
	QRCode          *string             `json:"qrCode"`
	QRPayload       string              `json:"qrPayload"`
	VerificationURL string              `json:"verificationUrl"`
	GeneratedAt     time.Time           `json:"generatedAt"`
}

func ToInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		OrderID:         inv.OrderID,
		UserID:          inv.UserID,
		CustomerName:    inv.CustomerName,
		CustomerEmail:   inv.CustomerEmail,
		Items:           inv.Items,
		Subtotal:        inv.Subtotal,
		ShippingCost:    inv.ShippingCost,
		Tax:             inv.Tax,
		Discount:        inv.Discount,
		Total:           inv.Total,
		PaymentMethod:   inv.PaymentMethod,
		PaymentStatus:   inv.PaymentStatus,
		QRCode:          inv.QRCode,
		QRPayload:       inv.QRPayload,
		VerificationURL: inv.VerificationURL,
		GeneratedAt:     inv.GeneratedAt,
	}
}

// InvoiceVerificationResponse is the public view returned to QR scans. It
// carries no address or line items.
type InvoiceVerificationResponse struct {
	Valid         bool                `json:"valid"`
	InvoiceNumber string              `json:"invoiceNumber"`
	CustomerName  string              `json:"customerName"`
	Total         decimal.Decimal     `json:"total"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	ItemCount     int                 `json:"itemCount"`
	GeneratedAt   time.Time           `json:"generatedAt"`
}

func ToInvoiceVerification(inv *model.Invoice) InvoiceVerificationResponse {
	count := 0
	for _, item := range inv.Items {
		count += item.Quantity
	}
	return InvoiceVerificationResponse{
		Valid:         true,
		InvoiceNumber: inv.InvoiceNumber,
		CustomerName:  inv.CustomerName,
		Total:         inv.Total,
		PaymentStatus: inv.PaymentStatus,
		ItemCount:     count,
		GeneratedAt:   inv.GeneratedAt,
	}
}

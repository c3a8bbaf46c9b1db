package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/pagination"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*model.Invoice, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]model.Invoice, int, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error
	UpdateQR(ctx context.Context, id uuid.UUID, qrCode *string) error
	// NextSequence returns the next value of the per-day invoice counter,
	// starting at 1.
	NextSequence(ctx context.Context, day string) (int, error)
}

const invoiceColumns = `id, invoice_number, order_id, user_id, customer_name, customer_email, items,
	subtotal, shipping_cost, tax, discount, total, payment_method, payment_status,
	qr_code, qr_payload, verification_url, generated_at, created_at, updated_at`

type pgInvoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepository(pool *pgxpool.Pool) InvoiceRepository {
	return &pgInvoiceRepo{pool: pool}
}

func (r *pgInvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO invoices (id, invoice_number, order_id, user_id, customer_name, customer_email, items,
			subtotal, shipping_cost, tax, discount, total, payment_method, payment_status,
			qr_code, qr_payload, verification_url, generated_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.OrderID, inv.UserID, inv.CustomerName, inv.CustomerEmail, inv.Items,
		inv.Subtotal, inv.ShippingCost, inv.Tax, inv.Discount, inv.Total,
		string(inv.PaymentMethod), string(inv.PaymentStatus),
		inv.QRCode, inv.QRPayload, inv.VerificationURL, inv.GeneratedAt,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert invoice: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *pgInvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *pgInvoiceRepo) GetByNumber(ctx context.Context, number string) (*model.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
}

func (r *pgInvoiceRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*model.Invoice, error) {
	return r.get(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE order_id = $1`, orderID)
}

func (r *pgInvoiceRepo) get(ctx context.Context, query string, arg any) (*model.Invoice, error) {
	inv, err := scanInvoice(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *pgInvoiceRepo) ListByUser(ctx context.Context, userID uuid.UUID, page pagination.Params) ([]model.Invoice, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	page = page.Normalize()
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE user_id = $1 ORDER BY generated_at DESC LIMIT $2 OFFSET $3`,
		userID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, total, rows.Err()
}

func (r *pgInvoiceRepo) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status model.PaymentStatus) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE invoices SET payment_status = $2, updated_at = NOW() WHERE id = $1`, id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update invoice payment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgInvoiceRepo) UpdateQR(ctx context.Context, id uuid.UUID, qrCode *string) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE invoices SET qr_code = $2, updated_at = NOW() WHERE id = $1`, id, qrCode,
	)
	if err != nil {
		return fmt.Errorf("update invoice qr: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgInvoiceRepo) NextSequence(ctx context.Context, day string) (int, error) {
	var value int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`INSERT INTO invoice_counters (day, value) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET value = invoice_counters.value + 1
		 RETURNING value`, day,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next invoice sequence: %w", err)
	}
	return value, nil
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var method, payment string
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.OrderID, &inv.UserID, &inv.CustomerName, &inv.CustomerEmail, &inv.Items,
		&inv.Subtotal, &inv.ShippingCost, &inv.Tax, &inv.Discount, &inv.Total, &method, &payment,
		&inv.QRCode, &inv.QRPayload, &inv.VerificationURL, &inv.GeneratedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.PaymentMethod = model.PaymentMethod(method)
	inv.PaymentStatus = model.PaymentStatus(payment)
	return inv, nil
}

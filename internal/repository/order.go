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

type OrderRepository interface {
	// Create persists the order together with its items and initial history.
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	// GetForUpdate is GetByID with the order row locked until commit.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter, page pagination.Params) ([]model.Order, int, error)
	// Update writes the mutable order columns. Items are never rewritten.
	Update(ctx context.Context, order *model.Order) error
	AppendHistory(ctx context.Context, orderID uuid.UUID, change model.StatusChange) error
}

const orderColumns = `id, order_number, user_id, customer, shipping_address, payment_method, payment_status,
	subtotal, shipping_cost, tax, discount, total, status, invoice_id, notes, cancel_reason, refund_amount,
	delivered_at, cancelled_at, created_at, updated_at`

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	q := conn(ctx, r.pool)
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	err := q.QueryRow(ctx,
		`INSERT INTO orders (id, order_number, user_id, customer, shipping_address, payment_method, payment_status,
			subtotal, shipping_cost, tax, discount, total, status, invoice_id, notes, refund_amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW(), NOW())
		 RETURNING created_at, updated_at`,
		order.ID, order.OrderNumber, order.UserID, order.Customer, order.ShippingAddress,
		string(order.PaymentMethod), string(order.PaymentStatus),
		order.Subtotal, order.ShippingCost, order.Tax, order.Discount, order.Total,
		string(order.Status), order.InvoiceID, order.Notes, order.RefundAmount,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert order: %w", ErrDuplicate)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		_, err = q.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, product_name, unit_price, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.LineTotal,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	for _, change := range order.StatusHistory {
		if err := r.AppendHistory(ctx, order.ID, change); err != nil {
			return err
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *pgOrderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *pgOrderRepo) get(ctx context.Context, query string, id uuid.UUID) (*model.Order, error) {
	order, err := scanOrder(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Items, err = r.items(ctx, order.ID); err != nil {
		return nil, err
	}
	if order.StatusHistory, err = r.history(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) List(ctx context.Context, filter model.OrderFilter, page pagination.Params) ([]model.Order, int, error) {
	where := `WHERE ($1::uuid IS NULL OR user_id = $1) AND ($2 = '' OR status = $2)`
	args := []any{filter.UserID, string(filter.Status)}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	page = page.Normalize()
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		append(args, page.Limit, page.Offset())...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	for i := range orders {
		if orders[i].Items, err = r.items(ctx, orders[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *pgOrderRepo) Update(ctx context.Context, order *model.Order) error {
	err := conn(ctx, r.pool).QueryRow(ctx,
		`UPDATE orders SET status = $2, payment_status = $3, invoice_id = $4, cancel_reason = $5,
			refund_amount = $6, delivered_at = $7, cancelled_at = $8, updated_at = NOW()
		 WHERE id = $1 RETURNING updated_at`,
		order.ID, string(order.Status), string(order.PaymentStatus), order.InvoiceID, order.CancelReason,
		order.RefundAmount, order.DeliveredAt, order.CancelledAt,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) AppendHistory(ctx context.Context, orderID uuid.UUID, change model.StatusChange) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, note, actor_id, created_at) VALUES ($1, $2, $3, $4, $5)`,
		orderID, string(change.Status), change.Note, change.ActorID, change.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) items(ctx context.Context, orderID uuid.UUID) ([]model.OrderItem, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT product_id, product_name, unit_price, quantity, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY position`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgOrderRepo) history(ctx context.Context, orderID uuid.UUID) ([]model.StatusChange, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT status, note, actor_id, created_at FROM order_status_history WHERE order_id = $1 ORDER BY id`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("get status history: %w", err)
	}
	defer rows.Close()

	var history []model.StatusChange
	for rows.Next() {
		var (
			change model.StatusChange
			status string
		)
		if err := rows.Scan(&status, &change.Note, &change.ActorID, &change.Timestamp); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		change.Status = model.OrderStatus(status)
		history = append(history, change)
	}
	return history, rows.Err()
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var method, payment, status string
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Customer, &o.ShippingAddress, &method, &payment,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.Total, &status, &o.InvoiceID,
		&o.Notes, &o.CancelReason, &o.RefundAmount, &o.DeliveredAt, &o.CancelledAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.PaymentStatus = model.PaymentStatus(payment)
	o.Status = model.OrderStatus(status)
	return o, nil
}

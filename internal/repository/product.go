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

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// GetForUpdate loads the products and, inside a transaction, locks them
	// until commit. Missing ids are absent from the result.
	GetForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Product, error)
	List(ctx context.Context, filter model.ProductFilter, page pagination.Params) ([]model.Product, int, error)
	// Update writes the catalog fields. Stock and sales are left alone; they
	// only move through SetStock and AdjustStock.
	Update(ctx context.Context, product *model.Product) error
	// SetStock overwrites the on-hand quantity with an absolute value.
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// AdjustStock atomically adds delta to stock and subtracts it from the
	// sales counter. A negative delta that would drive stock below zero
	// returns ErrStockConflict.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

const productColumns = `id, name, description, price, stock, sales_count, category, active, created_at, updated_at`

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	product.ID = uuid.New()
	query := `INSERT INTO products (id, name, description, price, stock, sales_count, category, active, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, 0, $6, $7, NOW(), NOW()) RETURNING created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.Stock,
		string(product.Category), product.Active,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(conn(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) GetForUpdate(ctx context.Context, ids []uuid.UUID) ([]model.Product, error) {
	// Fixed lock order avoids deadlocks between orders touching the same products.
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	rows, err := conn(ctx, r.pool).Query(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (r *pgProductRepo) List(ctx context.Context, filter model.ProductFilter, page pagination.Params) ([]model.Product, int, error) {
	allowedSorts := map[string]bool{"name": true, "price": true, "created_at": true, "sales_count": true}
	sort := filter.Sort
	if !allowedSorts[sort] {
		sort = "created_at"
	}
	order := filter.Order
	if order != "asc" && order != "desc" {
		order = "desc"
	}

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
		AND ($2 = '' OR category = $2)
		AND (NOT $3 OR active)`
	args := []any{filter.Search, string(filter.Category), filter.ActiveOnly}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY %s %s LIMIT $4 OFFSET $5`,
		productColumns, where, sort, order)
	page = page.Normalize()
	rows, err := conn(ctx, r.pool).Query(ctx, query, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	query := `UPDATE products SET name=$2, description=$3, price=$4, category=$5, active=$6, updated_at=NOW()
			  WHERE id=$1 RETURNING updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price,
		string(product.Category), product.Active,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products SET stock=$2, updated_at=NOW() WHERE id=$1`, id, stock)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProductRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	ct, err := conn(ctx, r.pool).Exec(ctx, `UPDATE products SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProductRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	ct, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE products
		 SET stock = stock + $2, sales_count = GREATEST(sales_count - $2, 0), updated_at = NOW()
		 WHERE id = $1 AND stock + $2 >= 0`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("adjust stock for product %s: %w", id, ErrStockConflict)
	}
	return nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	var category string
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.SalesCount,
		&category, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = model.Category(category)
	return p, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

const userColumns = `id, email, phone, password_hash, first_name, last_name, role, active, email_verified, created_at, updated_at`

type pgUserRepo struct{ pool *pgxpool.Pool }

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepo{pool: pool}
}

func (r *pgUserRepo) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	query := `INSERT INTO users (id, email, phone, password_hash, first_name, last_name, role, active, email_verified, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			  RETURNING created_at, updated_at`
	err := conn(ctx, r.pool).QueryRow(ctx, query,
		user.ID, user.Email, user.Phone, user.PasswordHash, user.FirstName, user.LastName,
		user.Role.String(), user.Active, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	user := &model.User{}
	var role string
	err := row.Scan(
		&user.ID, &user.Email, &user.Phone, &user.PasswordHash, &user.FirstName, &user.LastName,
		&role, &user.Active, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.Role, err = model.ParseRole(role); err != nil {
		return nil, err
	}
	return user, nil
}

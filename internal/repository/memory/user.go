package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user: %w", repository.ErrDuplicate)
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	record(ctx, restore(r.s.users, user.ID, model.User{}, false))
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/dto"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/model"
	"github.com/Ronak-Sheladiya/Hare-Krishna-Medical-sub002/internal/repository"
)

var ErrUserNotFound = errors.New("user not found")

// UserService manages accounts. Tokens are minted elsewhere; this service
// only creates and reads users.
type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Register creates a customer account. Only an admin actor may create
// another admin.
func (s *UserService) Register(ctx context.Context, actor *Actor, req dto.RegisterRequest) (*dto.UserResponse, error) {
	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, validationError("%v", err)
	}
	if role == model.RoleAdmin && (actor == nil || !actor.IsAdmin()) {
		return nil, ErrAccessDenied
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, unavailable("check user", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email: email, Phone: strings.TrimSpace(req.Phone), PasswordHash: string(hashed),
		FirstName: strings.TrimSpace(req.FirstName), LastName: strings.TrimSpace(req.LastName),
		Role: role, Active: true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, unavailable("create user", err)
	}

	resp := dto.ToUserResponse(user)
	return &resp, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, unavailable("get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

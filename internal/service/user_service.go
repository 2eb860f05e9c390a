package service

import (
	"context"

	"rtchat/internal/domain"
)

// UserService provides the user directory behind the contact sidebar.
type UserService struct {
	users domain.UserRepository
}

func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) ListActive(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListActive(ctx)
}

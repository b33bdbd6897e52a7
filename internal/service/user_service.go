package service

import (
	"context"

	"github.com/mbeoliero/tutorchat/internal/repository"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/sdk"
)

// UserService handles user-related business logic
type UserService struct {
	userRepo *repository.UserRepo
}

// NewUserService creates a new UserService
func NewUserService(userRepo *repository.UserRepo) *UserService {
	return &UserService{userRepo: userRepo}
}

// GetUserInfo gets user info by Id
func (s *UserService) GetUserInfo(ctx context.Context, userId string) (*sdk.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, userId)
	if err != nil {
		return nil, errcode.ErrUserNotFound
	}
	return user.ToUserInfo(), nil
}

package service

import (
	"context"
	"errors"

	"github.com/mbeoliero/kit/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbeoliero/tutorchat/internal/config"
	"github.com/mbeoliero/tutorchat/internal/entity"
	"github.com/mbeoliero/tutorchat/internal/repository"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/sdk"
)

// AuthService handles authentication logic
type AuthService struct {
	userRepo *repository.UserRepo
	cfg      *config.Config
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepo, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	UserId   string `json:"user_id" validate:"required"`
	Name     string `json:"name"`
	Role     string `json:"role" validate:"required,oneof=student tutor"`
	Password string `json:"password" validate:"required"`
	Avatar   string `json:"avatar,omitempty"`
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*sdk.UserInfo, error) {
	if err := sdk.Validator().Struct(req); err != nil {
		return nil, errcode.ErrInvalidParam.Wrap(err)
	}
	if s.userRepo.Exists(ctx, req.UserId) {
		return nil, errcode.ErrUserExists
	}

	// Hash password with bcrypt
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	name := req.Name
	if name == "" {
		name = req.UserId
	}
	user := &entity.User{
		Id:        req.UserId,
		Name:      name,
		Role:      req.Role,
		Avatar:    req.Avatar,
		Password:  string(hashedPassword),
		CreatedAt: entity.NowUnixMilli(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user registered: user_id=%s, role=%s", user.Id, user.Role)
	return user.ToUserInfo(), nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(ctx context.Context, req *sdk.LoginRequest) (*sdk.LoginResponse, error) {
	if req.UserId == "" {
		return nil, errcode.ErrInvalidParam
	}

	user, err := s.userRepo.GetById(ctx, req.UserId)
	if errors.Is(err, repository.ErrRecordNotFound) {
		log.CtxDebug(ctx, "user not found: user_id=%s", req.UserId)
		return nil, errcode.ErrUserNotFound
	}
	if err != nil {
		return nil, errcode.ErrInternalServer
	}

	// Verify password with bcrypt
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrPasswordWrong
	}

	token, err := jwt.GenerateToken(user.Id, user.Role, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user logged in: user_id=%s", user.Id)
	return &sdk.LoginResponse{
		Token: token,
		User:  user.ToUserInfo(),
	}, nil
}

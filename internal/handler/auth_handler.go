package handler

import (
	"net/http"

	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/response"
	"github.com/mbeoliero/tutorchat/sdk"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req service.RegisterRequest
	if err := bindJSON(r, &req); err != nil {
		response.ErrorWithCode(ctx, w, errcode.ErrInvalidParam)
		return
	}

	userInfo, err := h.authService.Register(ctx, &req)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, userInfo)
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req sdk.LoginRequest
	if err := bindJSON(r, &req); err != nil {
		response.ErrorWithCode(ctx, w, errcode.ErrInvalidParam)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, resp)
}

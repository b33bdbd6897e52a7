package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbeoliero/tutorchat/internal/middleware"
	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/response"
	"github.com/mbeoliero/tutorchat/sdk"
)

// Presence reports whether a user has a live socket
type Presence interface {
	IsOnline(ctx context.Context, userId string) bool
}

// UserHandler handles user-related requests
type UserHandler struct {
	userService *service.UserService
	presence    Presence
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *service.UserService, presence Presence) *UserHandler {
	return &UserHandler{userService: userService, presence: presence}
}

// GetUserInfo returns the authenticated user
func (h *UserHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	info, err := h.userService.GetUserInfo(ctx, userId)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, info)
}

// GetOnlineStatus reports whether a user is connected
func (h *UserHandler) GetOnlineStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := chi.URLParam(r, "id")
	if _, err := h.userService.GetUserInfo(ctx, userId); err != nil {
		response.Error(ctx, w, err)
		return
	}

	online := h.presence != nil && h.presence.IsOnline(ctx, userId)
	response.Success(ctx, w, &sdk.OnlineStatus{UserId: userId, Online: online})
}

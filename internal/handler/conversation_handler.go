package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mbeoliero/tutorchat/internal/middleware"
	"github.com/mbeoliero/tutorchat/internal/service"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/response"
	"github.com/mbeoliero/tutorchat/sdk"
)

// ConversationHandler handles conversation-related requests
type ConversationHandler struct {
	convService *service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{convService: convService}
}

// GetConversationList handles get conversation list request
func (h *ConversationHandler) GetConversationList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	response.Success(ctx, w, h.convService.GetUserConversations(ctx, userId))
}

// CreateConversation creates or returns the conversation of a contact request
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	var req sdk.CreateConversationRequest
	if err := bindJSON(r, &req); err != nil || req.RequestId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.convService.CreateConversation(ctx, userId, req.RequestId)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, conv)
}

// MarkRead handles mark read request
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	if err := h.convService.MarkRead(ctx, userId, chi.URLParam(r, "id")); err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, nil)
}

// CloseConversation handles close request
func (h *ConversationHandler) CloseConversation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	conv, err := h.convService.CloseConversation(ctx, userId, chi.URLParam(r, "id"))
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, conv)
}

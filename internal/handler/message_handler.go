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

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService *service.MessageService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService) *MessageHandler {
	return &MessageHandler{msgService: msgService}
}

// SendMessage handles send message request
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	var req sdk.SendMessageRequest
	if err := bindJSON(r, &req); err != nil {
		response.ErrorWithCode(ctx, w, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.SendMessage(ctx, userId, chi.URLParam(r, "id"), &req)
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, msg)
}

// GetMessages handles paged history request
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userId := middleware.GetUserId(ctx)
	if userId == "" {
		response.ErrorWithCode(ctx, w, errcode.ErrUnauthorized)
		return
	}

	page, err := h.msgService.GetMessages(ctx, userId, chi.URLParam(r, "id"), queryInt(r, "page", 1), queryInt(r, "limit", 0))
	if err != nil {
		response.Error(ctx, w, err)
		return
	}

	response.Success(ctx, w, page)
}

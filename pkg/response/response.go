package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/tutorchat/pkg/errcode"
)

// Response represents a standard API response
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func write(ctx context.Context, w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.CtxWarn(ctx, "write response failed: %v", err)
	}
}

// Success sends a success response
func Success(ctx context.Context, w http.ResponseWriter, data any) {
	write(ctx, w, http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response. Errors without a code are reported as internal.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	var e *errcode.Error
	if errors.As(err, &e) {
		ErrorWithCode(ctx, w, e)
		return
	}

	log.CtxWarn(ctx, "uncoded error: %v", err)
	write(ctx, w, http.StatusOK, Response{
		Code: errcode.ErrInternalServer.Code,
		Msg:  err.Error(),
	})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, w http.ResponseWriter, e *errcode.Error) {
	write(ctx, w, http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

// Unauthorized sends a 401 unauthorized response
func Unauthorized(ctx context.Context, w http.ResponseWriter, e *errcode.Error) {
	write(ctx, w, http.StatusUnauthorized, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

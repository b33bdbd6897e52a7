package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mbeoliero/tutorchat/pkg/constant"
	"github.com/mbeoliero/tutorchat/pkg/errcode"
	"github.com/mbeoliero/tutorchat/pkg/jwt"
	"github.com/mbeoliero/tutorchat/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
)

type ctxKey int

const claimsKey ctxKey = iota

// TokenFromRequest extracts the bearer token, falling back to the token query parameter
// used by socket handshakes
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get(AuthorizationHeader); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimPrefix(h, BearerPrefix)
	}
	return r.URL.Query().Get(constant.QueryToken)
}

// JWTAuth is the JWT authentication middleware
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get(AuthorizationHeader)
			if authHeader == "" {
				response.Unauthorized(ctx, w, errcode.ErrTokenMissing)
				return
			}
			if !strings.HasPrefix(authHeader, BearerPrefix) {
				response.Unauthorized(ctx, w, errcode.ErrTokenInvalid)
				return
			}

			claims, err := jwt.ParseToken(strings.TrimPrefix(authHeader, BearerPrefix), secret)
			if err != nil {
				response.Unauthorized(ctx, w, errcode.ErrTokenInvalid)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// WithClaims stores the authenticated claims in ctx
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaims gets the authenticated claims from ctx
func GetClaims(ctx context.Context) *jwt.Claims {
	claims, _ := ctx.Value(claimsKey).(*jwt.Claims)
	return claims
}

// GetUserId gets user Id from ctx
func GetUserId(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.UserId
	}
	return ""
}

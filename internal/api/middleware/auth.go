package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/jobhouse/server/internal/api/render"
	"github.com/jobhouse/server/internal/auth"
)

// CallerResolver loads the account a token subject currently refers to.
// It returns auth.ErrUnknownUser when the account is gone.
type CallerResolver interface {
	ResolveCaller(ctx context.Context, userID string) (auth.Caller, error)
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context. The role comes from the stored account, not the token.
func Authenticate(manager *auth.JWTManager, resolver CallerResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil || resolver == nil {
				render.Error(w, r, http.StatusUnauthorized, render.MsgUnauthorized, auth.ErrMissingToken)
				return
			}
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil || token == "" {
				render.Error(w, r, http.StatusUnauthorized, "Missing or malformed authorization header", auth.ErrMissingToken)
				return
			}
			claims, err := manager.Validate(token)
			if err != nil {
				render.Error(w, r, http.StatusUnauthorized, "Invalid or expired token", err)
				return
			}
			caller, err := resolver.ResolveCaller(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, auth.ErrUnknownUser) {
					render.Error(w, r, http.StatusUnauthorized, "Invalid or expired token", err)
					return
				}
				render.Internal(w, r, err)
				return
			}
			ctx := auth.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.CallerFrom(r.Context())
		if !ok {
			render.Error(w, r, http.StatusUnauthorized, render.MsgUnauthorized, nil)
			return
		}
		if !caller.IsAdmin {
			render.Error(w, r, http.StatusForbidden, "Admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

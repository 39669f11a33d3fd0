package auth

import "context"

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID  string
	Role    Role
	IsAdmin bool
}

// NewCaller builds a Caller for an account with the given stored role.
func NewCaller(userID string, role string) Caller {
	r := NormalizeRole(role)
	return Caller{
		UserID:  userID,
		Role:    r,
		IsAdmin: r == RoleAdmin,
	}
}

type callerKey struct{}

func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by the authentication middleware.
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)
	return caller, ok && caller.UserID != ""
}

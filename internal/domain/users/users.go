package users

import (
	"errors"
	"time"

	"github.com/jobhouse/server/internal/auth"
)

// Error types for user domain operations
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAdmin           = errors.New("account is not an administrator")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRole        = errors.New("role must be user or admin")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const (
	// ConfirmationExpiry bounds how long an email confirmation link works.
	ConfirmationExpiry = 72 * time.Hour

	// ResetExpiry bounds how long a password reset link works.
	ResetExpiry = time.Hour

	MinPasswordLength = 8
)

// BcryptCost is the cost factor for bcrypt password hashing
var BcryptCost = 12

// TokenPurpose separates confirmation tokens from reset tokens.
type TokenPurpose string

const (
	PurposeConfirmEmail  TokenPurpose = "confirm_email"
	PurposeResetPassword TokenPurpose = "reset_password"
)

type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	Role           auth.Role
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == auth.RoleAdmin
}

// Token is a single-use credential. Only the hash of the emailed value is stored.
type Token struct {
	Hash      string
	UserID    string
	Purpose   TokenPurpose
	ExpiresAt time.Time
}

type Registration struct {
	Name     string
	Email    string
	Password string
}

// Update is an admin partial update. Nil fields are left unchanged.
type Update struct {
	Name  *string
	Email *string
	Role  *string
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      User
}

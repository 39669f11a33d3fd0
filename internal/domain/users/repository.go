package users

import (
	"context"
	"time"
)

// Repository persists users and their single-use tokens. Create and Update
// return ErrEmailTaken when the email belongs to another account.
type Repository interface {
	Create(ctx context.Context, user User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, update Update) (*User, error)
	Delete(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	MarkEmailConfirmed(ctx context.Context, id string) error

	SaveToken(ctx context.Context, token Token) error
	// ConsumeToken deletes and returns an unexpired token, or ErrInvalidToken.
	ConsumeToken(ctx context.Context, hash string, purpose TokenPurpose, now time.Time) (*Token, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Generate(subject, role string) (string, error)
	Expiry() time.Duration
}

// Mailer sends account emails.
type Mailer interface {
	SendEmailConfirmation(ctx context.Context, to, name, link string) error
	SendPasswordReset(ctx context.Context, to, name, link string, expiresIn time.Duration) error
}

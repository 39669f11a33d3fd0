package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jobhouse/server/internal/audit"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/listing"
	"github.com/jobhouse/server/internal/sanitize"
)

// Service handles accounts, logins and the email-driven token flows.
type Service struct {
	repo        Repository
	tokens      TokenIssuer
	mailer      Mailer
	auditLogger *audit.Logger
	frontendURL string
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(
	repo Repository,
	tokens TokenIssuer,
	mailer Mailer,
	auditLogger *audit.Logger,
	frontendURL string,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		tokens:      tokens,
		mailer:      mailer,
		auditLogger: auditLogger,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With().Str("component", "users").Logger(),
		now:         time.Now,
	}
}

// Register creates an ordinary account and emails a confirmation link.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	if len(reg.Password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, User{
		Name:         sanitize.Text(reg.Name),
		Email:        normalizeEmail(reg.Email),
		PasswordHash: string(hash),
		Role:         auth.RoleUser,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	link, err := s.issueLink(ctx, user.ID, PurposeConfirmEmail, ConfirmationExpiry, "confirm-email")
	if err != nil {
		return nil, err
	}
	if err := s.mailer.SendEmailConfirmation(ctx, user.Email, user.Name, link); err != nil {
		// The account exists either way; the user can request a new link by resetting.
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to send confirmation email")
	}
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("failed to get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(*user)
}

// AdminLogin is Login restricted to administrators.
func (s *Service) AdminLogin(ctx context.Context, email, password string) (Session, error) {
	session, err := s.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.auditLogger.LogFailure("admin.login", normalizeEmail(email), "", map[string]string{"reason": "invalid_credentials"})
		}
		return Session{}, err
	}
	if !session.User.IsAdmin() {
		s.auditLogger.LogFailure("admin.login", session.User.ID, "", map[string]string{"reason": "not_admin"})
		return Session{}, ErrNotAdmin
	}
	s.auditLogger.LogSuccess("admin.login", session.User.ID, "user", session.User.ID, "", nil)
	return session, nil
}

func (s *Service) session(user User) (Session, error) {
	token, err := s.tokens.Generate(user.ID, string(user.Role))
	if err != nil {
		return Session{}, fmt.Errorf("failed to issue token: %w", err)
	}
	return Session{
		Token:     token,
		ExpiresAt: s.now().Add(s.tokens.Expiry()),
		User:      user,
	}, nil
}

// Get retrieves a single user by ID
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	id, err := ids.Normalize(id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ResolveCaller maps a token subject to the account's current role. A token
// for a deleted account resolves to auth.ErrUnknownUser.
func (s *Service) ResolveCaller(ctx context.Context, userID string) (auth.Caller, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return auth.Caller{}, auth.ErrUnknownUser
		}
		return auth.Caller{}, err
	}
	return auth.NewCaller(user.ID, string(user.Role)), nil
}

// List returns every account.
func (s *Service) List(ctx context.Context) (listing.Result[User], error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return listing.Result[User]{}, fmt.Errorf("failed to list users: %w", err)
	}
	return listing.Of(items), nil
}

// Update applies an admin partial update.
func (s *Service) Update(ctx context.Context, id string, update Update, updatedBy string) (*User, error) {
	id, err := validID(id)
	if err != nil {
		return nil, err
	}
	if update.Role != nil && !auth.ValidRole(*update.Role) {
		return nil, ErrInvalidRole
	}
	if update.Name != nil {
		update.Name = sanitize.TextPtr(update.Name)
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		update.Email = &email
	}

	user, err := s.repo.Update(ctx, id, update)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, ErrEmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.auditLogger.LogSuccess("user.updated", updatedBy, "user", id, "", map[string]string{
		"email": user.Email,
		"role":  string(user.Role),
	})
	return user, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id, deletedBy string) error {
	id, err := validID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.auditLogger.LogSuccess("user.deleted", deletedBy, "user", id, "", nil)
	return nil
}

// ConfirmEmail marks the token's account as confirmed.
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	stored, err := s.repo.ConsumeToken(ctx, hashToken(token), PurposeConfirmEmail, s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to consume token: %w", err)
	}
	if err := s.repo.MarkEmailConfirmed(ctx, stored.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	return nil
}

// ForgotPassword emails a reset link when the account exists. It reports
// success either way so callers cannot discover registered addresses.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	link, err := s.issueLink(ctx, user.ID, PurposeResetPassword, ResetExpiry, "reset-password")
	if err != nil {
		return err
	}
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, link, ResetExpiry); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to send password reset email")
	}
	return nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	stored, err := s.repo.ConsumeToken(ctx, hashToken(token), PurposeResetPassword, s.now())
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to consume token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.SetPassword(ctx, stored.UserID, string(hash)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// EnsureAdmin creates the bootstrap administrator, or promotes and resets
// the password of an existing account with that email.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, bool, error) {
	if len(password) < MinPasswordLength {
		return nil, false, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return nil, false, fmt.Errorf("failed to hash password: %w", err)
	}
	email = normalizeEmail(email)

	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		role := string(auth.RoleAdmin)
		if _, err := s.repo.Update(ctx, existing.ID, Update{Role: &role}); err != nil {
			return nil, false, fmt.Errorf("failed to promote user: %w", err)
		}
		if err := s.repo.SetPassword(ctx, existing.ID, string(hash)); err != nil {
			return nil, false, fmt.Errorf("failed to update password: %w", err)
		}
		existing.Role = auth.RoleAdmin
		s.auditLogger.LogSuccess("admin.bootstrap", "system", "user", existing.ID, "", map[string]string{"created": "false"})
		return existing, false, nil
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	user, err := s.repo.Create(ctx, User{
		Name:           sanitize.Text(name),
		Email:          email,
		PasswordHash:   string(hash),
		Role:           auth.RoleAdmin,
		EmailConfirmed: true,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create admin: %w", err)
	}
	s.auditLogger.LogSuccess("admin.bootstrap", "system", "user", user.ID, "", map[string]string{"created": "true"})
	return user, true, nil
}

func (s *Service) issueLink(ctx context.Context, userID string, purpose TokenPurpose, ttl time.Duration, path string) (string, error) {
	token, err := generateSecureToken()
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveToken(ctx, Token{
		Hash:      hashToken(token),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: s.now().Add(ttl),
	}); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return fmt.Sprintf("%s/%s?token=%s", s.frontendURL, path, url.QueryEscape(token)), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validID(id string) (string, error) {
	normalized, err := ids.Normalize(id)
	if err != nil {
		return "", fmt.Errorf("user id %q: %w", id, err)
	}
	return normalized, nil
}

// generateSecureToken generates a cryptographically secure random token
// Returns a 32-byte token encoded as URL-safe base64 (43 characters)
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken creates a SHA-256 hash of a token for secure storage
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package users

import (
	"context"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jobhouse/server/internal/audit"
	"github.com/jobhouse/server/internal/auth"
	"github.com/jobhouse/server/internal/domain/ids"
	"github.com/jobhouse/server/internal/domain/listing"
)

func TestMain(m *testing.M) {
	BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type stubRepo struct {
	mu     sync.Mutex
	users  map[string]User
	tokens map[string]Token
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: map[string]User{}, tokens: map[string]Token{}}
}

func (s *stubRepo) emailTaken(email, except string) bool {
	for id, u := range s.users {
		if u.Email == email && id != except {
			return true
		}
	}
	return false
}

func (s *stubRepo) Create(_ context.Context, user User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(user.Email, "") {
		return nil, ErrEmailTaken
	}
	user.ID = ids.New()
	s.users[user.ID] = user
	return &user, nil
}

func (s *stubRepo) GetByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *stubRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *stubRepo) List(context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubRepo) Update(_ context.Context, id string, update Update) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if update.Email != nil && s.emailTaken(*update.Email, id) {
		return nil, ErrEmailTaken
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Role != nil {
		u.Role = auth.Role(*update.Role)
	}
	s.users[id] = u
	return &u, nil
}

func (s *stubRepo) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *stubRepo) SetPassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = hash
	s.users[id] = u
	return nil
}

func (s *stubRepo) MarkEmailConfirmed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.EmailConfirmed = true
	s.users[id] = u
	return nil
}

func (s *stubRepo) SaveToken(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.Hash] = token
	return nil
}

func (s *stubRepo) ConsumeToken(_ context.Context, hash string, purpose TokenPurpose, now time.Time) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.tokens[hash]
	if !ok || token.Purpose != purpose || !token.ExpiresAt.After(now) {
		return nil, ErrInvalidToken
	}
	delete(s.tokens, hash)
	return &token, nil
}

type sentMail struct {
	kind string
	to   string
	link string
}

type stubMailer struct {
	sent []sentMail
}

func (m *stubMailer) SendEmailConfirmation(_ context.Context, to, _, link string) error {
	m.sent = append(m.sent, sentMail{kind: "confirm", to: to, link: link})
	return nil
}

func (m *stubMailer) SendPasswordReset(_ context.Context, to, _, link string, _ time.Duration) error {
	m.sent = append(m.sent, sentMail{kind: "reset", to: to, link: link})
	return nil
}

type fixture struct {
	svc    *Service
	repo   *stubRepo
	mailer *stubMailer
	jwt    *auth.JWTManager
}

func newFixture() fixture {
	repo := newStubRepo()
	mailer := &stubMailer{}
	jwt := auth.NewJWTManager("test-secret", time.Hour, "jobhouse")
	return fixture{
		svc:    NewService(repo, jwt, mailer, audit.NewLogger(zerolog.Nop()), "https://jobhouse.example/", zerolog.Nop()),
		repo:   repo,
		mailer: mailer,
		jwt:    jwt,
	}
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestRegisterAndConfirm(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Register(context.Background(), Registration{Name: "Ada", Email: " Ada@Example.com ", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)
	require.Equal(t, auth.RoleUser, user.Role)
	require.False(t, user.EmailConfirmed)
	require.NotEqual(t, "correct horse", user.PasswordHash)

	require.Len(t, f.mailer.sent, 1)
	require.Equal(t, "confirm", f.mailer.sent[0].kind)
	require.Contains(t, f.mailer.sent[0].link, "https://jobhouse.example/confirm-email?token=")

	token := tokenFromLink(t, f.mailer.sent[0].link)
	require.NoError(t, f.svc.ConfirmEmail(context.Background(), token))

	stored, err := f.svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	require.True(t, stored.EmailConfirmed)

	// Tokens are single use.
	require.ErrorIs(t, f.svc.ConfirmEmail(context.Background(), token), ErrInvalidToken)
}

func TestRegisterRejects(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "short"})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), Registration{Email: "A@example.com", Password: "long enough"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	f := newFixture()
	user, err := f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)

	session, err := f.svc.Login(context.Background(), "A@example.com", "long enough")
	require.NoError(t, err)
	claims, err := f.jwt.Validate(session.Token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, "user", claims.Role)

	_, err = f.svc.Login(context.Background(), "a@example.com", "wrong password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "nobody@example.com", "long enough")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAdminLogin(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), Registration{Email: "user@example.com", Password: "long enough"})
	require.NoError(t, err)
	_, created, err := f.svc.EnsureAdmin(context.Background(), "Root", "root@example.com", "admin password")
	require.NoError(t, err)
	require.True(t, created)

	_, err = f.svc.AdminLogin(context.Background(), "user@example.com", "long enough")
	require.ErrorIs(t, err, ErrNotAdmin)

	session, err := f.svc.AdminLogin(context.Background(), "root@example.com", "admin password")
	require.NoError(t, err)
	require.True(t, session.User.IsAdmin())
}

func TestEnsureAdminPromotesExisting(t *testing.T) {
	f := newFixture()
	user, err := f.svc.Register(context.Background(), Registration{Email: "boss@example.com", Password: "long enough"})
	require.NoError(t, err)

	admin, created, err := f.svc.EnsureAdmin(context.Background(), "Boss", "boss@example.com", "new admin password")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, user.ID, admin.ID)

	_, err = f.svc.AdminLogin(context.Background(), "boss@example.com", "new admin password")
	require.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	require.Len(t, f.mailer.sent, 1)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@example.com"))
	require.Len(t, f.mailer.sent, 2)
	reset := f.mailer.sent[1]
	require.Equal(t, "reset", reset.kind)
	token := tokenFromLink(t, reset.link)

	require.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "short"), ErrWeakPassword)
	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "brand new password"))
	require.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "brand new password"), ErrInvalidToken)

	_, err = f.svc.Login(context.Background(), "a@example.com", "brand new password")
	require.NoError(t, err)
}

func TestResetTokenExpires(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	require.NoError(t, f.svc.ForgotPassword(context.Background(), "a@example.com"))
	token := tokenFromLink(t, f.mailer.sent[1].link)

	f.svc.now = func() time.Time { return time.Now().Add(2 * ResetExpiry) }

	require.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "brand new password"), ErrInvalidToken)
}

func TestConfirmTokenCannotReset(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	token := tokenFromLink(t, f.mailer.sent[0].link)

	require.ErrorIs(t, f.svc.ResetPassword(context.Background(), token, "brand new password"), ErrInvalidToken)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture()
	a, err := f.svc.Register(context.Background(), Registration{Name: "A", Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)
	_, err = f.svc.Register(context.Background(), Registration{Email: "b@example.com", Password: "long enough"})
	require.NoError(t, err)

	role := "admin"
	updated, err := f.svc.Update(context.Background(), a.ID, Update{Role: &role}, "root")
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, updated.Role)
	require.Equal(t, "A", updated.Name)

	bogus := "superuser"
	_, err = f.svc.Update(context.Background(), a.ID, Update{Role: &bogus}, "root")
	require.ErrorIs(t, err, ErrInvalidRole)

	taken := "B@example.com"
	_, err = f.svc.Update(context.Background(), a.ID, Update{Email: &taken}, "root")
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Update(context.Background(), "bad", Update{}, "root")
	require.ErrorIs(t, err, ids.ErrInvalidID)

	require.NoError(t, f.svc.Delete(context.Background(), a.ID, "root"))
	require.ErrorIs(t, f.svc.Delete(context.Background(), a.ID, "root"), ErrUserNotFound)

	_, err = f.svc.Get(context.Background(), a.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestList(t *testing.T) {
	f := newFixture()

	result, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, listing.Empty, result.Kind)

	_, err = f.svc.Register(context.Background(), Registration{Email: "a@example.com", Password: "long enough"})
	require.NoError(t, err)

	result, err = f.svc.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, listing.Found, result.Kind)
}

func TestHashToken(t *testing.T) {
	token, err := generateSecureToken()
	require.NoError(t, err)
	require.Len(t, token, 43)
	require.Len(t, hashToken(token), 64)
	require.Equal(t, hashToken(token), hashToken(token))
}

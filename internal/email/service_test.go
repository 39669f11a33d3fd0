package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jobhouse/server/internal/config"
)

func TestValidateEmailAddress(t *testing.T) {
	valid := []string{
		"user@example.com",
		"user+tag@example.co.uk",
		"User Name <user@example.com>",
	}
	for _, addr := range valid {
		require.NoError(t, validateEmailAddress(addr), addr)
	}

	invalid := []string{"", "notanemail", "@example.com", "user@", "user@@example.com"}
	for _, addr := range invalid {
		require.Error(t, validateEmailAddress(addr), addr)
	}
}

func TestValidateLink(t *testing.T) {
	require.NoError(t, validateLink("https://jobhouse.example/confirm?token=abc"))
	require.Error(t, validateLink("javascript:alert(1)"))
	require.Error(t, validateLink("data:text/html,hi"))
	require.Error(t, validateLink("/relative/path"))
}

func TestDisabledServiceSkipsSend(t *testing.T) {
	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)

	err = svc.SendEmailConfirmation(context.Background(), "ada@example.com", "Ada", "https://jobhouse.example/confirm?token=t")
	require.NoError(t, err)

	err = svc.SendPasswordReset(context.Background(), "not-an-email", "Ada", "https://jobhouse.example/reset", time.Hour)
	require.Error(t, err)
}

func TestEnabledServiceRequiresValidSender(t *testing.T) {
	_, err := NewService(config.EmailConfig{Enabled: true, From: "nope", ResendAPIKey: "k"}, zerolog.Nop())
	require.ErrorContains(t, err, "invalid sender email")
}

func TestRenderTemplates(t *testing.T) {
	svc, err := NewService(config.EmailConfig{}, zerolog.Nop())
	require.NoError(t, err)

	body, err := svc.renderTemplate("password_reset.html", LinkData{Name: "Ada", Link: "https://x.example/r?t=1", ExpiresIn: "1h0m0s", CurrentYear: 2026})
	require.NoError(t, err)
	require.Contains(t, body, "Hi Ada")
	require.Contains(t, body, "1h0m0s")

	body, err = svc.renderTemplate("confirm_email.html", LinkData{Name: "<script>", Link: "https://x.example/c"})
	require.NoError(t, err)
	require.NotContains(t, body, "<script>")
}

func newMockedService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(config.EmailConfig{
		Enabled:      true,
		From:         "no-reply@jobhouse.example",
		ResendAPIKey: "test-api-key",
	}, zerolog.Nop())
	require.NoError(t, err)

	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	svc.resendClient.BaseURL = baseURL
	return svc
}

func TestSendViaResendSuccess(t *testing.T) {
	var (
		captured    resend.SendEmailRequest
		method      string
		path        string
		idempotency string
	)
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		idempotency = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mock-email-id"})
	})

	err := svc.SendEmailConfirmation(context.Background(), "ada@example.com", "Ada", "https://jobhouse.example/confirm?token=t")

	require.NoError(t, err)
	require.Equal(t, http.MethodPost, method)
	require.Equal(t, "/emails", path)
	require.Equal(t, []string{"ada@example.com"}, captured.To)
	require.Equal(t, "no-reply@jobhouse.example", captured.From)
	require.Contains(t, captured.Html, "https://jobhouse.example/confirm?token=t")
	require.Contains(t, captured.Tags, resend.Tag{Name: "category", Value: "confirm_email"})
	require.True(t, strings.HasPrefix(idempotency, "confirm_email/"), idempotency)
}

func TestIdempotencyKeyFollowsLink(t *testing.T) {
	a := message{kind: KindPasswordReset, link: "https://x.example/reset?token=1"}
	b := message{kind: KindPasswordReset, link: "https://x.example/reset?token=2"}

	require.Equal(t, a.idempotencyKey(), a.idempotencyKey())
	require.NotEqual(t, a.idempotencyKey(), b.idempotencyKey())
	require.Equal(t, "password_reset.html", KindPasswordReset.template())
}

func TestSendViaResendRateLimited(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
	})

	err := svc.SendPasswordReset(context.Background(), "ada@example.com", "Ada", "https://jobhouse.example/reset?token=t", time.Hour)

	require.ErrorIs(t, err, ErrRateLimited)
}

func TestSendViaResendWithoutClient(t *testing.T) {
	svc := &Service{logger: zerolog.Nop()}

	err := svc.deliver(context.Background(), message{kind: KindConfirmEmail, to: "ada@example.com"})

	require.ErrorContains(t, err, "not initialized")
}

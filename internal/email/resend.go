package email

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Kind identifies an account email. It selects the template and is attached
// to the message as a Resend tag so deliveries can be filtered per flow.
type Kind string

const (
	KindConfirmEmail  Kind = "confirm_email"
	KindPasswordReset Kind = "password_reset"
)

// ErrRateLimited is returned when Resend rejects a send for quota reasons.
var ErrRateLimited = errors.New("email rate limit exceeded")

func (k Kind) template() string {
	return string(k) + ".html"
}

// message is one rendered account email.
type message struct {
	kind    Kind
	to      string
	subject string
	html    string
	link    string
}

func (m message) tags() []resend.Tag {
	return []resend.Tag{
		{Name: "category", Value: string(m.kind)},
		{Name: "app", Value: "jobhouse"},
	}
}

// idempotencyKey is derived from the single-use link, so a retried request
// for the same token is delivered once.
func (m message) idempotencyKey() string {
	sum := sha256.Sum256([]byte(m.link))
	return string(m.kind) + "/" + hex.EncodeToString(sum[:16])
}

func (s *Service) deliver(ctx context.Context, m message) error {
	if s.resendClient == nil {
		return fmt.Errorf("resend client not initialized")
	}

	params := &resend.SendEmailRequest{
		From:    s.config.From,
		To:      []string{m.to},
		Subject: m.subject,
		Html:    m.html,
		Tags:    m.tags(),
	}
	sent, err := s.resendClient.Emails.SendWithOptions(ctx, params, &resend.SendEmailOptions{
		IdempotencyKey: m.idempotencyKey(),
	})
	if err != nil {
		var rateLimitErr *resend.RateLimitError
		if errors.As(err, &rateLimitErr) {
			s.logger.Warn().
				Str("kind", string(m.kind)).
				Str("remaining", rateLimitErr.Remaining).
				Str("reset", rateLimitErr.Reset).
				Msg("resend rate limit exceeded")
			return fmt.Errorf("%w: %s email, resets in %ss", ErrRateLimited, m.kind, rateLimitErr.Reset)
		}
		return fmt.Errorf("send %s email: %w", m.kind, err)
	}

	s.logger.Info().
		Str("email_id", sent.Id).
		Str("kind", string(m.kind)).
		Msg("account email sent")
	return nil
}

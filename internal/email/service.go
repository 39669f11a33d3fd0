package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

// Service renders and sends account emails through Resend. When email is
// disabled it only logs what would have been sent.
type Service struct {
	config       config.EmailConfig
	templates    *template.Template
	resendClient *resend.Client
	logger       zerolog.Logger
}

// LinkData holds data for rendering a templated account email.
type LinkData struct {
	Name        string
	Link        string
	ExpiresIn   string
	CurrentYear int
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	svc := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
	}
	if cfg.Enabled {
		svc.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return svc, nil
}

// SendEmailConfirmation sends the link that confirms a new account's address.
func (s *Service) SendEmailConfirmation(ctx context.Context, to, name, link string) error {
	return s.sendLink(ctx, KindConfirmEmail, to, "Confirm your Job House email", LinkData{
		Name: name,
		Link: link,
	})
}

// SendPasswordReset sends a password reset link valid for expiresIn.
func (s *Service) SendPasswordReset(ctx context.Context, to, name, link string, expiresIn time.Duration) error {
	return s.sendLink(ctx, KindPasswordReset, to, "Reset your Job House password", LinkData{
		Name:      name,
		Link:      link,
		ExpiresIn: expiresIn.String(),
	})
}

func (s *Service) sendLink(ctx context.Context, kind Kind, to, subject string, data LinkData) error {
	if err := validateEmailAddress(to); err != nil {
		return fmt.Errorf("invalid recipient email: %w", err)
	}
	// Reject javascript:, data: and other non-web schemes.
	if err := validateLink(data.Link); err != nil {
		return fmt.Errorf("invalid link: %w", err)
	}

	if !s.config.Enabled {
		s.logger.Info().
			Str("to", to).
			Str("kind", string(kind)).
			Str("link", data.Link).
			Msg("email service disabled, skipping email")
		return nil
	}

	data.CurrentYear = time.Now().Year()
	htmlBody, err := s.renderTemplate(kind.template(), data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, message{kind: kind, to: to, subject: subject, html: htmlBody, link: data.Link})
}

// validateEmailAddress validates an email address for format and header injection attempts
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

// validateLink validates that a link is an absolute HTTP(S) URL.
func validateLink(link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

func (s *Service) renderTemplate(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

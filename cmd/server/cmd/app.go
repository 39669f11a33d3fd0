package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jobhouse/server/internal/api"
	"github.com/jobhouse/server/internal/config"
	"github.com/jobhouse/server/internal/email"
	"github.com/jobhouse/server/internal/notify"
	"github.com/jobhouse/server/internal/storage/mongostore"
)

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   zerolog.Logger
	store    *mongostore.Store
	rabbit   *notify.RabbitPublisher
	services api.Services
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	store, err := mongostore.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}

	var publisher notify.Publisher = notify.Nop{}
	if cfg.Messaging.AMQPURL != "" {
		rabbit, err := notify.NewRabbitPublisher(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, logger)
		if err != nil {
			// Notices are best effort; the API keeps working without them.
			logger.Warn().Err(err).Msg("notification broker unavailable, notices disabled")
		} else {
			a.rabbit = rabbit
			publisher = rabbit
		}
	}

	mailer, err := email.NewService(cfg.Email, logger)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("email setup failed: %w", err)
	}

	a.services = api.NewServices(cfg, store, publisher, mailer, logger)
	return a, nil
}

func (a *app) close(ctx context.Context) {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("notification broker close error")
		}
	}
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("database close error")
	}
}

// bootstrapAdmin ensures the configured administrator exists. It is a no-op
// when ADMIN_EMAIL or ADMIN_PASSWORD is unset.
func (a *app) bootstrapAdmin(ctx context.Context) error {
	bootstrap := a.cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		a.logger.Warn().Msg("admin bootstrap env vars not fully set; skipping")
		return nil
	}
	user, created, err := a.services.Users.EnsureAdmin(ctx, bootstrap.Name, bootstrap.Email, bootstrap.Password)
	if err != nil {
		return err
	}

	// Redact email in production to avoid PII in logs
	event := a.logger.Info().Str("user_id", user.ID).Bool("created", created)
	if !a.cfg.IsProduction() {
		event = event.Str("email", user.Email)
	}
	event.Msg("bootstrapped admin user")
	return nil
}

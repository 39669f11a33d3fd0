package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobhouse/server/internal/config"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create or promote an administrator account",
	Long: `Create an administrator with the given email, or promote the existing
account with that email and reset its password.

Flags fall back to ADMIN_NAME, ADMIN_EMAIL and ADMIN_PASSWORD.

Example:
  server create-admin --email admin@example.com --password 'long secret'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		applyAdminFlags(&cfg.AdminBootstrap)
		if cfg.AdminBootstrap.Email == "" || cfg.AdminBootstrap.Password == "" {
			return fmt.Errorf("--email and --password are required")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		a, err := newApp(ctx, cfg, config.NewLogger(cfg.Logging))
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		user, created, err := a.services.Users.EnsureAdmin(ctx, cfg.AdminBootstrap.Name, cfg.AdminBootstrap.Email, cfg.AdminBootstrap.Password)
		if err != nil {
			return err
		}
		verb := "promoted"
		if created {
			verb = "created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s (%s)\n", verb, user.Email, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "display name (default: ADMIN_NAME)")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (default: ADMIN_EMAIL)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password (default: ADMIN_PASSWORD)")
}

func applyAdminFlags(b *config.AdminBootstrapConfig) {
	if adminName != "" {
		b.Name = adminName
	}
	if adminEmail != "" {
		b.Email = adminEmail
	}
	if adminPassword != "" {
		b.Password = adminPassword
	}
}

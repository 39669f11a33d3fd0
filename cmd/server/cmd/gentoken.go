package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobhouse/server/internal/auth"
)

var (
	tokenSubject string
	tokenRole    string
)

var gentokenCmd = &cobra.Command{
	Use:   "gentoken",
	Short: "Sign a bearer token for local testing",
	Long: `Sign a session token with the configured JWT_SECRET. The subject must be
the id of an existing user: requests are authorized with that account's
stored role, and --role only sets the token claim.

Example:
  server gentoken --subject 64b7f0c2a1b2c3d4e5f60718 --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if cfg.IsProduction() {
			return fmt.Errorf("gentoken is disabled in production")
		}
		if !auth.ValidRole(tokenRole) {
			return fmt.Errorf("role must be user or admin, got %q", tokenRole)
		}

		manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.JWTIssuer)
		token, err := manager.Generate(tokenSubject, tokenRole)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, token)
		fmt.Fprintf(out, "\nTest with:\ncurl -H 'Authorization: Bearer %s' http://localhost:%d/api/my-applications\n", token, cfg.Server.Port)
		return nil
	},
}

func init() {
	gentokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "user id to place in the token")
	gentokenCmd.Flags().StringVar(&tokenRole, "role", "user", "role claim (user or admin)")
	_ = gentokenCmd.MarkFlagRequired("subject")
}

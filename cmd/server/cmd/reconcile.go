package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobhouse/server/internal/config"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile-cascades",
	Short: "Finish event deletions whose application cleanup failed",
	Long: `When an event is deleted without a transaction and removing its
applications fails, the deletion is journaled. This command replays the
journal oldest first and stops at the first failure. The server also runs it
on startup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		a, err := newApp(ctx, cfg, config.NewLogger(cfg.Logging))
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		n, err := a.services.Events.ReconcileCascades(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "completed %d pending cascade(s)\n", n)
		return err
	},
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.

Exit codes:
  0 - Server is healthy or degraded
  1 - Server is unhealthy or unreachable
  2 - Invalid response from server`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := checkHealth(cmd.Context(), healthcheckTarget(), time.Duration(healthcheckTimeout)*time.Second)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(code)
			}
			return nil
		},
	}

	healthcheckTimeout int
	healthcheckURL     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
}

func healthcheckTarget() string {
	if healthcheckURL != "" {
		return healthcheckURL
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

// healthResponse is the subset of handlers.HealthCheck the healthcheck command reads.
type healthResponse struct {
	Status string `json:"status"`
}

// checkHealth returns the exit code to use along with any failure.
func checkHealth(ctx context.Context, url string, timeout time.Duration) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 1, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 1, fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 2, fmt.Errorf("error parsing health check response: %w", err)
	}
	switch body.Status {
	case "healthy", "degraded":
		return 0, nil
	default:
		return 1, fmt.Errorf("server status: %s", body.Status)
	}
}

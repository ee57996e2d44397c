package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd reports the service readiness, including the upstream probe and
// the extra dependency checks.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the service readiness report",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := apiClient().Ready(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch readiness report: %w", err)
		}

		fmt.Printf("Status: %s\n", report.Status)
		if report.Upstream.Healthy {
			fmt.Printf("Upstream: healthy (%d ms)\n", report.Upstream.ResponseTimeMs)
		} else {
			fmt.Printf("Upstream: unhealthy (%s)\n", report.Upstream.Error)
		}
		for name, check := range report.Checks {
			fmt.Printf("- %s: %s\n", name, check)
		}

		if report.Status != "ready" {
			return fmt.Errorf("service is %s", report.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

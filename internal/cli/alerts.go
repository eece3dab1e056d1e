package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"chainguard-sentinel/internal/app"
	"chainguard-sentinel/internal/storage"
)

var alertsLimit int

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Display recent alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowAlerts(cmd.Context(), app.ShowOptions{Limit: alertsLimit})
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAlertStatus(cmd.Context(), args[0], storage.AlertAcknowledged)
	},
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetAlertStatus(cmd.Context(), args[0], storage.AlertResolved)
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 20, "Number of alerts to display")
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)
}

package cli

import (
	"github.com/spf13/cobra"

	"chainguard-sentinel/internal/app"
)

var scanCmd = &cobra.Command{
	Use:   "scan [address...]",
	Short: "Run one assessment cycle for all or selected contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Scan(cmd.Context(), app.ScanOptions{Addresses: args})
	},
}

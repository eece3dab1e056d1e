package cli

import (
	"github.com/spf13/cobra"
)

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Display aggregate dashboard KPIs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Overview(cmd.Context())
	},
}

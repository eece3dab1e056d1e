package cli

import (
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display monitored contracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context())
	},
}

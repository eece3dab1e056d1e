package cli

import (
	"github.com/spf13/cobra"

	"chainguard-sentinel/internal/app"
)

var (
	addName  string
	addChain string
)

var addCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Register a contract for monitoring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Add(cmd.Context(), app.AddOptions{
			Address: args[0],
			Name:    addName,
			Chain:   addChain,
		})
	},
}

func init() {
	addCmd.Flags().StringVar(&addName, "name", "", "Display name for the contract")
	addCmd.Flags().StringVar(&addChain, "chain", "", "Chain the contract is deployed on")
}

package cli

import (
	"github.com/spf13/cobra"

	"chainguard-sentinel/internal/app"
)

var (
	exportPNG       string
	exportCSV       string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export <address>",
	Short: "Export a contract's risk history as CSV and/or PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), app.ExportOptions{
			Address:   args[0],
			PNGPath:   exportPNG,
			CSVPath:   exportCSV,
			MaxPoints: exportMaxPoints,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Write a PNG chart to this path")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Write history rows to this CSV path")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Cap points per series (0 uses export.max_points)")
}

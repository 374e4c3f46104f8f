package cli

import (
	"github.com/spf13/cobra"

	"propwatch/internal/app"
)

var showBands bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the latest indicator payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Bands: showBands,
			Out:   cmd.OutOrStdout(),
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showBands, "bands", false, "Include the per-band breakdown")
}

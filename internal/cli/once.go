package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"propwatch/internal/app"
)

var onceNow string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single evaluation cycle and print the payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.OnceOptions{}
		if onceNow != "" {
			now, err := time.Parse(time.RFC3339, onceNow)
			if err != nil {
				return fmt.Errorf("invalid --now value: %w", err)
			}
			opts.Now = &now
		}

		payload, err := getApp().Once(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, payload)
	},
}

func init() {
	onceCmd.Flags().StringVar(&onceNow, "now", "", "Evaluate as of this timestamp (RFC3339)")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

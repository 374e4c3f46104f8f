package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"propwatch/internal/app"
)

var (
	replayNow     string
	replayPersist bool
)

var replayCmd = &cobra.Command{
	Use:   "replay FILE...",
	Short: "Evaluate saved PSKReporter XML responses offline",
	Long: "Each file stands in for one anchor grid, named after the file " +
		"(bl.xml -> BL). Nothing is written unless --persist is given.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReplayOptions{Files: args, Persist: replayPersist}
		if replayNow != "" {
			now, err := time.Parse(time.RFC3339, replayNow)
			if err != nil {
				return fmt.Errorf("invalid --now value: %w", err)
			}
			opts.Now = &now
		}

		payload, err := getApp().Replay(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return printJSON(cmd, payload)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayNow, "now", "", "Evaluate as of this timestamp (RFC3339)")
	replayCmd.Flags().BoolVar(&replayPersist, "persist", false, "Write state and payload like a real cycle")
}

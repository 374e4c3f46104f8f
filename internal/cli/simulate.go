package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"propwatch/internal/app"
)

var (
	simulateCategory string
	simulateFrom     string
	simulateTo       string
	simulateScore    int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次状态切换并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateFrom == "" || simulateTo == "" {
			return errors.New("--from 与 --to 必须提供")
		}
		if simulateScore < 0 || simulateScore > 100 {
			return errors.New("--score 必须在 0 到 100 之间")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Category: strings.ToLower(strings.TrimSpace(simulateCategory)),
			From:     strings.ToUpper(strings.TrimSpace(simulateFrom)),
			To:       strings.ToUpper(strings.TrimSpace(simulateTo)),
			Score:    simulateScore,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCategory, "category", "nvis", "类别：nvis 或 mainland")
	simulateCmd.Flags().StringVar(&simulateFrom, "from", "", "切换前状态")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "", "切换后状态")
	simulateCmd.Flags().IntVar(&simulateScore, "score", 50, "模拟分数 (0-100)")
}

package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"pnt-integrity-alerts/internal/app"
)

var (
	simulateMonitor string
	simulateMetric  float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alarm",
	Short: "Dispatch a synthetic alarm through the alert channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateMonitor == "" {
			return errors.New("--monitor must be provided")
		}

		opts := app.SimulateOptions{
			Monitor: simulateMonitor,
			Metric:  simulateMetric,
		}
		return getApp().SimulateAlarm(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateMonitor, "monitor", "", "Configured monitor name to simulate")
	simulateCmd.Flags().Float64Var(&simulateMetric, "metric", 0, "Metric value to report in the alarm")
}

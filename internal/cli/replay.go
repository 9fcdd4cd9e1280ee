package cli

import (
	"github.com/spf13/cobra"

	"pnt-integrity-alerts/internal/app"
)

var replayFile string

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Run the monitors over a recorded NDJSON stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ReplayOptions{
			Path: replayFile,
		}
		return getApp().Replay(cmd.Context(), opts)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayFile, "file", "", "Path to recorded stream (defaults to replay.path)")
}

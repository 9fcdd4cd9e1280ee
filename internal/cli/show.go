package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pnt-integrity-alerts/internal/app"
)

var (
	showLimit     int
	showSnapshots bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent alarm records or status snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:     showLimit,
			Snapshots: showSnapshots,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of records to display")
	showCmd.Flags().BoolVar(&showSnapshots, "snapshots", false, "List status snapshots instead of alarms")
}

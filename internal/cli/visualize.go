package cli

import (
	"time"

	"github.com/spf13/cobra"

	"crypto-tracker/internal/app"
)

var (
	visualizeWindow time.Duration
	visualizeOutput string
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Render static PNG charts from stored readings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Visualize(cmd.Context(), app.VisualizeOptions{
			Window:    visualizeWindow,
			OutputDir: visualizeOutput,
		})
	},
}

func init() {
	visualizeCmd.Flags().DurationVar(&visualizeWindow, "window", 0, "Time window to chart (defaults to config)")
	visualizeCmd.Flags().StringVar(&visualizeOutput, "out", "", "Directory for the PNG files (defaults to config)")
}

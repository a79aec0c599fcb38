package cli

import (
	"github.com/spf13/cobra"
)

var dashboardAddr string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the live web dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Dashboard(cmd.Context(), dashboardAddr)
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", "", "Listen address (defaults to config, :8501)")
}

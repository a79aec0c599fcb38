package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"crypto-tracker/internal/app"
)

var (
	showHours int
	showAsset string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored price history of each asset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showHours <= 0 {
			return fmt.Errorf("--hours must be greater than zero")
		}

		asset, err := assetFlag(showAsset)
		if err != nil {
			return err
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{Hours: showHours, Asset: asset})
	},
}

func init() {
	showCmd.Flags().IntVar(&showHours, "hours", 24, "Number of hours of history to display")
	showCmd.Flags().StringVar(&showAsset, "asset", "", "Only show this asset")
}

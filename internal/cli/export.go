package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"crypto-tracker/internal/app"
	"crypto-tracker/internal/storage"
)

var (
	exportFrom      string
	exportTo        string
	exportAsset     string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored price readings as CSV",
	Long: `Write the stored readings in [--from, --to) to a CSV file with the crypto_prices columns.
Windows holding more than --max-points readings are thinned evenly per asset.`,
	Example: `  cryptotracker export --csv out/prices.csv
  cryptotracker export --csv out/btc.csv --asset bitcoin --from 2024-05-01 --to "2024-05-02 12:00:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportMaxPoints < 0 {
			return fmt.Errorf("--max-points must not be negative")
		}

		asset, err := assetFlag(exportAsset)
		if err != nil {
			return err
		}
		from, err := timeFlag("from", exportFrom)
		if err != nil {
			return err
		}
		to, err := timeFlag("to", exportTo)
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			From:      from,
			To:        to,
			Asset:     asset,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		})
	},
}

var assetID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// assetFlag normalises an --asset value to a CoinGecko coin id.
func assetFlag(value string) (string, error) {
	asset := strings.ToLower(strings.TrimSpace(value))
	if asset == "" {
		return "", nil
	}
	if !assetID.MatchString(asset) {
		return "", fmt.Errorf("invalid --asset %q: want a coin id such as bitcoin or wrapped-bitcoin", value)
	}
	return asset, nil
}

const dateLayout = "2006-01-02"

var timeFlagLayouts = []string{time.RFC3339, storage.TimeLayout, dateLayout}

// timeFlag parses an optional time flag. Values without a zone are UTC.
func timeFlag(name, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range timeFlagLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s value %q: want RFC3339, %q or %q", name, value, storage.TimeLayout, dateLayout)
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Start of the window, inclusive (RFC3339, \"YYYY-MM-DD HH:MM:SS\" or YYYY-MM-DD; UTC when no zone)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "End of the window, exclusive (same formats as --from; defaults to now)")
	exportCmd.Flags().StringVar(&exportAsset, "asset", "", "Only export this coin id, e.g. bitcoin")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path of the CSV file to write (required)")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum readings to write (0 uses export.max_data_points)")
	_ = exportCmd.MarkFlagRequired("csv")
}

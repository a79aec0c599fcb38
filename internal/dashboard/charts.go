package dashboard

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

func lineData(readings []storage.PriceReading, value func(storage.PriceReading) float64) []opts.LineData {
	data := make([]opts.LineData, 0, len(readings))
	for _, r := range readings {
		data = append(data, opts.LineData{Value: []interface{}{r.Timestamp.UnixMilli(), value(r)}})
	}
	return data
}

func newTimeLine(title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Type: "time", Name: "Time"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithDataZoomOpts(
			opts.DataZoom{Type: "inside", Start: 0, End: 100},
		),
	)
	return line
}

// priceChart plots the USD price of every asset.
func priceChart(groups []analysis.Series, title string) *charts.Line {
	line := newTimeLine(title)
	line.SetGlobalOptions(
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (USD)", Type: "value", Scale: opts.Bool(true)}),
	)
	for _, s := range groups {
		line.AddSeries(format.Title(s.Asset), lineData(s.Readings, func(r storage.PriceReading) float64 { return r.PriceUSD }),
			charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		)
	}
	return line
}

// metricsChart plots price and 24h volume of one asset, volume on a secondary axis.
func metricsChart(series analysis.Series) *charts.Line {
	line := newTimeLine(format.Title(series.Asset) + " Price and Volume")
	line.SetGlobalOptions(
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (USD)", Type: "value", Scale: opts.Bool(true)}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Volume (USD)", Type: "value", Position: "right", Scale: opts.Bool(true)})

	line.AddSeries("Price", lineData(series.Readings, func(r storage.PriceReading) float64 { return r.PriceUSD }),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.AddSeries("Volume", lineData(series.Readings, func(r storage.PriceReading) float64 { return r.VolumeUSD }),
		charts.WithLineChartOpts(opts.LineChart{YAxisIndex: 1, ShowSymbol: opts.Bool(false)}),
	)
	return line
}

// chartsPage assembles the combined price chart and one metrics chart per asset.
func chartsPage(groups []analysis.Series, windowName string) *components.Page {
	page := components.NewPage()
	page.SetPageTitle("Crypto Dashboard Charts")
	page.SetLayout(components.PageFlexLayout)

	page.AddCharts(priceChart(groups, "Price Trends - "+windowTitle(windowName)))
	for _, s := range groups {
		page.AddCharts(metricsChart(s))
	}
	return page
}

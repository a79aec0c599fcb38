package visualizer

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"crypto-tracker/internal/analysis"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

// NoDataMessage is drawn on charts that have fewer than two distinct points.
const NoDataMessage = "no data for this period"

var palette = []drawing.Color{
	drawing.ColorFromHex("f7931a"),
	drawing.ColorFromHex("627eea"),
	drawing.ColorFromHex("2ca02c"),
	drawing.ColorFromHex("d62728"),
	drawing.ColorFromHex("9467bd"),
	drawing.ColorFromHex("8c564b"),
}

func seriesColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

// plottable reports whether readings span a non-empty time range.
func plottable(readings []storage.PriceReading) bool {
	if len(readings) < 2 {
		return false
	}
	return readings[len(readings)-1].Timestamp.After(readings[0].Timestamp)
}

func timeValues(readings []storage.PriceReading, value func(storage.PriceReading) float64) ([]time.Time, []float64) {
	xs := make([]time.Time, len(readings))
	ys := make([]float64, len(readings))
	for i, r := range readings {
		xs[i] = r.Timestamp
		ys[i] = value(r)
	}
	return xs, ys
}

func price(r storage.PriceReading) float64     { return r.PriceUSD }
func marketCap(r storage.PriceReading) float64 { return r.MarketCapUSD }
func volume(r storage.PriceReading) float64    { return r.VolumeUSD }

// paddedRange fits every value with a small margin. A flat line gets a margin
// around its value so the axis never collapses.
func paddedRange(values ...[]float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, set := range values {
		for _, v := range set {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

var timeFormatter = chart.TimeValueFormatterWithFormat("01-02 15:04")

func usdFormatter(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.CompactUSD(f)
	}
	return ""
}

func indexFormatter(v interface{}) string {
	return chart.FloatValueFormatterWithFormat(v, "%.1f")
}

func baseChart(title string, width, height int) chart.Chart {
	return chart.Chart{
		Title:  title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Time (UTC)",
			ValueFormatter: timeFormatter,
		},
	}
}

// renderTrends draws the USD price of every asset on a shared axis.
func renderTrends(w io.Writer, groups []analysis.Series, title string, width, height int) error {
	graph := baseChart(title, width, height)
	var all [][]float64
	for i, s := range groups {
		if !plottable(s.Readings) {
			continue
		}
		xs, ys := timeValues(s.Readings, price)
		all = append(all, ys)
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    format.Title(s.Asset),
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: seriesColor(i), StrokeWidth: 2},
		})
	}
	if len(graph.Series) == 0 {
		return renderPlaceholder(w, width, height, title, NoDataMessage)
	}

	graph.YAxis = chart.YAxis{
		Name:           "Price (USD)",
		ValueFormatter: usdFormatter,
		Range:          paddedRange(all...),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

// renderComparison draws every asset rebased to 100 at its first reading.
func renderComparison(w io.Writer, groups []analysis.Series, title string, width, height int) error {
	graph := baseChart(title, width, height)
	var all [][]float64
	for i, s := range groups {
		if !plottable(s.Readings) {
			continue
		}
		normalized, ok := analysis.Normalize(s.Readings)
		if !ok {
			continue
		}
		xs, _ := timeValues(s.Readings, price)
		all = append(all, normalized)
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    format.Title(s.Asset),
			XValues: xs,
			YValues: normalized,
			Style:   chart.Style{StrokeColor: seriesColor(i), StrokeWidth: 2},
		})
	}
	if len(graph.Series) == 0 {
		return renderPlaceholder(w, width, height, title, NoDataMessage)
	}

	graph.YAxis = chart.YAxis{
		Name:           "Normalized price",
		ValueFormatter: indexFormatter,
		Range:          paddedRange(all...),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph.Render(chart.PNG, w)
}

type metricPanel struct {
	title string
	value func(storage.PriceReading) float64
}

// renderMetrics stacks price, market cap and volume panels for one asset.
func renderMetrics(w io.Writer, series analysis.Series, colorIndex, width, height int) error {
	panels := []metricPanel{
		{title: format.Title(series.Asset) + " Price (USD)", value: price},
		{title: "Market Cap (USD)", value: marketCap},
		{title: "24h Volume (USD)", value: volume},
	}

	panelHeight := height / 2
	if panelHeight < 200 {
		panelHeight = 200
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, panelHeight*len(panels)))

	for i, panel := range panels {
		img, err := metricPanelImage(series.Readings, panel, seriesColor(colorIndex), width, panelHeight)
		if err != nil {
			return fmt.Errorf("%s panel: %w", panel.title, err)
		}
		dst := image.Rect(0, i*panelHeight, width, (i+1)*panelHeight)
		draw.Draw(canvas, dst, img, img.Bounds().Min, draw.Src)
	}
	return png.Encode(w, canvas)
}

func metricPanelImage(readings []storage.PriceReading, panel metricPanel, color drawing.Color, width, height int) (image.Image, error) {
	if !plottable(readings) {
		return placeholderImage(width, height, panel.title, NoDataMessage), nil
	}

	xs, ys := timeValues(readings, panel.value)
	graph := baseChart(panel.title, width, height)
	graph.YAxis = chart.YAxis{
		ValueFormatter: usdFormatter,
		Range:          paddedRange(ys),
	}
	graph.Series = []chart.Series{
		chart.TimeSeries{
			XValues: xs,
			YValues: ys,
			Style:   chart.Style{StrokeColor: color, StrokeWidth: 2},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return png.Decode(&buf)
}

// placeholderImage is a white canvas carrying a title and a message.
func placeholderImage(width, height int, title, message string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	drawCentered(d, title, height/2-10)
	drawCentered(d, message, height/2+10)
	return img
}

func drawCentered(d *font.Drawer, text string, y int) {
	x := (d.Dst.Bounds().Dx() - d.MeasureString(text).Round()) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

func renderPlaceholder(w io.Writer, width, height int, title, message string) error {
	return png.Encode(w, placeholderImage(width, height, title, message))
}

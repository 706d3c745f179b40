package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HTMLConfig holds the interactive chart options.
type HTMLConfig struct {
	Title       string
	PageTitle   string
	Width       string
	Height      string
	ShowMarkers bool
	MarkerSize  int
}

// RenderHTML writes the altitude chart as a self-contained HTML page
// backed by ECharts. NaN samples become gaps in the line.
func RenderHTML(w io.Writer, data ChartData, config HTMLConfig) error {
	if err := data.Valid(); err != nil {
		return err
	}

	if config.Title == "" {
		config.Title = "Flight Altitude"
	}
	if config.PageTitle == "" {
		config.PageTitle = config.Title
	}
	if config.Width == "" {
		config.Width = "1000px"
	}
	if config.Height == "" {
		config.Height = "560px"
	}
	if config.MarkerSize == 0 {
		config.MarkerSize = 6
	}

	xAxis := make([]string, len(data.T))
	expected := make([]opts.LineData, len(data.T))
	actual := make([]opts.LineData, len(data.T))
	for i := range data.T {
		xAxis[i] = formatElapsed(data.T[i])
		expected[i] = lineSample(data.Expected[i])
		actual[i] = lineSample(data.Actual[i])
	}

	symbol := "none"
	if config.ShowMarkers {
		symbol = "circle"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: config.PageTitle,
			Width:     config.Width,
			Height:    config.Height,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    config.Title,
			Subtitle: fmt.Sprintf("%d samples over %s", len(data.T), formatElapsed(data.T[len(data.T)-1]-data.T[0])),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Elapsed", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Altitude (m)", NameLocation: "middle", NameGap: 45}),
	)

	line.SetXAxis(xAxis).
		AddSeries("Expected", expected,
			charts.WithLineChartOpts(opts.LineChart{Symbol: "none"}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "#1e90ff", Type: "dashed", Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1e90ff"}),
		).
		AddSeries("Actual", actual,
			charts.WithLineChartOpts(opts.LineChart{Symbol: symbol, SymbolSize: config.MarkerSize}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: "#ffa500", Width: 2}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ffa500"}),
		)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	return nil
}

// lineSample converts one value, mapping NaN to a gap.
func lineSample(v float64) opts.LineData {
	if math.IsNaN(v) {
		return opts.LineData{Value: nil}
	}
	return opts.LineData{Value: v}
}

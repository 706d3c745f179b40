// Package render draws the flight altitude chart: expected and actual
// altitude over mission time, as a static raster image or an
// interactive HTML page.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 120.0
	fontSize       = 12.0
	tickMarkLength = 5
	pixelsPerLabel = 120.0

	// Default plot area and border sizes in pixels
	defaultPlotWidth  = 960
	defaultPlotHeight = 480

	defaultTopBorder    = 40
	defaultLeftBorder   = 80
	defaultBottomBorder = 40
	defaultRightBorder  = 40

	dashOn  = 6
	dashOff = 4
)

// Series colors match the live dashboard styling.
var (
	expectedColor = color.RGBA{R: 0x1e, G: 0x90, B: 0xff, A: 0xff}
	actualColor   = color.RGBA{R: 0xff, G: 0xa5, B: 0x00, A: 0xff}
	gridColor     = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// ErrNoSamples is returned when rendering is requested for an empty
// series.
var ErrNoSamples = errors.New("render: no samples")

// ChartData is the input to both renderers: three parallel series of
// equal length, with times in seconds relative to the first sample.
type ChartData struct {
	T        []float64
	Expected []float64
	Actual   []float64
}

// Valid reports whether the series are non-empty and parallel.
func (d ChartData) Valid() error {
	if len(d.T) == 0 {
		return ErrNoSamples
	}
	if len(d.Expected) != len(d.T) || len(d.Actual) != len(d.T) {
		return fmt.Errorf("render: series lengths differ: t=%d expected=%d actual=%d",
			len(d.T), len(d.Expected), len(d.Actual))
	}
	return nil
}

// BorderConfig defines the white space around the plot area.
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the altitude scale
	Bottom int // Space for the information bar
	Right  int // Right padding
}

// ChartConfig holds the raster renderer options.
type ChartConfig struct {
	Title       string
	PlotWidth   int
	PlotHeight  int
	FontSize    float64
	ShowMarkers bool
	MarkerSize  int

	BorderConfig BorderConfig
}

// ChartRenderer draws the altitude chart into an RGBA image.
type ChartRenderer struct {
	config ChartConfig
}

// NewChartRenderer creates a chart renderer with the given
// configuration, applying defaults for zero values.
func NewChartRenderer(config ChartConfig) (*ChartRenderer, error) {
	if config.Title == "" {
		config.Title = "Flight Altitude"
	}
	if config.PlotWidth == 0 {
		config.PlotWidth = defaultPlotWidth
	}
	if config.PlotHeight == 0 {
		config.PlotHeight = defaultPlotHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.MarkerSize == 0 {
		config.MarkerSize = 6
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	return &ChartRenderer{config: config}, nil
}

// Render draws the chart and returns the image.
func (r *ChartRenderer) Render(data ChartData) (*image.RGBA, error) {
	if err := data.Valid(); err != nil {
		return nil, err
	}

	fullWidth := r.config.PlotWidth + r.config.BorderConfig.Left + r.config.BorderConfig.Right
	fullHeight := r.config.PlotHeight + r.config.BorderConfig.Top + r.config.BorderConfig.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))

	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	plotArea := image.Rect(
		r.config.BorderConfig.Left,
		r.config.BorderConfig.Top,
		r.config.BorderConfig.Left+r.config.PlotWidth,
		r.config.BorderConfig.Top+r.config.PlotHeight,
	)

	ann, err := newAnnotator(annotatorConfig{
		Title:    r.config.Title,
		FontSize: r.config.FontSize,
		Borders:  r.config.BorderConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	scale := newPlotScale(plotArea, data)

	if err = ann.annotate(img, plotArea, scale, data); err != nil {
		return nil, fmt.Errorf("drawing annotations: %w", err)
	}

	r.renderSeries(img, scale, data)

	return img, nil
}

// renderSeries draws the two altitude lines over the annotated frame.
func (r *ChartRenderer) renderSeries(img *image.RGBA, scale plotScale, data ChartData) {
	drawPolyline(img, scale, data.T, data.Expected, expectedColor, true)
	drawPolyline(img, scale, data.T, data.Actual, actualColor, false)

	if r.config.ShowMarkers {
		for i := range data.T {
			x, y := scale.pixel(data.T[i], data.Actual[i])
			drawMarker(img, x, y, r.config.MarkerSize, actualColor)
		}
	}
}

// plotScale maps data coordinates into the plot area.
type plotScale struct {
	area image.Rectangle

	tMin, tMax     float64
	altMin, altMax float64
}

func newPlotScale(area image.Rectangle, data ChartData) plotScale {
	s := plotScale{
		area:   area,
		tMin:   data.T[0],
		tMax:   data.T[0],
		altMin: math.Inf(1),
		altMax: math.Inf(-1),
	}

	for i := range data.T {
		s.tMin = math.Min(s.tMin, data.T[i])
		s.tMax = math.Max(s.tMax, data.T[i])
		for _, v := range [2]float64{data.Expected[i], data.Actual[i]} {
			if math.IsNaN(v) {
				continue
			}
			s.altMin = math.Min(s.altMin, v)
			s.altMax = math.Max(s.altMax, v)
		}
	}

	// Degenerate ranges still need a non-zero span to map onto pixels.
	if s.tMax == s.tMin {
		s.tMax = s.tMin + 1
	}
	if math.IsInf(s.altMin, 1) {
		s.altMin, s.altMax = 0, 1
	}
	if s.altMax == s.altMin {
		s.altMax = s.altMin + 1
	}

	// Pad the altitude range so the extremes stay clear of the frame.
	pad := (s.altMax - s.altMin) * 0.05
	s.altMin -= pad
	s.altMax += pad

	return s
}

func (s plotScale) pixel(t, alt float64) (x, y int) {
	xRatio := (t - s.tMin) / (s.tMax - s.tMin)
	yRatio := (alt - s.altMin) / (s.altMax - s.altMin)

	x = s.area.Min.X + int(xRatio*float64(s.area.Dx()))
	y = s.area.Max.Y - int(yRatio*float64(s.area.Dy()))
	return x, y
}

// Internal annotator implementation

type annotatorConfig struct {
	Title    string
	FontSize float64
	Borders  BorderConfig
}

type annotator struct {
	context  *freetype.Context
	config   annotatorConfig
	fontFace font.Face
}

func newAnnotator(config annotatorConfig) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, scale plotScale, data ChartData) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	drawFrame(img, area)

	if err := a.drawTimeScale(img, area, scale); err != nil {
		return fmt.Errorf("drawing time scale: %w", err)
	}
	if err := a.drawAltitudeScale(img, area, scale); err != nil {
		return fmt.Errorf("drawing altitude scale: %w", err)
	}
	if err := a.drawTitleAndLegend(img, area); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	if err := a.drawInfoBar(img, scale, data); err != nil {
		return fmt.Errorf("drawing info bar: %w", err)
	}

	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, scale plotScale) error {
	step := niceTimeStep(time.Duration((scale.tMax - scale.tMin) * float64(time.Second)))
	stepSecs := step.Seconds()

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := area.Max.Y + fontHeight + 3

	start := math.Ceil(scale.tMin/stepSecs) * stepSecs
	for t := start; t <= scale.tMax; t += stepSecs {
		x, _ := scale.pixel(t, scale.altMin)

		for y := area.Min.Y; y < area.Max.Y; y++ {
			img.Set(x, y, gridColor)
		}
		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := formatElapsed(t)
		width := font.MeasureString(a.fontFace, label)
		pt := freetype.Pt(x-(width.Round()/2), textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawAltitudeScale(img *image.RGBA, area image.Rectangle, scale plotScale) error {
	step := niceAltitudeStep(scale.altMax-scale.altMin, area.Dy())

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	start := math.Ceil(scale.altMin/step) * step
	for alt := start; alt <= scale.altMax; alt += step {
		_, y := scale.pixel(scale.tMin, alt)

		for x := area.Min.X; x < area.Max.X; x++ {
			img.Set(x, y, gridColor)
		}
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := formatAltitude(alt)
		width := font.MeasureString(a.fontFace, label)
		textY := y + fontHeight/2 - metrics.Descent.Round()
		pt := freetype.Pt(area.Min.X-tickMarkLength-width.Round()-3, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing altitude label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTitleAndLegend(img *image.RGBA, area image.Rectangle) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := a.config.Borders.Top - fontHeight/2

	pt := freetype.Pt(area.Min.X, textY)
	if _, err := a.context.DrawString(a.config.Title, pt); err != nil {
		return fmt.Errorf("drawing title text: %w", err)
	}

	// Legend swatches on the right edge of the title band.
	entries := []struct {
		label  string
		color  color.RGBA
		dashed bool
	}{
		{"Expected", expectedColor, true},
		{"Actual", actualColor, false},
	}

	x := area.Max.X
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		width := font.MeasureString(a.fontFace, entry.label)

		x -= width.Round()
		pt = freetype.Pt(x, textY)
		if _, err := a.context.DrawString(entry.label, pt); err != nil {
			return fmt.Errorf("drawing legend label: %w", err)
		}

		x -= 30
		lineY := textY - fontHeight/3
		for dx := 0; dx < 24; dx++ {
			if entry.dashed && (dx/dashOn)%2 == 1 {
				continue
			}
			img.Set(x+dx, lineY, entry.color)
			img.Set(x+dx, lineY+1, entry.color)
		}
		x -= 20
	}

	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, scale plotScale, data ChartData) error {
	samples, suffix := humanize.ComputeSI(float64(len(data.T)))

	info := fmt.Sprintf("Samples: %0.0f%s; Duration: %s; Altitude: %s to %s",
		samples, suffix,
		formatElapsed(scale.tMax-scale.tMin),
		formatAltitude(scale.altMin),
		formatAltitude(scale.altMax))

	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (a.config.Borders.Bottom-fontHeight)/2 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.Borders.Left, textY)
	if _, err := a.context.DrawString(info, pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// Drawing primitives

func drawFrame(img *image.RGBA, area image.Rectangle) {
	for x := area.Min.X; x <= area.Max.X; x++ {
		img.Set(x, area.Min.Y, color.Black)
		img.Set(x, area.Max.Y, color.Black)
	}
	for y := area.Min.Y; y <= area.Max.Y; y++ {
		img.Set(area.Min.X, y, color.Black)
		img.Set(area.Max.X, y, color.Black)
	}
}

func drawPolyline(img *image.RGBA, scale plotScale, ts, vs []float64, c color.RGBA, dashed bool) {
	var prevX, prevY int
	havePrev := false
	dashPhase := 0

	for i := range ts {
		if math.IsNaN(vs[i]) {
			havePrev = false
			continue
		}
		x, y := scale.pixel(ts[i], vs[i])
		if havePrev {
			dashPhase = drawSegment(img, prevX, prevY, x, y, c, dashed, dashPhase)
		}
		prevX, prevY = x, y
		havePrev = true
	}
}

// drawSegment draws one line segment with Bresenham stepping,
// carrying the dash phase across segments so the pattern is
// continuous along the polyline.
func drawSegment(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA, dashed bool, phase int) int {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		if !dashed || phase%(dashOn+dashOff) < dashOn {
			img.Set(x, y, c)
			img.Set(x, y+1, c)
		}
		phase++

		if x == x1 && y == y1 {
			return phase
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func drawMarker(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	r := size / 2
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Helper functions

func niceAltitudeStep(altRange float64, height int) float64 {
	steps := []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000}

	desiredSteps := float64(height) / pixelsPerLabel
	if desiredSteps < 2 {
		desiredSteps = 2
	}
	targetStep := altRange / desiredSteps

	for _, step := range steps {
		if step >= targetStep {
			if altRange/step >= 2 {
				return step
			}
			break
		}
	}

	return altRange / 2
}

func niceTimeStep(duration time.Duration) time.Duration {
	roughStep := duration.Seconds() / 8

	niceIntervals := []float64{
		1,    // 1 second
		5,    // 5 seconds
		10,   // 10 seconds
		30,   // 30 seconds
		60,   // 1 minute
		300,  // 5 minutes
		600,  // 10 minutes
		900,  // 15 minutes
		1800, // 30 minutes
		3600, // 1 hour
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval * float64(time.Second))
		}
	}

	return time.Hour * 2
}

func formatElapsed(secs float64) string {
	d := time.Duration(secs * float64(time.Second)).Round(time.Second)
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func formatAltitude(alt float64) string {
	if math.Abs(alt) >= 10_000 {
		return fmt.Sprintf("%.1f km", alt/1_000)
	}
	return fmt.Sprintf("%.0f m", alt)
}

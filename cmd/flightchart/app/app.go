package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/balloon-telemetry/internal/render"
	"github.com/roman-kulish/balloon-telemetry/internal/replay"
	"github.com/roman-kulish/balloon-telemetry/internal/trajectory"
)

// Run renders a recorded flight log into a single chart file.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.InputFile); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("flight log '%s' does not exist: %w", config.InputFile, err)
	}

	records, err := replay.ReadRecords(config.InputFile)
	if err != nil {
		return fmt.Errorf("reading flight log: %w", err)
	}

	count, suffix := humanize.ComputeSI(float64(len(records)))
	logger.Info("flight log loaded",
		slog.String("source", config.InputFile),
		slog.String("records", fmt.Sprintf("%0.f%s", count, suffix)))

	profile := trajectory.DefaultProfile()
	profile.ShowMarkers = config.Markers
	profile.MarkerSize = config.MarkerSize
	if config.MaxPoints > 0 {
		profile.MaxPoints = config.MaxPoints
	}
	// Batching only matters for live repaints; disable it here.
	profile.UpdateEvery = len(records) + 1

	buffer := trajectory.New(nil, trajectory.WithProfile(profile))

	skipped := 0
	for i, rec := range records {
		// Records without timestamps fall back to index pacing so the
		// time axis stays monotonic.
		fallback := float64(i) * replay.DefaultInterval.Seconds()
		p, ok := replay.PointFromRecord(rec, fallback)
		if !ok {
			skipped++
			continue
		}
		buffer.Append(p)
	}

	t, expected, actual := buffer.Samples()
	if len(t) == 0 {
		return fmt.Errorf("flight log contains no records with a GPS fix")
	}

	if config.Verbose {
		logger.Info("trajectory extracted",
			slog.Int("points", len(t)),
			slog.Int("skipped", skipped),
			slog.Float64("duration", t[len(t)-1]-t[0]))
	}

	logger.Info("rendering chart",
		slog.Group("output",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("title", config.Title),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	data := render.ChartData{T: t, Expected: expected, Actual: actual}

	if config.Format == FormatHTML {
		return render.RenderHTML(out, data, render.HTMLConfig{
			Title:       config.Title,
			ShowMarkers: profile.ShowMarkers,
			MarkerSize:  profile.MarkerSize,
		})
	}

	renderer, err := render.NewChartRenderer(render.ChartConfig{
		Title:       config.Title,
		ShowMarkers: profile.ShowMarkers,
		MarkerSize:  profile.MarkerSize,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	img, err := renderer.Render(data)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	switch config.Format {
	case FormatPNG:
		err = png.Encode(out, img)

	case FormatJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{
			Quality: 98,
		})
	}
	return err
}

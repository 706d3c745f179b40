package render

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func testData(n int) ChartData {
	d := ChartData{
		T:        make([]float64, n),
		Expected: make([]float64, n),
		Actual:   make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.T[i] = float64(i * 10)
		d.Expected[i] = float64(i * 100)
		d.Actual[i] = float64(i*100) + 25
	}
	return d
}

func TestChartRenderer_Render(t *testing.T) {
	r, err := NewChartRenderer(ChartConfig{ShowMarkers: true})
	if err != nil {
		t.Fatalf("NewChartRenderer: %v", err)
	}

	img, err := r.Render(testData(50))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wantWidth := defaultPlotWidth + defaultLeftBorder + defaultRightBorder
	wantHeight := defaultPlotHeight + defaultTopBorder + defaultBottomBorder
	bounds := img.Bounds()
	if bounds.Dx() != wantWidth || bounds.Dy() != wantHeight {
		t.Errorf("bounds = %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), wantWidth, wantHeight)
	}

	// Both series must leave their colors somewhere on the canvas.
	foundExpected, foundActual := false, false
	for y := bounds.Min.Y; y < bounds.Max.Y && !(foundExpected && foundActual); y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			switch img.RGBAAt(x, y) {
			case expectedColor:
				foundExpected = true
			case actualColor:
				foundActual = true
			}
		}
	}
	if !foundExpected {
		t.Error("expected-altitude line color not found in rendered image")
	}
	if !foundActual {
		t.Error("actual-altitude line color not found in rendered image")
	}
}

func TestChartRenderer_EmptyData(t *testing.T) {
	r, err := NewChartRenderer(ChartConfig{})
	if err != nil {
		t.Fatalf("NewChartRenderer: %v", err)
	}

	if _, err = r.Render(ChartData{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Render(empty) error = %v, want ErrNoSamples", err)
	}
}

func TestChartRenderer_MismatchedSeries(t *testing.T) {
	r, _ := NewChartRenderer(ChartConfig{})

	_, err := r.Render(ChartData{T: []float64{1, 2}, Expected: []float64{1}, Actual: []float64{1, 2}})
	if err == nil {
		t.Error("expected error for mismatched series lengths")
	}
}

func TestChartRenderer_SinglePoint(t *testing.T) {
	r, _ := NewChartRenderer(ChartConfig{})

	// A single sample has zero time and altitude spans; rendering must
	// still succeed.
	img, err := r.Render(ChartData{T: []float64{0}, Expected: []float64{100}, Actual: []float64{100}})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img == nil {
		t.Fatal("Render returned nil image")
	}
}

func TestChartRenderer_NaNGap(t *testing.T) {
	r, _ := NewChartRenderer(ChartConfig{})

	d := testData(10)
	d.Actual[5] = math.NaN()

	if _, err := r.Render(d); err != nil {
		t.Fatalf("Render with NaN sample: %v", err)
	}
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, testData(20), HTMLConfig{Title: "Altitude Profile"}); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	html := buf.String()
	for _, want := range []string{"Altitude Profile", "Expected", "Actual", "#1e90ff", "#ffa500"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML does not contain %q", want)
		}
	}
}

func TestRenderHTML_EmptyData(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, ChartData{}, HTMLConfig{}); !errors.Is(err, ErrNoSamples) {
		t.Errorf("RenderHTML(empty) error = %v, want ErrNoSamples", err)
	}
}

func TestNiceTimeStep(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{8 * time.Second, time.Second},
		{4 * time.Minute, 30 * time.Second},
		{2 * time.Hour, 15 * time.Minute},
		{48 * time.Hour, 2 * time.Hour},
	}

	for _, tt := range tests {
		if got := niceTimeStep(tt.duration); got != tt.want {
			t.Errorf("niceTimeStep(%v) = %v, want %v", tt.duration, got, tt.want)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		secs float64
		want string
	}{
		{42, "42s"},
		{90, "1m30s"},
		{3700, "1h01m"},
	}

	for _, tt := range tests {
		if got := formatElapsed(tt.secs); got != tt.want {
			t.Errorf("formatElapsed(%f) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

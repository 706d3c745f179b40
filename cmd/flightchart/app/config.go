package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatHTML = "html"
)

type OutputFormat string

type Config struct {
	InputFile  string
	OutputFile string
	Format     OutputFormat
	Title      string
	Markers    bool
	MarkerSize int
	MaxPoints  int
	Verbose    bool
}

var validOutputFormats = map[OutputFormat]struct{}{
	FormatPNG:  {},
	FormatJPEG: {},
	FormatHTML: {},
}

func NewConfig() *Config {
	return &Config{
		Format: FormatPNG,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var outputFormat string
	flag.StringVar(&c.InputFile, "i", "", "Path to the flight log file (NDJSON or JSON array)")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	flag.StringVar(&outputFormat, "f", FormatPNG, "Output format. [png, jpeg, html]")
	flag.StringVar(&c.Title, "title", "Flight Altitude", "Chart title")
	flag.BoolVar(&c.Markers, "markers", false, "Draw sample markers on the actual altitude line")
	flag.IntVar(&c.MarkerSize, "marker-size", 6, "Marker diameter in pixels")
	flag.IntVar(&c.MaxPoints, "max-points", 0, "Keep only the last N trajectory points (0 for all)")
	flag.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	flag.Parse()

	outputFormat = strings.ToLower(outputFormat)

	var err error
	if c.InputFile == "" {
		err = errors.New("input file is required")
	} else if c.OutputFile == "" {
		err = errors.New("output file is required")
	} else if _, ok := validOutputFormats[OutputFormat(outputFormat)]; !ok {
		err = fmt.Errorf("invalid output format: %s", outputFormat)
	} else if c.MaxPoints < 0 {
		err = fmt.Errorf("max-points must not be negative: %d", c.MaxPoints)
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}

	c.Format = OutputFormat(outputFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

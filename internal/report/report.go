// Package report encodes simulation results for humans and machines.
// YAML is the default on-disk format; JSON is available for CI systems
// that consume the report programmatically.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doc-E-brown/statsbox/internal/simulation"
)

// Format selects the report encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps a configuration string onto a Format, defaulting to
// YAML.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	case "":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid report format %q: must be %q or %q", s, FormatYAML, FormatJSON)
	}
}

// TailSummary is the encodable form of a simulation tail. Statistics
// are pointers so an empty tail (NaN statistics) serialises as null
// rather than a value JSON cannot represent.
type TailSummary struct {
	Count  int      `yaml:"count" json:"count"`
	Min    *float64 `yaml:"min" json:"min"`
	Mean   *float64 `yaml:"mean" json:"mean"`
	Median *float64 `yaml:"median" json:"median"`
	Max    *float64 `yaml:"max" json:"max"`
	StdDev *float64 `yaml:"std_dev" json:"std_dev"`
}

// NewTailSummary converts a simulation tail into its encodable form.
func NewTailSummary(t simulation.Tail) TailSummary {
	return TailSummary{
		Count:  len(t.Values),
		Min:    finite(t.Min),
		Mean:   finite(t.Mean),
		Median: finite(t.Median),
		Max:    finite(t.Max),
		StdDev: finite(t.StdDev),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Simulation is a complete Monte Carlo run report.
type Simulation struct {
	Name           string      `yaml:"name" json:"name"`
	Categories     int         `yaml:"categories" json:"categories"`
	Walks          int         `yaml:"walks" json:"walks"`
	Control        int         `yaml:"control" json:"control"`
	Criteria       float64     `yaml:"criteria" json:"criteria"`
	Comparison     string      `yaml:"comparison" json:"comparison"`
	FalseNegatives TailSummary `yaml:"false_negatives" json:"false_negatives"`
	FalsePositives TailSummary `yaml:"false_positives" json:"false_positives"`
}

// Encode writes v to w in the given format.
func Encode(w io.Writer, format Format, v any) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml report: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Write encodes v into the file at path, creating parent directories as
// needed.
func Write(path string, format Format, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, format, v); err != nil {
		return err
	}
	return f.Close()
}

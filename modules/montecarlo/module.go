// Package montecarlo implements the 'montecarlo' runner. It runs a
// Gaussian Monte Carlo simulation, applies the configured separation
// criteria and writes the resulting false negative and false positive
// summaries to a report file.
package montecarlo

import (
	"context"
	"fmt"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/registry"
	"github.com/doc-E-brown/statsbox/internal/report"
	"github.com/doc-E-brown/statsbox/internal/simulation"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// New creates the module.
func New() *Module {
	return &Module{}
}

// Input defines the arguments for the montecarlo runner. Means,
// standard deviations and sample counts line up by index, one entry per
// category.
type Input struct {
	Means   []float64 `hcl:"means"`
	StdDevs []float64 `hcl:"std_devs"`
	Samples []int     `hcl:"samples"`
	Walks   int       `hcl:"walks"`

	// Control selects the control category. Negative values count from
	// the end, so the default -1 is the last category.
	Control *int `hcl:"control,optional"`

	// Criteria is the separation threshold tested against every sample.
	Criteria float64 `hcl:"criteria"`

	// Comparison is "lt" (samples pass below the criteria, the default)
	// or "gt" (samples pass above it).
	Comparison string `hcl:"comparison,optional"`

	// Seed pins the random source for reproducible runs.
	Seed *int `hcl:"seed,optional"`

	// ReportPath receives the run report; empty skips the report file.
	ReportPath string `hcl:"report_path,optional"`

	// Format is the report encoding, "yaml" (default) or "json".
	Format string `hcl:"format,optional"`
}

// Run executes the simulation and summarises both tails.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	cmp, err := simulation.ParseComparison(input.Comparison)
	if err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(input.Format)
	if err != nil {
		return nil, err
	}
	control := -1
	if input.Control != nil {
		control = *input.Control
	}

	var opts []simulation.Option
	if input.Seed != nil {
		opts = append(opts, simulation.WithSeed(uint64(*input.Seed)))
	}

	sim, err := simulation.New(input.Means, input.StdDevs, input.Samples, input.Walks, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Running Monte Carlo simulation.",
		"categories", sim.Categories(), "walks", input.Walks, "criteria", input.Criteria)

	outcome, err := sim.ApplyCriteria(control, input.Criteria, cmp)
	if err != nil {
		return nil, err
	}

	if input.ReportPath != "" {
		rep := report.Simulation{
			Name:           "montecarlo",
			Categories:     sim.Categories(),
			Walks:          input.Walks,
			Control:        control,
			Criteria:       input.Criteria,
			Comparison:     string(cmp),
			FalseNegatives: report.NewTailSummary(outcome.FalseNegatives),
			FalsePositives: report.NewTailSummary(outcome.FalsePositives),
		}
		if err := report.Write(input.ReportPath, format, rep); err != nil {
			return nil, fmt.Errorf("writing simulation report: %w", err)
		}
		logger.Info("Simulation report written.", "path", input.ReportPath, "format", format)
	}

	return map[string]any{
		"false_negatives": len(outcome.FalseNegatives.Values),
		"false_positives": len(outcome.FalsePositives.Values),
		"report_path":     input.ReportPath,
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("montecarlo", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}

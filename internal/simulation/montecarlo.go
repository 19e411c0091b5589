// Package simulation implements Monte Carlo simulation over Gaussian
// categories.
//
// A simulation describes a set of categories, each sampled from a normal
// distribution with its own mean, standard deviation and sample count.
// The simulation is repeated for a configured number of walks, and the
// pooled samples can then be tested against a separation criteria to
// estimate false negative and false positive rates between the
// experimental categories and a control category.
package simulation

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/doc-E-brown/statsbox/internal/stats"
)

// Comparison selects the direction of the pass test applied by
// ApplyCriteria.
type Comparison string

const (
	// Less considers a sample a pass when it falls below the criteria.
	Less Comparison = "lt"
	// Greater considers a sample a pass when it falls above the criteria.
	Greater Comparison = "gt"
)

// ParseComparison maps a configuration string onto a Comparison.
func ParseComparison(s string) (Comparison, error) {
	switch Comparison(s) {
	case Less, Greater:
		return Comparison(s), nil
	case "":
		return Less, nil
	default:
		return "", fmt.Errorf("invalid comparison %q: must be %q or %q", s, Less, Greater)
	}
}

// MonteCarlo holds the parameters of a simulation run. It is not safe
// for concurrent use; each goroutine should build its own instance.
type MonteCarlo struct {
	means   []float64
	stdDevs []float64
	samples []int
	walks   int

	rng *rand.Rand

	// gen is the walk source. It defaults to random generation and is
	// replaced in tests to pin distributions.
	gen func() iter.Seq[[][]float64]
}

// Option customises a MonteCarlo instance.
type Option func(*MonteCarlo)

// WithSeed makes the sample generation deterministic. The default is a
// time-derived seed.
func WithSeed(seed uint64) Option {
	return func(m *MonteCarlo) {
		m.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// New builds a MonteCarlo simulation from per-category means, standard
// deviations and sample counts, repeated for the given number of walks.
// The three parameter slices must have equal length, one entry per
// category.
func New(means, stdDevs []float64, samples []int, walks int, opts ...Option) (*MonteCarlo, error) {
	if len(means) != len(stdDevs) || len(means) != len(samples) {
		return nil, fmt.Errorf(
			"number of categories for means (%d), stdDevs (%d) and samples (%d) are unequal",
			len(means), len(stdDevs), len(samples))
	}
	if len(means) == 0 {
		return nil, fmt.Errorf("at least one category is required")
	}
	if walks <= 0 {
		return nil, fmt.Errorf("walks must be positive, got %d", walks)
	}
	for i, n := range samples {
		if n <= 0 {
			return nil, fmt.Errorf("sample count for category %d must be positive, got %d", i, n)
		}
	}

	seed := uint64(time.Now().UnixNano())
	m := &MonteCarlo{
		means:   means,
		stdDevs: stdDevs,
		samples: samples,
		walks:   walks,
		rng:     rand.New(rand.NewPCG(seed, seed)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.gen = m.randomWalks
	return m, nil
}

// Categories returns the number of simulated categories.
func (m *MonteCarlo) Categories() int {
	return len(m.means)
}

// Walks returns an iterator over the simulation walks. Each walk yields
// one sample slice per category, in category order.
func (m *MonteCarlo) Walks() iter.Seq[[][]float64] {
	return m.gen()
}

func (m *MonteCarlo) randomWalks() iter.Seq[[][]float64] {
	return func(yield func([][]float64) bool) {
		for range m.walks {
			dists := make([][]float64, len(m.means))
			for i := range m.means {
				samples := make([]float64, m.samples[i])
				for j := range samples {
					samples[j] = m.rng.NormFloat64()*m.stdDevs[i] + m.means[i]
				}
				dists[i] = samples
			}
			if !yield(dists) {
				return
			}
		}
	}
}

// Tail summarises the samples that fell on the wrong side of the
// criteria. Values is sorted ascending; the summary statistics are NaN
// when Values is empty.
type Tail struct {
	Values []float64
	Min    float64
	Mean   float64
	Median float64
	Max    float64
	StdDev float64
}

// Empty reports whether the tail holds no samples.
func (t Tail) Empty() bool {
	return len(t.Values) == 0
}

// Outcome is the result of applying a separation criteria to a
// simulation.
type Outcome struct {
	// FalseNegatives summarises experimental samples that landed on the
	// passing side of the criteria.
	FalseNegatives Tail
	// FalsePositives summarises control samples that landed on the
	// failing side of the criteria.
	FalsePositives Tail
}

// ApplyCriteria pools all samples across walks, splits them into the
// control category and the experimental categories, and summarises the
// misclassified samples on each side of the criteria.
//
// With Less, a sample passes when it is strictly below the criteria:
// experimental samples below the criteria are false negatives and
// control samples above it are false positives. With Greater the
// directions are mirrored. Samples exactly equal to the criteria are
// never misclassified.
//
// controlIdx may be negative to count from the last category, so -1
// selects the final category as the control.
func (m *MonteCarlo) ApplyCriteria(controlIdx int, criteria float64, cmp Comparison) (Outcome, error) {
	if controlIdx < 0 {
		controlIdx += len(m.means)
	}
	if controlIdx < 0 || controlIdx >= len(m.means) {
		return Outcome{}, fmt.Errorf("control index %d out of range for %d categories", controlIdx, len(m.means))
	}
	switch cmp {
	case Less, Greater:
	default:
		return Outcome{}, fmt.Errorf("invalid comparison %q", cmp)
	}

	var experimental, control []float64
	for dists := range m.Walks() {
		for i, dist := range dists {
			if i == controlIdx {
				control = append(control, dist...)
			} else {
				experimental = append(experimental, dist...)
			}
		}
	}

	below := func(v float64) bool { return v < criteria }
	above := func(v float64) bool { return v > criteria }

	var falseNeg, falsePos []float64
	if cmp == Less {
		falseNeg = filter(experimental, below)
		falsePos = filter(control, above)
	} else {
		falseNeg = filter(experimental, above)
		falsePos = filter(control, below)
	}

	return Outcome{
		FalseNegatives: summarise(falseNeg),
		FalsePositives: summarise(falsePos),
	}, nil
}

func filter(xs []float64, keep func(float64) bool) []float64 {
	var out []float64
	for _, x := range xs {
		if keep(x) {
			out = append(out, x)
		}
	}
	return out
}

// summarise sorts the tail samples and computes the summary statistics.
// An empty tail yields NaN statistics rather than an error.
func summarise(xs []float64) Tail {
	sort.Float64s(xs)
	return Tail{
		Values: xs,
		Min:    stats.Min(xs),
		Mean:   stats.Mean(xs),
		Median: stats.Median(xs),
		Max:    stats.Max(xs),
		StdDev: stats.StdDev(xs),
	}
}

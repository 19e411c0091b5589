// Package config loads and validates the pipeline configuration. The
// model is deliberately thin: runner-specific arguments stay as an
// undecoded hcl.Body and are bound to each runner's typed input struct
// at execution time, when step outputs are available for expressions.
package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
)

// Settings are the pipeline-wide defaults exposed to step expressions
// as the `pipeline` object.
type Settings struct {
	// Package is the default package scope for test coverage and lint.
	Package string
	// CoverDir is the default coverage report directory.
	CoverDir string
}

// Step is one configured invocation of a registered runner.
type Step struct {
	// RunnerType names the runner that executes this step.
	RunnerType string
	// Name is the unique step identifier used in depends_on and targets.
	Name string
	// DependsOn lists step names that must complete first.
	DependsOn []string
	// Body holds the runner-specific arguments, decoded at execution time.
	Body hcl.Body
	// DeclRange locates the step block for error messages.
	DeclRange hcl.Range
}

// Target is a named sequence of steps. Consecutive entries are chained
// so the sequence runs in declaration order, matching the sequential
// semantics of a build script.
type Target struct {
	Name  string
	Steps []string
}

// Model is the fully loaded pipeline configuration.
type Model struct {
	Settings Settings
	Steps    map[string]*Step
	Targets  map[string]*Target

	// stepOrder preserves declaration order for stable reporting.
	stepOrder []string
}

// StepNames returns the step names in declaration order.
func (m *Model) StepNames() []string {
	out := make([]string, len(m.stepOrder))
	copy(out, m.stepOrder)
	return out
}

// validate enforces the structural invariants of the model: unique
// names, resolvable references and no self dependencies.
func (m *Model) validate() error {
	for _, name := range m.stepOrder {
		step := m.Steps[name]
		for _, dep := range step.DependsOn {
			if dep == name {
				return fmt.Errorf("%s: step %q depends on itself", step.DeclRange, name)
			}
			if _, ok := m.Steps[dep]; !ok {
				return fmt.Errorf("%s: step %q depends on unknown step %q", step.DeclRange, name, dep)
			}
		}
	}

	for _, target := range m.Targets {
		if _, clash := m.Steps[target.Name]; clash {
			return fmt.Errorf("target %q has the same name as a step", target.Name)
		}
		if len(target.Steps) == 0 {
			return fmt.Errorf("target %q lists no steps", target.Name)
		}
		for _, name := range target.Steps {
			if _, ok := m.Steps[name]; !ok {
				return fmt.Errorf("target %q references unknown step %q", target.Name, name)
			}
		}
	}

	return nil
}

// Plan is the set of steps to execute plus the ordering edges between
// them. An edge (From, To) means To must wait for From.
type Plan struct {
	Steps []*Step
	Edges []Edge
}

// Edge is a single ordering constraint.
type Edge struct {
	From string
	To   string
}

// Plan resolves a CLI target name into an executable plan. Target names
// are tried first, then bare step names; a bare step runs together with
// its transitive depends_on closure.
func (m *Model) Plan(name string) (*Plan, error) {
	if target, ok := m.Targets[name]; ok {
		return m.planTarget(target), nil
	}
	if step, ok := m.Steps[name]; ok {
		return m.planStep(step), nil
	}
	return nil, fmt.Errorf("unknown target %q: available targets are %v, steps are %v",
		name, sortedKeys(m.Targets), m.StepNames())
}

func (m *Model) planTarget(target *Target) *Plan {
	plan := &Plan{}
	included := map[string]bool{}
	for _, name := range target.Steps {
		m.include(m.Steps[name], plan, included)
	}
	// Chain consecutive entries so the target runs its steps in order.
	for i := 1; i < len(target.Steps); i++ {
		plan.Edges = append(plan.Edges, Edge{From: target.Steps[i-1], To: target.Steps[i]})
	}
	return plan
}

func (m *Model) planStep(step *Step) *Plan {
	plan := &Plan{}
	m.include(step, plan, map[string]bool{})
	return plan
}

// include adds the step and its dependency closure to the plan.
func (m *Model) include(step *Step, plan *Plan, included map[string]bool) {
	if included[step.Name] {
		return
	}
	included[step.Name] = true
	for _, dep := range step.DependsOn {
		m.include(m.Steps[dep], plan, included)
		plan.Edges = append(plan.Edges, Edge{From: dep, To: step.Name})
	}
	plan.Steps = append(plan.Steps, step)
}

func sortedKeys(targets map[string]*Target) []string {
	keys := make([]string, 0, len(targets))
	for k := range targets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

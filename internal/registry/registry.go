// Package registry holds the runner handlers available to pipeline
// steps. Modules register their handlers at startup; the executor looks
// them up by the runner type named in each step block.
package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/doc-E-brown/statsbox/internal/config"
	"github.com/doc-E-brown/statsbox/internal/ctxlog"
)

// Module is the interface all runner modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Handler couples a runner's typed input constructor with its run
// function. NewInput returns a pointer to the runner's input struct,
// which the executor fills from the step's HCL arguments before calling
// Run. Run returns the step's named outputs.
type Handler struct {
	NewInput func() any
	Run      func(ctx context.Context, input any) (map[string]any, error)
}

// Registry maps runner type names to handlers for a single application
// instance.
type Registry struct {
	handlers map[string]*Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// RegisterRunner adds a handler under the given runner type. Registering
// the same type twice is a programmer error and panics.
func (r *Registry) RegisterRunner(runnerType string, handler *Handler) {
	if _, exists := r.handlers[runnerType]; exists {
		panic(fmt.Sprintf("runner handler %q already registered", runnerType))
	}
	if handler == nil || handler.Run == nil {
		panic(fmt.Sprintf("runner handler %q has no run function", runnerType))
	}
	r.handlers[runnerType] = handler
}

// Handler looks up the handler for a runner type.
func (r *Registry) Handler(runnerType string) (*Handler, bool) {
	h, ok := r.handlers[runnerType]
	return h, ok
}

// RunnerTypes returns the registered runner types, sorted.
func (r *Registry) RunnerTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Validate checks that every step in the model names a registered
// runner, so mismatches surface at startup instead of mid-run.
func (r *Registry) Validate(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	for _, name := range model.StepNames() {
		step := model.Steps[name]
		if _, ok := r.handlers[step.RunnerType]; !ok {
			return fmt.Errorf("%s: step %q uses unknown runner %q (registered: %v)",
				step.DeclRange, step.Name, step.RunnerType, r.RunnerTypes())
		}
	}
	logger.Debug("Registry validation passed.", "runners", r.RunnerTypes())
	return nil
}

// Package clean implements the 'clean' runner. It removes generated
// artifact paths such as the coverage directory. Paths are restricted
// to relative locations inside the working tree so a typo in the
// pipeline cannot wipe anything outside the project.
package clean

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// New creates the module.
func New() *Module {
	return &Module{}
}

// Input defines the arguments for the clean runner.
type Input struct {
	// Paths are the relative paths to remove. Missing paths are not an
	// error; clean is idempotent.
	Paths []string `hcl:"paths,optional"`
}

func validatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("clean path is empty")
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("clean path %q is absolute: only relative paths inside the project are allowed", path)
	}
	clean := filepath.Clean(path)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("clean path %q escapes the project directory", path)
	}
	return nil
}

// Run removes the configured paths. All paths are validated before any
// removal happens, so a bad entry never leaves a partial clean.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	logger := ctxlog.FromContext(ctx)

	for _, path := range input.Paths {
		if err := validatePath(path); err != nil {
			return nil, err
		}
	}

	removed := make([]string, 0, len(input.Paths))
	for _, path := range input.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			return nil, fmt.Errorf("removing %q: %w", path, err)
		}
		removed = append(removed, path)
		logger.Info("Removed artifact path.", "path", path)
	}

	return map[string]any{
		"removed": len(removed),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("clean", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}

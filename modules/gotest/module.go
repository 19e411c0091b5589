// Package gotest implements the 'gotest' runner. It runs the package
// test suite with coverage enabled, filters the coverage profile
// against the configured omit patterns, and renders an HTML coverage
// report into the coverage directory.
package gotest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/registry"
	"github.com/doc-E-brown/statsbox/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	sh shell.Runner
}

// New creates the module with the given process runner.
func New(sh shell.Runner) *Module {
	return &Module{sh: sh}
}

// Input defines the arguments for the gotest runner.
type Input struct {
	// Packages are the package patterns passed to go test.
	Packages []string `hcl:"packages,optional"`

	// CoverPkg scopes coverage measurement. Empty measures only the
	// tested packages.
	CoverPkg string `hcl:"cover_pkg,optional"`

	// CoverDir receives the coverage profile and the HTML report.
	CoverDir string `hcl:"cover_dir,optional"`

	// Omit lists gitignore-style patterns; matching files are dropped
	// from the coverage profile before the report is rendered.
	Omit []string `hcl:"omit,optional"`

	// Dir is the working directory for go test.
	Dir string `hcl:"dir,optional"`
}

func (in *Input) applyDefaults() {
	if len(in.Packages) == 0 {
		in.Packages = []string{"./..."}
	}
	if in.CoverDir == "" {
		in.CoverDir = "coverage_html"
	}
}

// Run executes the test suite and produces the coverage report.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	input.applyDefaults()
	logger := ctxlog.FromContext(ctx)

	if err := os.MkdirAll(input.CoverDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating coverage directory: %w", err)
	}
	profile := filepath.Join(input.CoverDir, "cover.out")
	html := filepath.Join(input.CoverDir, "index.html")

	argv := []string{"go", "test", "-count=1", "-covermode=atomic", "-coverprofile=" + profile}
	if input.CoverPkg != "" {
		argv = append(argv, "-coverpkg="+input.CoverPkg)
	}
	argv = append(argv, input.Packages...)

	logger.Info("Running test suite.", "packages", input.Packages, "cover_dir", input.CoverDir)
	res, err := m.sh.Run(ctx, shell.Command{Argv: argv, Dir: input.Dir})
	if err != nil {
		return nil, err
	}
	os.Stdout.Write(res.Stdout)
	os.Stderr.Write(res.Stderr)
	if res.ExitCode != 0 {
		return nil, &shell.ExitError{Argv: argv, Code: res.ExitCode, Stderr: res.Stderr}
	}

	if len(input.Omit) > 0 {
		if err := filterProfileFile(profile, input.Omit); err != nil {
			return nil, err
		}
	}

	renderArgv := []string{"go", "tool", "cover", "-html=" + profile, "-o", html}
	res, err = m.sh.Run(ctx, shell.Command{Argv: renderArgv, Dir: input.Dir})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &shell.ExitError{Argv: renderArgv, Code: res.ExitCode, Stderr: res.Stderr}
	}

	logger.Info("Coverage report written.", "html", html)
	return map[string]any{
		"profile": profile,
		"html":    html,
	}, nil
}

// FilterProfile removes profile lines whose file path matches any of
// the omit patterns. The mode header is always preserved.
func FilterProfile(data []byte, omit []string) []byte {
	matcher := ignore.CompileIgnoreLines(omit...)

	var out bytes.Buffer
	for line := range strings.Lines(string(data)) {
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "" || strings.HasPrefix(trimmed, "mode:") {
			out.WriteString(trimmed + "\n")
			continue
		}
		path, _, ok := strings.Cut(trimmed, ":")
		if ok && matcher.MatchesPath(path) {
			continue
		}
		out.WriteString(trimmed + "\n")
	}
	return out.Bytes()
}

func filterProfileFile(path string, omit []string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading coverage profile: %w", err)
	}
	if err := os.WriteFile(path, FilterProfile(data, omit), 0o644); err != nil {
		return fmt.Errorf("writing filtered coverage profile: %w", err)
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("gotest", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}

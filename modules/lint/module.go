// Package lint implements the 'lint' runner. It runs go vet over the
// configured packages and reprints each finding through a configurable
// message template, so editors and CI annotations can consume the
// output in whatever shape they expect.
package lint

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/registry"
	"github.com/doc-E-brown/statsbox/internal/shell"
)

// DefaultTemplate mirrors the compiler's own diagnostic shape.
const DefaultTemplate = "{path}:{line}:{col}: {msg}"

// Module implements the registry.Module interface for this package.
type Module struct {
	sh shell.Runner
}

// New creates the module with the given process runner.
func New(sh shell.Runner) *Module {
	return &Module{sh: sh}
}

// Input defines the arguments for the lint runner.
type Input struct {
	// Packages are the package patterns passed to go vet.
	Packages []string `hcl:"packages,optional"`

	// Template renders each finding. The tokens {path}, {line}, {col}
	// and {msg} are replaced with the finding's fields; everything else
	// passes through verbatim.
	Template string `hcl:"template,optional"`

	// Dir is the working directory for go vet.
	Dir string `hcl:"dir,optional"`
}

func (in *Input) applyDefaults() {
	if len(in.Packages) == 0 {
		in.Packages = []string{"./..."}
	}
	if in.Template == "" {
		in.Template = DefaultTemplate
	}
}

// Finding is a single diagnostic reported by the analyzer.
type Finding struct {
	Path string
	Line int
	Col  int
	Msg  string
}

// Render formats the finding through the template.
func (f Finding) Render(template string) string {
	return strings.NewReplacer(
		"{path}", f.Path,
		"{line}", strconv.Itoa(f.Line),
		"{col}", strconv.Itoa(f.Col),
		"{msg}", f.Msg,
	).Replace(template)
}

var findingRe = regexp.MustCompile(`^(.+?):(\d+):(?:(\d+):)? (.+)$`)

// ParseFindings extracts diagnostics from go vet's stderr. Package
// header lines and anything else that does not look like a positioned
// diagnostic are ignored.
func ParseFindings(output []byte) []Finding {
	var findings []Finding
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := findingRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		f := Finding{Path: m[1], Msg: m[4]}
		f.Line, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			f.Col, _ = strconv.Atoi(m[3])
		}
		findings = append(findings, f)
	}
	return findings
}

// Run executes go vet and reprints its findings through the template.
func (m *Module) Run(ctx context.Context, input *Input) (map[string]any, error) {
	input.applyDefaults()
	logger := ctxlog.FromContext(ctx)

	argv := append([]string{"go", "vet"}, input.Packages...)
	logger.Info("Linting packages.", "packages", input.Packages)

	res, err := m.sh.Run(ctx, shell.Command{Argv: argv, Dir: input.Dir})
	if err != nil {
		return nil, err
	}

	findings := ParseFindings(res.Stderr)
	for _, f := range findings {
		fmt.Fprintln(os.Stdout, f.Render(input.Template))
	}

	if res.ExitCode != 0 {
		return nil, &shell.ExitError{Argv: argv, Code: res.ExitCode, Stderr: res.Stderr}
	}

	logger.Info("Lint passed.", "findings", len(findings))
	return map[string]any{
		"findings": len(findings),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("lint", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			return m.Run(ctx, input.(*Input))
		},
	})
}

package config

import (
	"context"
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
)

// defaultPipeline reproduces the original statsbox build script: a test
// step with coverage, a lint step, a clean step and an `all` target
// sequencing test then lint.
//
//go:embed default.hcl
var defaultPipeline []byte

// DefaultPipelineName is the synthetic file name used for the embedded
// pipeline in diagnostics.
const DefaultPipelineName = "<default pipeline>"

// Loader parses pipeline configuration files into the Model.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader returns a ready Loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// Load reads the pipeline at path, which may be a single .hcl file or a
// directory searched recursively. An empty path loads the embedded
// default pipeline.
func (l *Loader) Load(ctx context.Context, path string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)

	var files []*hcl.File
	if path == "" {
		logger.Debug("No pipeline path given, using embedded default pipeline.")
		file, diags := l.parser.ParseHCL(defaultPipeline, DefaultPipelineName)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parsing default pipeline: %w", diags)
		}
		files = append(files, file)
	} else {
		paths, err := resolvePipelineFiles(path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Pipeline files resolved.", "count", len(paths), "paths", paths)
		for _, p := range paths {
			file, diags := l.parser.ParseHCLFile(p)
			if diags.HasErrors() {
				return nil, fmt.Errorf("parsing %s: %w", p, diags)
			}
			files = append(files, file)
		}
	}

	model, err := buildModel(hcl.MergeFiles(files))
	if err != nil {
		return nil, err
	}
	logger.Debug("Pipeline model loaded.",
		"steps", len(model.Steps), "targets", len(model.Targets))
	return model, nil
}

// resolvePipelineFiles expands a path into the sorted list of .hcl files
// it denotes.
func resolvePipelineFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".hcl") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", path, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no .hcl files found under %s", path)
	}
	sort.Strings(paths)
	return paths, nil
}

// The gohcl schema for pipeline files. Runner arguments are captured in
// the step's remain body and decoded later against the runner's input
// struct.
type fileSchema struct {
	Pipeline *settingsBlock `hcl:"pipeline,block"`
	Steps    []*stepBlock   `hcl:"step,block"`
	Targets  []*targetBlock `hcl:"target,block"`
}

type settingsBlock struct {
	Package  *string `hcl:"package,optional"`
	CoverDir *string `hcl:"cover_dir,optional"`
}

type stepBlock struct {
	Type      string   `hcl:"type,label"`
	Name      string   `hcl:"name,label"`
	DependsOn []string `hcl:"depends_on,optional"`
	Remain    hcl.Body `hcl:",remain"`
}

type targetBlock struct {
	Name  string   `hcl:"name,label"`
	Steps []string `hcl:"steps"`
}

func buildModel(body hcl.Body) (*Model, error) {
	var raw fileSchema
	// The top-level structure is static, so no evaluation context is
	// needed here; expressions inside step bodies are evaluated later.
	if diags := gohcl.DecodeBody(body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("decoding pipeline: %w", diags)
	}

	model := &Model{
		Settings: Settings{Package: "./...", CoverDir: "coverage_html"},
		Steps:    make(map[string]*Step),
		Targets:  make(map[string]*Target),
	}
	if raw.Pipeline != nil {
		if raw.Pipeline.Package != nil {
			model.Settings.Package = *raw.Pipeline.Package
		}
		if raw.Pipeline.CoverDir != nil {
			model.Settings.CoverDir = *raw.Pipeline.CoverDir
		}
	}

	for _, block := range raw.Steps {
		declRange := block.Remain.MissingItemRange()
		if _, dup := model.Steps[block.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate step name %q", declRange, block.Name)
		}
		model.Steps[block.Name] = &Step{
			RunnerType: block.Type,
			Name:       block.Name,
			DependsOn:  block.DependsOn,
			Body:       block.Remain,
			DeclRange:  declRange,
		}
		model.stepOrder = append(model.stepOrder, block.Name)
	}

	for _, block := range raw.Targets {
		if _, dup := model.Targets[block.Name]; dup {
			return nil, fmt.Errorf("duplicate target name %q", block.Name)
		}
		model.Targets[block.Name] = &Target{
			Name:  block.Name,
			Steps: block.Steps,
		}
	}

	if err := model.validate(); err != nil {
		return nil, err
	}
	return model, nil
}

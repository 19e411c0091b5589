package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePipeline writes the given HCL files into a fresh temp dir and
// returns its path.
func writePipeline(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadDefaultPipeline(t *testing.T) {
	t.Parallel()

	model, err := NewLoader().Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "./...", model.Settings.Package)
	assert.Equal(t, "coverage_html", model.Settings.CoverDir)
	assert.Equal(t, []string{"test", "lint", "clean"}, model.StepNames())

	all, ok := model.Targets["all"]
	require.True(t, ok, "default pipeline must declare the all target")
	assert.Equal(t, []string{"test", "lint"}, all.Steps)
}

func TestLoadSingleFile(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{
		"build.hcl": `
pipeline {
  package = "./statsbox/..."
}

step "lint" "lint" {
  packages = [pipeline.package]
  template = "{path}:{line}: {msg}"
}
`,
	})

	model, err := NewLoader().Load(context.Background(), filepath.Join(dir, "build.hcl"))
	require.NoError(t, err)

	assert.Equal(t, "./statsbox/...", model.Settings.Package)
	// cover_dir keeps its default when the pipeline block omits it.
	assert.Equal(t, "coverage_html", model.Settings.CoverDir)
	require.Contains(t, model.Steps, "lint")
	assert.Equal(t, "lint", model.Steps["lint"].RunnerType)
}

func TestLoadDirectoryMergesFiles(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{
		"steps.hcl": `
step "gotest" "test" {}
step "lint" "lint" { depends_on = ["test"] }
`,
		"targets/all.hcl": `
target "all" { steps = ["test", "lint"] }
`,
	})

	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, model.Steps, 2)
	assert.Len(t, model.Targets, 1)
	assert.Equal(t, []string{"test"}, model.Steps["lint"].DependsOn)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		hcl     string
		wantErr string
	}{
		"syntax error": {
			hcl:     `step "gotest" "test" {`,
			wantErr: "parsing",
		},
		"duplicate step name": {
			hcl: `
step "gotest" "test" {}
step "lint" "test" {}
`,
			wantErr: "duplicate step name",
		},
		"unknown dependency": {
			hcl:     `step "lint" "lint" { depends_on = ["nope"] }`,
			wantErr: "unknown step",
		},
		"self dependency": {
			hcl:     `step "lint" "lint" { depends_on = ["lint"] }`,
			wantErr: "depends on itself",
		},
		"target with unknown step": {
			hcl:     `target "all" { steps = ["nope"] }`,
			wantErr: "unknown step",
		},
		"target with no steps": {
			hcl:     `target "all" { steps = [] }`,
			wantErr: "no steps",
		},
		"target named like a step": {
			hcl: `
step "gotest" "test" {}
target "test" { steps = ["test"] }
`,
			wantErr: "same name as a step",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := writePipeline(t, map[string]string{"p.hcl": tc.hcl})
			_, err := NewLoader().Load(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadMissingPath(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)

	_, err = NewLoader().Load(context.Background(), t.TempDir())
	assert.ErrorContains(t, err, "no .hcl files")
}

func TestPlanResolution(t *testing.T) {
	t.Parallel()

	dir := writePipeline(t, map[string]string{
		"p.hcl": `
step "clean" "clean" {}
step "gotest" "test" { depends_on = ["clean"] }
step "lint" "lint" {}
target "all" { steps = ["test", "lint"] }
`,
	})
	model, err := NewLoader().Load(context.Background(), dir)
	require.NoError(t, err)

	t.Run("target chains consecutive steps", func(t *testing.T) {
		plan, err := model.Plan("all")
		require.NoError(t, err)

		names := make([]string, 0, len(plan.Steps))
		for _, s := range plan.Steps {
			names = append(names, s.Name)
		}
		assert.ElementsMatch(t, []string{"clean", "test", "lint"}, names)
		assert.Contains(t, plan.Edges, Edge{From: "clean", To: "test"})
		assert.Contains(t, plan.Edges, Edge{From: "test", To: "lint"})
	})

	t.Run("bare step pulls its dependency closure", func(t *testing.T) {
		plan, err := model.Plan("test")
		require.NoError(t, err)
		require.Len(t, plan.Steps, 2)
		assert.Equal(t, []Edge{{From: "clean", To: "test"}}, plan.Edges)
	})

	t.Run("single step without deps", func(t *testing.T) {
		plan, err := model.Plan("lint")
		require.NoError(t, err)
		require.Len(t, plan.Steps, 1)
		assert.Empty(t, plan.Edges)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := model.Plan("deploy")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown target")
	})
}

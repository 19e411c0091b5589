package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_InvalidPipeline(t *testing.T) {
	t.Parallel()

	invalidHCL := `
step "task" "broken" {
	// Missing closing brace here
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "pipeline.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	out := &bytes.Buffer{}
	runErr := run(out, []string{"-pipeline", filePath})

	require.Error(t, runErr, "run() should fail on an unparsable pipeline")
	require.Contains(t, runErr.Error(), "loading pipeline configuration")
}

func TestRun_UnknownTarget(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"no-such-target"})

	require.Error(t, err, "run() should fail on a target the pipeline does not define")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

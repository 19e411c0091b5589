package gotest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doc-E-brown/statsbox/internal/shell"
)

// fakeRunner records every command and replays canned results in order.
type fakeRunner struct {
	commands []shell.Command
	results  []*shell.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, cmd shell.Command) (*shell.Result, error) {
	f.commands = append(f.commands, cmd)
	if f.err != nil {
		return nil, f.err
	}
	res := &shell.Result{}
	if len(f.results) > 0 {
		res = f.results[0]
		f.results = f.results[1:]
	}
	return res, nil
}

func TestRunBuildsTestAndRenderCommands(t *testing.T) {
	coverDir := filepath.Join(t.TempDir(), "coverage_html")
	fake := &fakeRunner{}
	m := New(fake)

	out, err := m.Run(context.Background(), &Input{
		Packages: []string{"./...", "./extra"},
		CoverPkg: "./...",
		CoverDir: coverDir,
	})
	require.NoError(t, err)

	profile := filepath.Join(coverDir, "cover.out")
	require.Len(t, fake.commands, 2)
	assert.Equal(t, []string{
		"go", "test", "-count=1", "-covermode=atomic",
		"-coverprofile=" + profile, "-coverpkg=./...",
		"./...", "./extra",
	}, fake.commands[0].Argv)
	assert.Equal(t, []string{
		"go", "tool", "cover", "-html=" + profile,
		"-o", filepath.Join(coverDir, "index.html"),
	}, fake.commands[1].Argv)

	assert.Equal(t, profile, out["profile"])
	assert.DirExists(t, coverDir)
}

func TestRunDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	fake := &fakeRunner{}
	m := New(fake)

	_, err := m.Run(context.Background(), &Input{})
	require.NoError(t, err)

	require.Len(t, fake.commands, 2)
	argv := fake.commands[0].Argv
	assert.Equal(t, "./...", argv[len(argv)-1])
	assert.Contains(t, argv, "-coverprofile="+filepath.Join("coverage_html", "cover.out"))
	assert.NotContains(t, strings.Join(argv, " "), "-coverpkg")
}

func TestRunPropagatesTestFailure(t *testing.T) {
	coverDir := t.TempDir()
	fake := &fakeRunner{results: []*shell.Result{{ExitCode: 2, Stderr: []byte("FAIL")}}}
	m := New(fake)

	_, err := m.Run(context.Background(), &Input{CoverDir: coverDir})
	require.Error(t, err)

	code, ok := shell.ExitCodeFromError(err)
	require.True(t, ok)
	assert.Equal(t, 2, code)

	// The report must not be rendered after a failing suite.
	assert.Len(t, fake.commands, 1)
}

func TestRunFiltersProfileWithOmitPatterns(t *testing.T) {
	coverDir := t.TempDir()
	profile := filepath.Join(coverDir, "cover.out")
	raw := strings.Join([]string{
		"mode: atomic",
		"example.com/pkg/core.go:10.2,12.3 2 1",
		"example.com/pkg/core_test.go:5.1,6.2 1 0",
		"example.com/pkg/testdata/fixture.go:1.1,2.2 1 0",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(profile, []byte(raw), 0o644))

	fake := &fakeRunner{}
	m := New(fake)
	_, err := m.Run(context.Background(), &Input{
		CoverDir: coverDir,
		Omit:     []string{"*_test.go", "testdata/"},
	})
	require.NoError(t, err)

	filtered, err := os.ReadFile(profile)
	require.NoError(t, err)
	assert.Contains(t, string(filtered), "core.go")
	assert.NotContains(t, string(filtered), "core_test.go")
	assert.NotContains(t, string(filtered), "testdata")
}

func TestFilterProfileKeepsModeHeader(t *testing.T) {
	raw := "mode: atomic\na/b.go:1.1,2.2 1 1\n"
	got := FilterProfile([]byte(raw), []string{"a/"})
	assert.Equal(t, "mode: atomic\n", string(got))
}

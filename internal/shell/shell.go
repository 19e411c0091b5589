// Package shell runs external tools and captures their output and exit
// codes. Pipeline steps never interpret the output of the tools they
// invoke beyond exit codes and captured streams; the tools speak for
// themselves.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/doc-E-brown/statsbox/internal/ctxlog"
)

// Command describes a single external tool invocation.
type Command struct {
	// Argv is the program followed by its arguments. It must not be empty.
	Argv []string

	// Dir is the working directory for the process. Empty means the
	// current directory.
	Dir string

	// Env is the complete environment for the process. nil inherits the
	// parent environment.
	Env []string
}

// String renders the command for logs.
func (c Command) String() string {
	return strings.Join(c.Argv, " ")
}

// Result holds the outcome of a completed invocation. A non-zero
// ExitCode is a result, not an error: the caller decides whether it is
// fatal.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner abstracts process invocation so step runners can be tested
// against a fake without spawning processes.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Local runs commands on the local machine.
type Local struct{}

// NewLocal returns a Runner backed by os/exec.
func NewLocal() *Local {
	return &Local{}
}

// Run executes the command and waits for completion, honoring context
// cancellation. It returns an error only when the process could not be
// started or was cancelled; a non-zero exit is reported through
// Result.ExitCode.
func (l *Local) Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Argv) == 0 {
		return nil, fmt.Errorf("command argv is empty")
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running command.", "argv", cmd.Argv, "dir", cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = cmd.Env

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("command %q cancelled: %w", cmd.Argv[0], ctx.Err())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The process never started (e.g. binary not found).
			return nil, fmt.Errorf("starting %q: %w", cmd.Argv[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	logger.Debug("Command finished.", "argv", cmd.Argv, "exit_code", exitCode)
	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// ExitError records a tool that exited non-zero, preserving the child's
// exit code so the CLI can propagate it.
type ExitError struct {
	Argv   []string
	Code   int
	Stderr []byte
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", strings.Join(e.Argv, " "), e.Code)
	if detail := strings.TrimSpace(string(e.Stderr)); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// ExitCodeFromError extracts the child exit code from an error chain.
// The second return reports whether an ExitError was found.
func ExitCodeFromError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}

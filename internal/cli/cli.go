// Package cli turns command-line arguments into an application
// configuration, keeping flag handling out of the app's core logic.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/doc-E-brown/statsbox/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated
// app.Config and the target to run, a boolean indicating the program
// should exit cleanly (help requested), or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, string, bool, error) {
	flagSet := flag.NewFlagSet("statsbox", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
statsbox - a declarative build and simulation pipeline runner.

Usage:
  statsbox [options] [TARGET]

Arguments:
  TARGET
    Pipeline target or step to run. Defaults to 'all'.

Options:
`)
		flagSet.PrintDefaults()
	}

	pipelineFlag := flagSet.String("pipeline", "", "Path to a pipeline .hcl file or directory. Empty uses the built-in pipeline.")
	pFlag := flagSet.String("p", "", "Path to a pipeline .hcl file or directory (shorthand).")
	envFileFlag := flagSet.String("env-file", "", "Optional dotenv file layered over the process environment.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server (/health, /events). 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 4, "Number of concurrent workers for the executor.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, "", true, nil
		}
		return nil, "", false, &ExitError{Code: 2, Message: err.Error()}
	}

	pipelinePath := *pipelineFlag
	if pipelinePath == "" {
		pipelinePath = *pFlag
	}

	target := "all"
	switch flagSet.NArg() {
	case 0:
	case 1:
		target = flagSet.Arg(0)
	default:
		return nil, "", false, &ExitError{
			Code:    2,
			Message: fmt.Sprintf("expected at most one target, got %d: %s", flagSet.NArg(), strings.Join(flagSet.Args(), " ")),
		}
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath: pipelinePath,
		EnvFile:      *envFileFlag,
		StatusPort:   *statusPortFlag,
		LogFormat:    strings.ToLower(*logFormatFlag),
		LogLevel:     strings.ToLower(*logLevelFlag),
		WorkerCount:  *workersFlag,
	})
	if err != nil {
		return nil, "", false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, target, false, nil
}

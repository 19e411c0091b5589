package app

import "fmt"

// Config holds all the necessary configuration for an App instance to
// run.
type Config struct {
	// PipelinePath is a .hcl file or a directory of .hcl files. Empty
	// uses the built-in pipeline.
	PipelinePath string

	// EnvFile is an optional dotenv file layered over the process
	// environment before evaluation.
	EnvFile string

	LogFormat string
	LogLevel  string

	// StatusPort serves /health and the /events websocket stream.
	// 0 disables the server.
	StatusPort int

	WorkerCount int
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}

	if cfg.StatusPort < 0 {
		return nil, fmt.Errorf("invalid status port %d", cfg.StatusPort)
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	return &cfg, nil
}

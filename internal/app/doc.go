// Package app contains the core application logic. It wires the
// pipeline model, the runner registry and the executor together, and
// owns the run lifecycle, decoupled from any specific entrypoint like
// the CLI.
package app

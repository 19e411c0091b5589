package app

import (
	"context"
	"fmt"

	"github.com/doc-E-brown/statsbox/internal/config"
	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/dag"
	"github.com/doc-E-brown/statsbox/internal/events"
)

// Run resolves the named target into an execution plan and runs it.
// The returned error carries the failing step's root cause, so callers
// can propagate tool exit codes.
func (a *App) Run(ctx context.Context, target string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "target", target)

	if a.cfg.StatusPort > 0 {
		srv := a.startStatusServer(a.cfg.StatusPort)
		defer a.stopStatusServer(srv)
	}

	environ, err := config.Environ(a.cfg.EnvFile)
	if err != nil {
		return err
	}
	evalCtx := a.model.EvalContext(environ)

	plan, err := a.model.Plan(target)
	if err != nil {
		return err
	}
	a.logger.Debug("Execution plan resolved.", "target", target, "steps", len(plan.Steps))

	graph, err := dag.Build(plan)
	if err != nil {
		return fmt.Errorf("building dependency graph: %w", err)
	}

	var runErr error
	if len(graph.Nodes) > 0 {
		a.logger.Info("Starting pipeline run.", "target", target, "steps", len(graph.Nodes))
		exec := dag.NewExecutor(graph, a.registry, a.bus, evalCtx, a.cfg.WorkerCount)
		runErr = exec.Run(ctx)
	} else {
		a.logger.Warn("Target resolved to an empty plan, nothing to run.", "target", target)
	}

	finished := events.Event{Type: events.RunFinished, Target: target}
	if runErr != nil {
		finished.Error = runErr.Error()
	}
	a.bus.Publish(finished)

	if runErr != nil {
		a.logger.Error("Pipeline run failed.", "target", target, "error", runErr)
		return runErr
	}
	a.logger.Info("Pipeline run finished.", "target", target)
	return nil
}

package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/doc-E-brown/statsbox/internal/config"
	"github.com/doc-E-brown/statsbox/internal/ctxlog"
	"github.com/doc-E-brown/statsbox/internal/events"
	"github.com/doc-E-brown/statsbox/internal/registry"
)

// Executor runs a graph with a pool of concurrent workers.
type Executor struct {
	graph    *Graph
	registry *registry.Registry
	bus      *events.Bus
	evalCtx  *hcl.EvalContext
	workers  int

	wg sync.WaitGroup

	// outputs collects the cty outputs of completed steps for use in
	// later steps' argument expressions.
	mu      sync.Mutex
	outputs map[string]cty.Value
}

// NewExecutor wires an executor for the given graph. evalCtx is the
// root evaluation context for step arguments; bus receives lifecycle
// events.
func NewExecutor(graph *Graph, reg *registry.Registry, bus *events.Bus, evalCtx *hcl.EvalContext, workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	if evalCtx == nil {
		evalCtx = &hcl.EvalContext{}
	}
	return &Executor{
		graph:    graph,
		registry: reg,
		bus:      bus,
		evalCtx:  evalCtx,
		workers:  workers,
		outputs:  make(map[string]cty.Value),
	}
}

// Run executes the entire graph and returns an error if any node fails.
// It respects the cancellation signal from the provided context: on the
// first failure the remaining ready nodes are skipped.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootCount := 0
	for _, node := range e.graph.Nodes {
		if node.depCount.Load() == 0 {
			readyChan <- node
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "nodes", len(e.graph.Nodes), "roots", rootCount, "workers", e.workers)

	e.wg.Add(len(e.graph.Nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes completed.")

	return e.collectFailures(ctx)
}

// collectFailures reports the failed nodes, wrapping the first real
// failure as the root cause so exit codes survive the error chain.
func (e *Executor) collectFailures(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var failed []string
	var rootCause error
	for _, node := range e.graph.Nodes {
		switch node.State() {
		case Failed:
			logger.Error("Step failed.", "step", node.ID(), "error", node.Error)
			if node.Error != nil && !errors.Is(node.Error, context.Canceled) {
				failed = append(failed, node.ID())
				if rootCause == nil {
					rootCause = node.Error
				}
			}
		case Skipped:
			logger.Warn("Step skipped.", "step", node.ID(), "reason", node.Error)
		}
	}

	if rootCause != nil {
		sort.Strings(failed)
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	// A caller-driven cancellation leaves only Canceled errors behind;
	// the run still must not report success.
	return ctx.Err()
}

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "step", node.ID())

		if ctx.Err() != nil {
			e.skipNode(ctx, node, ctx.Err())
			continue
		}

		if !node.transition(Pending, Running) {
			// A failing upstream skipped this node between readiness and
			// pickup; it has already been accounted for.
			continue
		}
		workerLogger.Info("Starting step.", "runner", node.Step.RunnerType)
		e.bus.Publish(events.Event{Type: events.StepStarted, Step: node.ID()})

		output, err := e.runStep(ctx, node)
		if err != nil {
			workerLogger.Error("Step failed.", "error", err)
			node.setState(Failed)
			node.Error = err
			e.bus.Publish(events.Event{Type: events.StepFailed, Step: node.ID(), Error: err.Error()})
			cancel()
			e.skipDependents(ctx, node)
			e.wg.Done()
			continue
		}

		workerLogger.Info("Step succeeded.")
		node.setState(Done)
		node.Output = output
		e.storeOutput(node.ID(), output)
		e.bus.Publish(events.Event{Type: events.StepSucceeded, Step: node.ID()})

		for _, dependent := range node.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent step.", "dependent", dependent.ID())
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// runStep decodes the step's arguments and invokes its runner handler.
func (e *Executor) runStep(ctx context.Context, node *Node) (cty.Value, error) {
	handler, ok := e.registry.Handler(node.Step.RunnerType)
	if !ok {
		// The registry is validated at startup, so this is unreachable
		// unless the model and registry went out of sync.
		return cty.NilVal, fmt.Errorf("unknown runner type %q", node.Step.RunnerType)
	}

	var input any
	if handler.NewInput != nil {
		input = handler.NewInput()
	}
	if input != nil {
		if err := config.DecodeStepBody(node.Step.Body, e.stepEvalCtx(), input); err != nil {
			return cty.NilVal, fmt.Errorf("step %q: %w", node.ID(), err)
		}
	}

	outputs, err := handler.Run(ctx, input)
	if err != nil {
		return cty.NilVal, fmt.Errorf("step %q: %w", node.ID(), err)
	}

	ctyOut, err := config.ToCtyObject(outputs)
	if err != nil {
		return cty.NilVal, fmt.Errorf("step %q outputs: %w", node.ID(), err)
	}
	return ctyOut, nil
}

// stepEvalCtx extends the root evaluation context with a `step` object
// exposing the outputs of every completed step.
func (e *Executor) stepEvalCtx() *hcl.EvalContext {
	e.mu.Lock()
	defer e.mu.Unlock()

	stepVals := make(map[string]cty.Value, len(e.outputs))
	for name, out := range e.outputs {
		stepVals[name] = out
	}
	stepVar := cty.EmptyObjectVal
	if len(stepVals) > 0 {
		stepVar = cty.ObjectVal(stepVals)
	}

	child := e.evalCtx.NewChild()
	child.Variables = map[string]cty.Value{"step": stepVar}
	return child
}

func (e *Executor) storeOutput(id string, output cty.Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs[id] = output
}

// skipNode marks a pending node as skipped. Nodes already running,
// finished, or skipped are left alone.
func (e *Executor) skipNode(ctx context.Context, node *Node, cause error) {
	if !node.transition(Pending, Skipped) {
		return
	}
	ctxlog.FromContext(ctx).Warn("Skipping step.", "step", node.ID(), "cause", cause)
	node.Error = cause
	e.bus.Publish(events.Event{Type: events.StepSkipped, Step: node.ID(), Error: cause.Error()})
	e.wg.Done()
	e.skipDependents(ctx, node)
}

// skipDependents recursively marks all downstream nodes as skipped.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	for _, dependent := range node.dependents {
		e.skipNode(ctx, dependent, fmt.Errorf("skipped due to upstream failure of '%s'", node.ID()))
	}
}

package dag

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doc-E-brown/statsbox/internal/config"
	"github.com/doc-E-brown/statsbox/internal/events"
	"github.com/doc-E-brown/statsbox/internal/registry"
)

// recorder captures the order in which task steps ran.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) append(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, label)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

type taskInput struct {
	Label string `hcl:"label"`
	Fail  bool   `hcl:"fail,optional"`
	Text  string `hcl:"text,optional"`
}

// taskRegistry registers a single "task" runner that records its label,
// optionally fails, and echoes its inputs as outputs.
func taskRegistry(rec *recorder) *registry.Registry {
	r := registry.New()
	r.RegisterRunner("task", &registry.Handler{
		NewInput: func() any { return new(taskInput) },
		Run: func(ctx context.Context, input any) (map[string]any, error) {
			in := input.(*taskInput)
			rec.append(in.Label)
			if in.Fail {
				return nil, fmt.Errorf("task %s failed on purpose", in.Label)
			}
			return map[string]any{"label": in.Label, "text": in.Text}, nil
		},
	})
	return r
}

func runPipeline(t *testing.T, hcl, target string, workers int, rec *recorder) (*Graph, []events.Event, error) {
	t.Helper()

	plan := loadPlan(t, hcl, target)
	graph, err := Build(plan)
	require.NoError(t, err)

	model := &config.Model{Settings: config.Settings{Package: "./...", CoverDir: "cover"}}
	bus := events.NewBus()
	sub, cancel := bus.Subscribe(128)

	exec := NewExecutor(graph, taskRegistry(rec), bus, model.EvalContext(nil), workers)
	runErr := exec.Run(context.Background())

	cancel()
	var got []events.Event
	for e := range sub {
		got = append(got, e)
	}
	return graph, got, runErr
}

func TestRunSerialChainInOrder(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	graph, _, err := runPipeline(t, `
step "task" "test" { label = "test" }
step "task" "lint" { label = "lint" }
target "all" { steps = ["test", "lint"] }
`, "all", 4, rec)

	require.NoError(t, err)
	assert.Equal(t, []string{"test", "lint"}, rec.snapshot(),
		"consecutive target steps must run in declaration order")
	assert.Equal(t, Done, graph.Nodes["test"].State())
	assert.Equal(t, Done, graph.Nodes["lint"].State())
}

func TestRunIndependentStepsAllExecute(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	_, _, err := runPipeline(t, `
step "task" "a" { label = "a" }
step "task" "b" { label = "b" }
step "task" "c" { label = "c" }
step "task" "last" {
  label      = "last"
  depends_on = ["a", "b", "c"]
}
`, "last", 4, rec)

	require.NoError(t, err)
	order := rec.snapshot()
	require.Len(t, order, 4)
	assert.Equal(t, "last", order[3], "fan-in step must run after all dependencies")
}

func TestRunFailureSkipsDependents(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	graph, evts, err := runPipeline(t, `
step "task" "test" {
  label = "test"
  fail  = true
}
step "task" "lint" { label = "lint" }
target "all" { steps = ["test", "lint"] }
`, "all", 2, rec)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "test")
	assert.Contains(t, err.Error(), "failed on purpose")

	assert.Equal(t, []string{"test"}, rec.snapshot(), "lint must not run after test fails")
	assert.Equal(t, Failed, graph.Nodes["test"].State())
	assert.Equal(t, Skipped, graph.Nodes["lint"].State())

	types := make([]events.Type, 0, len(evts))
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Equal(t, []events.Type{events.StepStarted, events.StepFailed, events.StepSkipped}, types)
}

func TestRunOutputsFlowBetweenSteps(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	graph, _, err := runPipeline(t, `
step "task" "first" {
  label = "first"
  text  = "hello"
}
step "task" "second" {
  label      = "second"
  text       = step.first.text
  depends_on = ["first"]
}
`, "second", 2, rec)

	require.NoError(t, err)
	out := graph.Nodes["second"].Output
	assert.Equal(t, "hello", out.GetAttr("text").AsString())
}

func TestRunPipelineVariablesAvailable(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	graph, _, err := runPipeline(t, `
step "task" "only" {
  label = "only"
  text  = pipeline.cover_dir
}
`, "only", 1, rec)

	require.NoError(t, err)
	out := graph.Nodes["only"].Output
	assert.Equal(t, "cover", out.GetAttr("text").AsString())
}

func TestRunEmptyGraph(t *testing.T) {
	t.Parallel()

	g, err := Build(&config.Plan{})
	require.NoError(t, err)

	exec := NewExecutor(g, registry.New(), events.NewBus(), nil, 2)
	assert.NoError(t, exec.Run(context.Background()))
}

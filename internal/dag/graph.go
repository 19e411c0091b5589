// Package dag builds and executes the dependency graph of pipeline
// steps. Nodes track their unmet dependency count with an atomic
// counter; a node becomes ready when the counter reaches zero, and a
// failing node causes all transitive dependents to be skipped.
package dag

import (
	"fmt"
	"sync/atomic"

	"github.com/zclconf/go-cty/cty"

	"github.com/doc-E-brown/statsbox/internal/config"
)

// State is the lifecycle state of a node.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
	Skipped
)

// Node is a single step in the execution graph.
type Node struct {
	Step *config.Step

	deps       map[string]*Node
	dependents map[string]*Node

	depCount atomic.Int32
	state    atomic.Int32

	// Error and Output are written by the worker that owns the node and
	// read only after the run completes.
	Error  error
	Output cty.Value
}

// ID returns the step name, which is unique within a graph.
func (n *Node) ID() string {
	return n.Step.Name
}

// State returns the node's current lifecycle state.
func (n *Node) State() State {
	return State(n.state.Load())
}

func (n *Node) setState(s State) {
	n.state.Store(int32(s))
}

// transition atomically moves the node from one state to another,
// reporting whether the move happened. It keeps a node from being both
// executed and skipped when an upstream failure races a ready worker.
func (n *Node) transition(from, to State) bool {
	return n.state.CompareAndSwap(int32(from), int32(to))
}

// Graph is a validated dependency graph ready for execution.
type Graph struct {
	Nodes map[string]*Node
}

// Build constructs a graph from an execution plan, rejecting duplicate
// nodes, dangling edges and cycles.
func Build(plan *config.Plan) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]*Node, len(plan.Steps))}

	for _, step := range plan.Steps {
		if _, dup := g.Nodes[step.Name]; dup {
			return nil, fmt.Errorf("duplicate node %q in plan", step.Name)
		}
		g.Nodes[step.Name] = &Node{
			Step:       step,
			deps:       make(map[string]*Node),
			dependents: make(map[string]*Node),
		}
	}

	for _, edge := range plan.Edges {
		if err := g.addEdge(edge.From, edge.To); err != nil {
			return nil, err
		}
	}

	for _, node := range g.Nodes {
		node.depCount.Store(int32(len(node.deps)))
	}

	if err := g.detectCycles(); err != nil {
		return nil, fmt.Errorf("validating dependency graph: %w", err)
	}
	return g, nil
}

// addEdge records that toID must wait for fromID. Adding the same edge
// twice is harmless.
func (g *Graph) addEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, fromID)
	}
	fromNode, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	toNode, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	toNode.deps[fromID] = fromNode
	fromNode.dependents[toID] = toNode
	return nil
}

// detectCycles runs a depth-first search with the classic three node
// sets: permanently visited, in the current recursion stack, and
// unvisited.
func (g *Graph) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n.ID()] {
			return nil
		}
		if temporary[n.ID()] {
			return fmt.Errorf("cycle detected involving node '%s'", n.ID())
		}

		temporary[n.ID()] = true
		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, n.ID())
		permanent[n.ID()] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !permanent[n.ID()] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// Package enginetest provides a scripted in-memory engine for tests.
//
// The engine keeps a single current graph. Terms are looked up in a table
// instead of being parsed, and rewrites run per-node scripts. Without a
// script a reduce marks the node inert, so every reducible node can be
// rewritten exactly once.
//
//	e := enginetest.New()
//	e.AddTerm("id", graph.Graph{...})
//	e.Script(3, enginetest.Replace(3, graph.Node{ID: 9, Kind: graph.KindLambda}))
package enginetest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/matzehuels/olette/pkg/engine"
	"github.com/matzehuels/olette/pkg/errors"
	"github.com/matzehuels/olette/pkg/graph"
)

// Rule rewrites g at a node and returns the new graph.
type Rule func(g graph.Graph, node graph.NodeID, kind engine.RuleKind) (graph.Graph, error)

// Engine is an in-memory [engine.Engine]. It is safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	terms   map[string]graph.Graph
	scripts map[graph.NodeID]Rule
	fail    map[string]error
	current graph.Graph
	calls   []string
	updates [][]graph.NodeState
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine with no known terms.
func New() *Engine {
	return &Engine{
		terms:   map[string]graph.Graph{},
		scripts: map[graph.NodeID]Rule{},
		fail:    map[string]error{},
	}
}

// AddTerm registers the graph Load returns for term.
func (e *Engine) AddTerm(term string, g graph.Graph) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.terms[term] = g.Clone()
}

// Script installs the rule a reduce at node runs.
func (e *Engine) Script(node graph.NodeID, r Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts[node] = r
}

// FailNext makes the next call of op return err.
func (e *Engine) FailNext(op string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[op] = err
}

// Calls returns the operations performed so far, e.g. "update", "reduce 3 auto".
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.calls)
}

// Count returns how many calls of op were made.
func (e *Engine) Count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == op || (len(c) > len(op) && c[:len(op)+1] == op+" ") {
			n++
		}
	}
	return n
}

// Updates returns every position payload received.
func (e *Engine) Updates() [][]graph.NodeState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.updates)
}

// Export returns the engine's current graph.
func (e *Engine) Export() graph.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

func (e *Engine) record(call, op string) error {
	e.calls = append(e.calls, call)
	if err, ok := e.fail[op]; ok {
		delete(e.fail, op)
		return err
	}
	return nil
}

// Load implements [engine.Engine].
func (e *Engine) Load(_ context.Context, term string) (graph.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("load", engine.OpLoad); err != nil {
		return graph.Graph{}, err
	}
	g, ok := e.terms[term]
	if !ok {
		return graph.Graph{}, errors.New(errors.ErrCodeMalformedTerm, "cannot parse %q", term)
	}
	e.current = g.Clone()
	return e.current.Clone(), nil
}

// Update implements [engine.Engine]. Positions, pins, labels and titles are
// applied to the current graph.
func (e *Engine) Update(_ context.Context, states []graph.NodeState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("update", engine.OpUpdate); err != nil {
		return err
	}
	e.updates = append(e.updates, slices.Clone(states))
	byID := make(map[graph.NodeID]int, len(e.current.Nodes))
	for i, n := range e.current.Nodes {
		byID[n.ID] = i
	}
	for _, st := range states {
		i, ok := byID[st.ID]
		if !ok {
			continue
		}
		n := &e.current.Nodes[i]
		n.X, n.Y, n.Fixed = st.X, st.Y, st.Fixed
		n.Label, n.Title = st.Label, st.Title
	}
	return nil
}

// Reduce implements [engine.Engine].
func (e *Engine) Reduce(_ context.Context, node graph.NodeID, kind engine.RuleKind) (graph.Graph, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record(fmt.Sprintf("reduce %d %s", node, kind), engine.OpReduce); err != nil {
		return graph.Graph{}, err
	}
	if !slices.ContainsFunc(e.current.Nodes, func(n graph.Node) bool { return n.ID == node }) {
		return graph.Graph{}, fmt.Errorf("no node %d", node)
	}
	rule, ok := e.scripts[node]
	if !ok {
		rule = Settle
	}
	next, err := rule(e.current.Clone(), node, kind)
	if err != nil {
		return graph.Graph{}, err
	}
	e.current = next.Clone()
	return next, nil
}

// Rebuild implements [engine.Engine].
func (e *Engine) Rebuild(_ context.Context, g graph.Graph) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.record("rebuild", engine.OpRebuild); err != nil {
		return err
	}
	e.current = g.Clone()
	return nil
}

// =============================================================================
// Rules
// =============================================================================

// Settle marks the node inert. It is the default rule.
func Settle(g graph.Graph, node graph.NodeID, _ engine.RuleKind) (graph.Graph, error) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == node {
			g.Nodes[i].Color = graph.ColorInert
		}
	}
	return g, nil
}

// Replace returns a rule that removes the anchor node and inserts repl in its
// place. Links touching the anchor are rewired to the first replacement.
func Replace(repl ...graph.Node) Rule {
	return func(g graph.Graph, node graph.NodeID, _ engine.RuleKind) (graph.Graph, error) {
		if len(repl) == 0 {
			return graph.Graph{}, fmt.Errorf("empty replacement")
		}
		nodes := slices.DeleteFunc(g.Nodes, func(n graph.Node) bool { return n.ID == node })
		nodes = append(nodes, repl...)
		for i := range g.Links {
			if g.Links[i].Source == node {
				g.Links[i].Source = repl[0].ID
			}
			if g.Links[i].Target == node {
				g.Links[i].Target = repl[0].ID
			}
		}
		return graph.Graph{Nodes: nodes, Links: g.Links}, nil
	}
}

// Sequence returns a rule that runs the given rules on successive reduces at
// the same node, then falls back to [Settle].
func Sequence(rules ...Rule) Rule {
	var mu sync.Mutex
	i := 0
	return func(g graph.Graph, node graph.NodeID, kind engine.RuleKind) (graph.Graph, error) {
		mu.Lock()
		r := Rule(Settle)
		if i < len(rules) {
			r = rules[i]
			i++
		}
		mu.Unlock()
		return r(g, node, kind)
	}
}

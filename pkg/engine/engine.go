package engine

import (
	"context"
	"fmt"

	"github.com/matzehuels/olette/pkg/graph"
)

// Engine is the external rewriting engine.
type Engine interface {
	// Load parses term and returns its graph.
	Load(ctx context.Context, term string) (graph.Graph, error)

	// Update pushes the presentation state of every node.
	Update(ctx context.Context, states []graph.NodeState) error

	// Reduce applies one rewrite of the given kind at node and returns the
	// post-rewrite graph.
	Reduce(ctx context.Context, node graph.NodeID, rule RuleKind) (graph.Graph, error)

	// Rebuild resets the engine to g.
	Rebuild(ctx context.Context, g graph.Graph) error
}

// RuleKind selects which rewrite the engine applies.
type RuleKind string

const (
	RuleAuto      RuleKind = "auto"
	RuleDuplicate RuleKind = "duplicate"
	RuleCancel    RuleKind = "cancel"
)

// RuleKinds lists every rule kind in display order.
var RuleKinds = []RuleKind{RuleAuto, RuleDuplicate, RuleCancel}

// ParseRuleKind parses a rule name. The empty string parses as [RuleAuto].
func ParseRuleKind(s string) (RuleKind, error) {
	switch RuleKind(s) {
	case "", RuleAuto:
		return RuleAuto, nil
	case RuleDuplicate:
		return RuleDuplicate, nil
	case RuleCancel:
		return RuleCancel, nil
	}
	return "", fmt.Errorf("unknown rule kind %q (want auto, duplicate or cancel)", s)
}

func (r RuleKind) String() string { return string(r) }

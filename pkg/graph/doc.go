// Package graph provides the term-graph wire format and the in-memory model
// the debugger renders and edits.
//
// This package defines the canonical JSON schema exchanged with the rewriting
// engine, stored in history snapshots, and persisted in session slots.
//
// # Core Types
//
//   - [Graph]: Node-link container exchanged with the engine
//   - [Node], [Edge]: Agents and wires of the term graph
//   - [Model]: The authoritative current graph plus render attributes
//   - [NodeState]: Presentation state pushed back to the engine
//
// # Wire Format
//
// Graphs use the node-link JSON format produced by the engine:
//
//	{
//	  "nodes": [{"id": 1, "kind": "root", "label": "ℝ", "ports": [90], "p": [1]}],
//	  "links": [{"id": 1, "source": 1, "target": 2, "ports": {"s": 90, "t": 270}, "p": {"s": 0, "t": 0}}]
//	}
//
// Edge endpoints are node ids, never array indices.
//
// # Colors
//
// Node colors are semantic tags assigned by the engine. A node is eligible for
// a rewrite when its color is [ColorReducible]; callers compare through
// [Node.Reducible] rather than matching color literals.
//
// # Model Updates
//
//	m := graph.NewModel()
//	m.Replace(loaded)            // load, rebuild, history navigation
//	m.ApplyPatch(patch, &spawn)  // reduce: merge the engine's post-rewrite graph
//
// # Concurrency
//
// [Model] is not safe for concurrent use. It is owned by a single session.
package graph

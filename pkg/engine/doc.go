// Package engine defines the boundary to the term-graph rewriting engine and
// the protocol that keeps the engine consistent with the rendered graph.
//
// The engine is an external collaborator reachable through four operations:
//
//   - Load parses a term and returns its graph
//   - Update receives the presentation state of every node
//   - Reduce applies one rewrite anchored at a node and returns the new graph
//   - Rebuild resets the engine to a given graph
//
// [Sync] wraps an [Engine] and enforces the ordering contract: positions are
// pushed before every reduce, and after a history jump the engine must be
// rebuilt before the next reduce. Calls are serialized and never retried.
//
// Implementations live in subpackages: remote talks to an engine process
// over HTTP, enginetest is a scripted in-memory engine for tests.
package engine

// Package pkg provides the libraries behind olette, an interactive debugger
// for interaction-net term rewriting.
//
// # Overview
//
// A term is handed to an external rewrite engine, which answers with a graph
// of typed nodes and port-addressed links. olette keeps that graph on screen,
// lets the user pick a reducible node and rewrite it, and records every step
// so the rewrite can be walked back and forth. The pkg directory is organized
// into these areas:
//
//  1. [graph] - Wire types, JSON codec and the mutable display model
//  2. [engine] - The engine interface, its HTTP client and the sync guard
//  3. [selection], [history], [autostep] - Debugger state machines
//  4. [layout], [route] - Force layout and port-aware link geometry
//  5. [session] - The single-owner controller tying the above together
//  6. [store] - Persisted slots (file, redis, mongo, memory)
//  7. [render] - SVG scenes and graphviz exports
//
// # Data Flow
//
//	term
//	  ↓
//	[engine] Load ──→ [graph] Model ──→ [layout] ticks ──→ [render/scene] SVG
//	                      ↑                  │
//	   [selection] ──→ Reduce ──→ patch      ↓
//	                      │             [history] snapshot ──→ [store] slot
//	                      └── [autostep] repeats until normal form
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/olette/pkg/engine/remote"
//	    "github.com/matzehuels/olette/pkg/render/scene"
//	    "github.com/matzehuels/olette/pkg/session"
//	)
//
//	eng, _ := remote.New("http://127.0.0.1:7878")
//	sess := session.New(session.Options{Engine: eng})
//	if err := sess.Load(ctx, `(\x.x) y`); err != nil {
//	    return err
//	}
//	if _, err := sess.RunAuto(ctx, nil); err != nil {
//	    return err
//	}
//	svg := scene.RenderSVG(sess.Graph())
//
// # Concurrency
//
// A [session.Session] is not safe for concurrent use. Front ends give it one
// owner: the terminal debugger calls it from its update loop, the HTTP server
// from one goroutine per session.
//
// [graph]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/graph
// [engine]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/engine
// [selection]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/selection
// [history]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/history
// [autostep]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/autostep
// [layout]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/layout
// [route]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/route
// [session]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/session
// [store]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/store
// [render]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/render
// [render/scene]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/render/scene
// [session.Session]: https://pkg.go.dev/github.com/matzehuels/olette/pkg/session#Session
package pkg

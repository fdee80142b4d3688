// Package remote implements [engine.Engine] over HTTP.
//
// The engine process exposes one JSON endpoint per operation:
//
//	POST /load     {"term": "..."}              -> graph
//	POST /update   [{"id":1,"x":0,...}, ...]    -> 204
//	POST /reduce   {"node": 3, "rule": "auto"}  -> graph
//	POST /rebuild  graph                        -> 204
//
// Errors are returned as {"error": "...", "code": "..."} with a non-2xx
// status. A 400 or 422 from /load is reported as MALFORMED_TERM.
//
// Engines that host several nets select one by the [SessionHeader] value.
// Requests are never retried: a rewrite that reached the engine must not be
// applied twice.
package remote

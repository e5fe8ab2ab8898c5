// Package server exposes a live Coordinator over HTTP.
//
// The Coordinator is single-threaded, so every handler takes the server's
// lock before touching it. Events arrive as JSON documents on
// POST /api/v1/events or, optionally, from a NATS subject. Alerts and new
// fingerprint timeline entries are pushed to websocket clients on
// /api/v1/stream as they happen.
package server

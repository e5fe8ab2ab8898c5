// Package main provides the entry point for the surveilscope CLI.
//
// surveilscope detects surveillance in recorded or live browser traffic:
// third-party tracking, browser fingerprinting, data exfiltration,
// beaconing and personalized pricing.
//
// Usage:
//
//	surveilscope analyze capture.jsonl
//	surveilscope serve --listen 127.0.0.1:8787
//
// See --help for all available options.
package main

// main is the entry point for surveilscope.
func main() {
	Execute()
}

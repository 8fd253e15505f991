// Package main hosts the voiceover CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the commentary-removal pipeline over a
// clips directory or a single clip, lists clips and ledger runs, serves the
// HTTP workspace, and reports dependency status. Configuration resolution,
// logger setup, and pipeline wiring live here so the internal packages stay
// free of process concerns.
package main

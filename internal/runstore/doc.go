// Package runstore persists the history of batch runs in SQLite.
//
// Every batch (and every single-clip request from the HTTP server) opens a
// run, records each clip's state transitions as it moves through the
// pipeline, and closes the run with its final counts. The CLI `runs`
// commands and the /api/runs endpoint read it back. The ledger is
// observational: the pipeline never consults it to decide what to do.
package runstore

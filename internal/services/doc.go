// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp clip IDs, stage names, and batch run
//     identifiers for logging and the run ledger.
//   - Structured error markers plus the Wrap helper so extraction, model load,
//     inference, and write failures can be classified with errors.Is at the
//     clip boundary instead of by string matching.
//
// Use these helpers when wiring new stage logic so failure handling and
// observability stay uniform across the pipeline.
package services

// Package pipeline removes commentary from video clips.
//
// A Processor moves one clip through
// discovered → audio_extracted → separated → recombined → written, or to
// failed with the stage that was not reached. Extraction shells out to ffmpeg
// (retrying crashes and timeouts), separation normalizes the mix, runs the
// loaded model, and denormalizes every stem with the same statistics, and the
// residual (every stem but the commentary one) is written atomically as
// <output>/<clip id>.wav.
//
// Batch wraps the Processor with discovery, an exclusive lock on the output
// directory, a bounded worker pool, crash-leftover sweeping, notifications,
// and the run ledger. A model load failure aborts the batch before any clip
// is touched; every other failure is confined to its clip.
package pipeline

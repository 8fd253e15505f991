// Package demucs runs pretrained Demucs models in a persistent Python worker.
//
// The worker script is embedded in the binary and launched through
// `uv run --with demucs` (or a configured interpreter that already has
// demucs installed). It loads the model once, reports its sample rate,
// channel count, and source names in a handshake line, then answers framed
// requests of raw float32 audio with framed stems. Normalization and
// recombination stay on the Go side.
package demucs

// Package ffprobe wraps the ffprobe binary to inspect clip containers.
//
// The clip catalog uses it for durations and the extractor uses it to
// distinguish a clip with no audio stream from a genuinely broken file.
package ffprobe

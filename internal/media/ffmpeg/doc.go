// Package ffmpeg drives the ffmpeg binary for the two transcodes voiceover
// needs: pulling a clip's audio track out as PCM WAV, and muxing a recorded
// voice-over back onto the clip's video.
//
// Commands run through an injectable runner so tests never need ffmpeg.
// Failures come back as errors marked with services sentinels; crashes and
// timeouts are additionally marked transient so callers can retry them.
package ffmpeg

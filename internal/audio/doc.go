// Package audio holds the in-memory waveform representation shared by the
// extraction, separation, and writing stages, plus PCM WAV decoding and
// encoding.
//
// A Waveform is channel-planar: Samples[c][f] is frame f of channel c, with
// every channel the same length. Sample values are nominally in [-1, 1].
package audio

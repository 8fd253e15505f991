// Package preflight provides readiness checks for the filesystem paths and
// external binaries voiceover depends on.
//
// These checks run in two contexts:
//   - The CLI "voiceover status" command renders RunAll as a table.
//   - "voiceover serve" and "voiceover process" log failed checks at startup
//     so a missing ffmpeg or an unwritable output directory is reported
//     before the model is loaded.
//
// FreeBytes doubles as the pipeline's free-space probe.
package preflight

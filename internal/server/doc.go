// Package server exposes the clip workspace over HTTP: the clip catalog,
// thumbnails, voice-over recording and merging, processed residual audio,
// single-clip processing, and the run ledger.
//
// Errors are JSON objects with a "detail" field. Writes and the ledger sit
// behind the optional bearer token; media GETs stay open so browser media
// elements can load them directly.
package server

// Package clips presents the clips directory to the UI: display names,
// served URLs, probe durations, whether a commentary-free residual exists,
// and thumbnails (custom images or a generated colour card).
package clips

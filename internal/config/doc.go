// Package config loads, normalizes, and validates voiceover configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VOICEOVER_API_TOKEN and NTFY_TOPIC. Content subdirectories (clips,
// recordings, processed-audio, merged, thumbnails) default to children of
// paths.content_dir so a single setting relocates the whole workspace.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

// Package notifications publishes batch lifecycle events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers always hold a usable Service. Individual events can be muted via
// the notifications section of the config.
package notifications

package logging

// Standardized structured logging keys.
const (
	FieldComponent     = "component"
	FieldClipID        = "clip_id"
	FieldStage         = "stage"
	FieldRunID         = "run_id"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldErrorKind     = "error_kind"
	FieldImpact        = "impact"
	FieldDecisionType  = "decision_type"
	FieldAttempt       = "attempt"
	FieldDurationMS    = "duration_ms"
	FieldCorrelationID = "correlation_id"
)

package pipeline

// State is a clip's position in the pipeline.
type State string

const (
	StateDiscovered     State = "discovered"
	StateAudioExtracted State = "audio_extracted"
	StateSeparated      State = "separated"
	StateRecombined     State = "recombined"
	StateWritten        State = "written"
	StateFailed         State = "failed"
	// StateSkipped marks clips never started because the batch was cancelled.
	StateSkipped State = "skipped"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateWritten || s == StateFailed || s == StateSkipped
}

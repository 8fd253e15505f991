// Package separation splits a mixed waveform into stems with a pretrained
// source separation model and recombines the stems that should survive.
//
// The flow for one clip is:
//
//	norm, stats := Normalize(mix)
//	stems, err := model.Separate(ctx, norm)
//	stems = DenormalizeStems(stems, stats)
//	residual, err := Recombine(stems, CommentaryIndex(model.Info(), "vocals"))
//
// Stats are plain values owned by the caller for the duration of one clip.
// Models are obtained from a Loader, which starts each backend at most once
// per process; backends serialize their own inference.
package separation

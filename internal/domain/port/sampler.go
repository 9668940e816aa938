package port

import (
	"context"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
)

// VideoInfo is the container metadata gathered when a source is opened.
type VideoInfo struct {
	Width         int
	Height        int
	FPS           float64
	DurationSec   float64
	FrameEstimate int
}

// SampleOptions bound how much of a video the sampler decodes.
type SampleOptions struct {
	// Interval is the spacing between sampled frames (every Nth decoded frame).
	Interval int
	// MaxFrames caps the number of frames yielded; decoding stops once hit.
	MaxFrames int
}

// FrameStream is a single-pass, lazy sequence of sampled frames.
// Next returns io.EOF when the stream is exhausted. Close releases the decode
// context and must be called on every exit path, including abandonment.
type FrameStream interface {
	Next(ctx context.Context) (*entity.Frame, error)
	Close() error
}

// FrameSampler opens a video source for bounded, evenly spaced frame sampling.
type FrameSampler interface {
	Open(ctx context.Context, videoPath string, opts SampleOptions) (FrameStream, *VideoInfo, error)
}

// Preprocessor maps one decoded frame to a model-ready tensor. Total for any
// frame: an unusable frame yields a deterministic neutral tensor, never an error.
type Preprocessor interface {
	Transform(frame *entity.Frame) entity.Tensor
}

package entity

// Tensor dimensions expected by the detection model.
const (
	TensorChannels = 3
	TensorHeight   = 224
	TensorWidth    = 224
)

// Frame is one decoded still image, packed RGB24 (3 bytes per pixel, row-major).
// Frames are produced by the sampler, consumed by the preprocessor and not
// retained after scoring.
type Frame struct {
	Index     int
	Width     int
	Height    int
	Timestamp float64 // seconds from stream start
	Pixels    []byte  // len == Width*Height*3
}

// Usable reports whether the frame carries a well-formed pixel buffer.
func (f *Frame) Usable() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Pixels) >= f.Width*f.Height*3
}

// Tensor is a model-ready frame in CHW layout, normalized per channel.
type Tensor struct {
	Data []float32 // len == TensorChannels*TensorHeight*TensorWidth
}

// At returns the value at channel c, row y, column x.
func (t Tensor) At(c, y, x int) float32 {
	return t.Data[c*TensorHeight*TensorWidth+y*TensorWidth+x]
}

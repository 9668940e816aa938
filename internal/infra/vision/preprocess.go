// Package vision normalizes decoded frames into the tensor shape and value
// range the detection model expects.
package vision

import (
	"image"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"golang.org/x/image/draw"
)

// Per-channel normalization constants the model was trained with.
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocessor maps a Frame to a 3x224x224 normalized tensor. It is pure and
// total: the region crop falls back to a full-frame resize when degenerate,
// and a frame with no usable pixels maps to a neutral mid-gray tensor, so one
// bad frame never aborts a whole video.
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

func (p *Preprocessor) Transform(frame *entity.Frame) entity.Tensor {
	if !frame.Usable() {
		return neutralTensor()
	}

	src := rgbaFromFrame(frame)

	// Center square crop as the region of interest; a degenerate crop
	// (extreme aspect ratio collapsing a side to zero) falls back to the
	// full frame.
	roi := centerSquare(src.Bounds())
	if roi.Dx() <= 0 || roi.Dy() <= 0 {
		roi = src.Bounds()
	}

	dst := image.NewRGBA(image.Rect(0, 0, entity.TensorWidth, entity.TensorHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, roi, draw.Src, nil)

	return tensorFromRGBA(dst)
}

func rgbaFromFrame(frame *entity.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for y := 0; y < frame.Height; y++ {
		srcRow := frame.Pixels[y*frame.Width*3:]
		dstRow := img.Pix[y*img.Stride:]
		for x := 0; x < frame.Width; x++ {
			dstRow[x*4+0] = srcRow[x*3+0]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 0xff
		}
	}
	return img
}

func centerSquare(b image.Rectangle) image.Rectangle {
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	x0 := b.Min.X + (b.Dx()-side)/2
	y0 := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(x0, y0, x0+side, y0+side)
}

func tensorFromRGBA(img *image.RGBA) entity.Tensor {
	data := make([]float32, entity.TensorChannels*entity.TensorHeight*entity.TensorWidth)
	plane := entity.TensorHeight * entity.TensorWidth
	for y := 0; y < entity.TensorHeight; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < entity.TensorWidth; x++ {
			for c := 0; c < entity.TensorChannels; c++ {
				v := float32(row[x*4+c]) / 255.0
				data[c*plane+y*entity.TensorWidth+x] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return entity.Tensor{Data: data}
}

// neutralTensor is the deterministic fallback for unusable frames: mid-gray in
// pixel space, normalized like any other value.
func neutralTensor() entity.Tensor {
	data := make([]float32, entity.TensorChannels*entity.TensorHeight*entity.TensorWidth)
	plane := entity.TensorHeight * entity.TensorWidth
	for c := 0; c < entity.TensorChannels; c++ {
		v := (0.5 - channelMean[c]) / channelStd[c]
		for i := 0; i < plane; i++ {
			data[c*plane+i] = v
		}
	}
	return entity.Tensor{Data: data}
}

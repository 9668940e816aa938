package model

import (
	"context"
	"math"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
	"go.uber.org/zap"
)

// Scorer applies the loaded artifact to tensors. It is stateless after Load
// and safe for concurrent use; Predict is pure, so batch boundaries and the
// orchestrator's single retry cannot change results.
type Scorer struct {
	art         *Artifact
	fingerprint string
}

// Load reads the artifact at path and returns the process-wide scorer.
func Load(path string, logger *zap.Logger) (*Scorer, error) {
	art, fingerprint, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	logger.Info("model loaded",
		zap.String("name", art.Name),
		zap.String("fingerprint", fingerprint),
		zap.String("path", path),
	)
	return &Scorer{art: art, fingerprint: fingerprint}, nil
}

func (s *Scorer) Fingerprint() string { return s.fingerprint }

// Predict returns one fake probability per tensor, in input order.
func (s *Scorer) Predict(ctx context.Context, batch []entity.Tensor) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, t := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.score(t)
	}
	return out, nil
}

func (s *Scorer) score(t entity.Tensor) float64 {
	f := extractFeatures(t)
	logit := s.art.Bias
	for i, w := range s.art.Weights {
		logit += w * f[i]
	}
	return 1 / (1 + math.Exp(-logit/s.art.Temperature))
}

// extractFeatures computes the fixed forensic feature vector for one frame:
// per-channel first and second moments, gradient and Laplacian energy of the
// luma plane, 8-pixel blockiness, and chroma spread. Synthetic footage tends
// to separate from camera footage along these axes.
func extractFeatures(t entity.Tensor) [FeatureCount]float64 {
	const (
		h     = entity.TensorHeight
		w     = entity.TensorWidth
		plane = h * w
	)

	var f [FeatureCount]float64

	// Channel means and standard deviations.
	for c := 0; c < entity.TensorChannels; c++ {
		var sum, sumSq float64
		for i := 0; i < plane; i++ {
			v := float64(t.Data[c*plane+i])
			sum += v
			sumSq += v * v
		}
		mean := sum / plane
		f[c] = mean
		f[3+c] = math.Sqrt(math.Max(0, sumSq/plane-mean*mean))
	}

	luma := func(y, x int) float64 {
		idx := y*w + x
		return 0.299*float64(t.Data[idx]) +
			0.587*float64(t.Data[plane+idx]) +
			0.114*float64(t.Data[2*plane+idx])
	}

	// Gradient energy.
	var grad float64
	for y := 0; y < h-1; y++ {
		for x := 0; x < w-1; x++ {
			v := luma(y, x)
			grad += math.Abs(luma(y, x+1)-v) + math.Abs(luma(y+1, x)-v)
		}
	}
	f[6] = grad / float64((h-1)*(w-1))

	// Laplacian energy (high-frequency residual).
	var lap float64
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			lap += math.Abs(4*luma(y, x) - luma(y-1, x) - luma(y+1, x) - luma(y, x-1) - luma(y, x+1))
		}
	}
	f[7] = lap / float64((h-2)*(w-2))

	// Blockiness: discontinuity across 8-pixel boundaries.
	var block float64
	var blockN int
	for x := 8; x < w; x += 8 {
		for y := 0; y < h; y++ {
			block += math.Abs(luma(y, x) - luma(y, x-1))
			blockN++
		}
	}
	for y := 8; y < h; y += 8 {
		for x := 0; x < w; x++ {
			block += math.Abs(luma(y, x) - luma(y-1, x))
			blockN++
		}
	}
	if blockN > 0 {
		f[8] = block / float64(blockN)
	}

	// Chroma spread.
	var chroma float64
	for i := 0; i < plane; i++ {
		r := float64(t.Data[i])
		g := float64(t.Data[plane+i])
		b := float64(t.Data[2*plane+i])
		chroma += math.Abs(r-g) + math.Abs(g-b)
	}
	f[9] = chroma / plane

	return f
}

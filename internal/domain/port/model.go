package port

import (
	"context"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/entity"
)

// Model is the loaded scoring function. Loaded once at startup, read-only and
// shared across concurrent requests. Predict returns one fake probability in
// [0,1] per tensor, in input order, and is deterministic, so a failed batch is
// safe to retry.
type Model interface {
	Predict(ctx context.Context, batch []entity.Tensor) ([]float64, error)
	Fingerprint() string
}

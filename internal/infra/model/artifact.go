// Package model loads the detection model artifact and exposes it as the
// process-wide, read-only scoring function. Loading happens exactly once at
// startup; a load failure is fatal to the process.
package model

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aayush-chouhan-7050/TrueFrame/internal/domain/detect"
)

// FeatureCount is the length of the per-frame feature vector the scorer
// computes. The artifact's weight vector must match it exactly.
const FeatureCount = 10

const artifactVersion = 1

// Artifact is the serialized form of the trained classifier: a calibrated
// logistic model over per-frame forensic features. How it is trained is out of
// scope here; the service only applies it.
type Artifact struct {
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	Temperature float64   `json:"temperature"`
}

// LoadArtifact reads and validates the model file. All failures map to
// ModelUnavailable.
func LoadArtifact(path string) (*Artifact, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", detect.Wrap(detect.KindModelUnavailable, "read model artifact", err)
	}

	var art Artifact
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, "", detect.Wrap(detect.KindModelUnavailable, "parse model artifact", err)
	}
	if err := art.validate(); err != nil {
		return nil, "", detect.Wrap(detect.KindModelUnavailable, "invalid model artifact", err)
	}

	fingerprint := fmt.Sprintf("%x", sha256.Sum256(raw))[:16]
	return &art, fingerprint, nil
}

func (a *Artifact) validate() error {
	if a.Version != artifactVersion {
		return fmt.Errorf("unsupported artifact version %d", a.Version)
	}
	if len(a.Weights) != FeatureCount {
		return fmt.Errorf("weight vector has %d entries, want %d", len(a.Weights), FeatureCount)
	}
	if a.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", a.Temperature)
	}
	return nil
}

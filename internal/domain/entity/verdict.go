package entity

import (
	"errors"
	"math"
)

type Label string

const (
	LabelReal Label = "REAL"
	LabelFake Label = "FAKE"
)

// FrameScore is the model output for a single sampled frame.
type FrameScore struct {
	FrameIndex int     `json:"frame_index"`
	PFake      float64 `json:"p_fake"`
}

// Verdict is the final decision for a whole video.
type Verdict struct {
	Label      Label        `json:"prediction"`
	Confidence float64      `json:"confidence"` // percent, two decimals
	Scores     []FrameScore `json:"scores,omitempty"`
}

// ErrNoScores is returned when aggregation is attempted over zero frame scores.
var ErrNoScores = errors.New("no frame scores to aggregate")

// fakeThreshold: a mean fake probability at or above this resolves to FAKE.
// The tie at exactly 0.5 is FAKE on purpose, never left to float chance.
const fakeThreshold = 0.5

// Aggregate reduces the full score set to one verdict. The rule is a plain
// mean, so it is commutative and associative over frame order.
func Aggregate(scores []FrameScore) (Verdict, error) {
	if len(scores) == 0 {
		return Verdict{}, ErrNoScores
	}

	var sum float64
	for _, s := range scores {
		sum += s.PFake
	}
	mean := sum / float64(len(scores))

	label := LabelReal
	confidence := (1 - mean) * 100
	if mean >= fakeThreshold {
		label = LabelFake
		confidence = mean * 100
	}
	confidence = math.Round(clamp(confidence, 0, 100)*100) / 100

	return Verdict{
		Label:      label,
		Confidence: confidence,
		Scores:     scores,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BreakdownMarker is a presentation-only detection marker derived from the
// verdict. It carries no independent analysis.
type BreakdownMarker struct {
	Name string `json:"name"`
	Tag  string `json:"tag"`
}

// Breakdown derives the marker list from label and confidence alone, using the
// same thresholds for every request so the output is deterministic.
func (v Verdict) Breakdown() []BreakdownMarker {
	if v.Label == LabelFake {
		switch {
		case v.Confidence > 95:
			return []BreakdownMarker{
				{Name: "Facial Inconsistencies", Tag: "High"},
				{Name: "Temporal Artifacts", Tag: "Detected"},
				{Name: "Compression Patterns", Tag: "Suspicious"},
				{Name: "Motion Analysis", Tag: "Natural"},
			}
		case v.Confidence > 75:
			return []BreakdownMarker{
				{Name: "Facial Inconsistencies", Tag: "Suspicious"},
				{Name: "Temporal Artifacts", Tag: "Detected"},
				{Name: "Compression Patterns", Tag: "Suspicious"},
				{Name: "Motion Analysis", Tag: "Natural"},
			}
		default:
			return []BreakdownMarker{
				{Name: "Facial Inconsistencies", Tag: "Suspicious"},
				{Name: "Temporal Artifacts", Tag: "Natural"},
				{Name: "Compression Patterns", Tag: "Suspicious"},
				{Name: "Motion Analysis", Tag: "Natural"},
			}
		}
	}
	if v.Confidence > 95 {
		return []BreakdownMarker{
			{Name: "Facial Inconsistencies", Tag: "Natural"},
			{Name: "Temporal Artifacts", Tag: "Natural"},
			{Name: "Compression Patterns", Tag: "Natural"},
			{Name: "Motion Analysis", Tag: "Natural"},
		}
	}
	return []BreakdownMarker{
		{Name: "Facial Inconsistencies", Tag: "Natural"},
		{Name: "Temporal Artifacts", Tag: "Natural"},
		{Name: "Compression Patterns", Tag: "Suspicious"},
		{Name: "Motion Analysis", Tag: "Natural"},
	}
}

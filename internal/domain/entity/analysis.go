package entity

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "PENDING"
	AnalysisStatusProcessing AnalysisStatus = "PROCESSING"
	AnalysisStatusCompleted  AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed     AnalysisStatus = "FAILED"
)

type AnalysisSource string

const (
	SourceUpload AnalysisSource = "upload"
	SourceQueue  AnalysisSource = "queue"
)

// Analysis is one detection request and its outcome, persisted for history.
type Analysis struct {
	ID            uuid.UUID
	UserID        string
	Source        AnalysisSource
	VideoKey      string // object key (queue) or original filename (upload)
	FileSize      int64
	Status        AnalysisStatus
	Prediction    Label
	Confidence    float64
	FrameCount    int
	VideoDuration float64
	Attempt       int
	MaxAttempts   int
	ErrorKind     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewAnalysis(userID string, source AnalysisSource, videoKey string, fileSize int64, maxAttempts int) *Analysis {
	now := time.Now().UTC()
	return &Analysis{
		ID:          uuid.New(),
		UserID:      userID,
		Source:      source,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      AnalysisStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (a *Analysis) MarkProcessing() {
	a.Status = AnalysisStatusProcessing
	a.Attempt++
	a.UpdatedAt = time.Now().UTC()
}

func (a *Analysis) MarkCompleted(v Verdict, frameCount int, duration float64) {
	now := time.Now().UTC()
	a.Status = AnalysisStatusCompleted
	a.Prediction = v.Label
	a.Confidence = v.Confidence
	a.FrameCount = frameCount
	a.VideoDuration = duration
	a.ErrorKind = ""
	a.ErrorMessage = ""
	a.UpdatedAt = now
	a.CompletedAt = &now
}

func (a *Analysis) MarkFailed(kind, errMsg string) {
	a.Status = AnalysisStatusFailed
	a.ErrorKind = kind
	a.ErrorMessage = errMsg
	a.UpdatedAt = time.Now().UTC()
}

func (a *Analysis) CanRetry() bool {
	return a.Attempt < a.MaxAttempts
}

package entity

import "github.com/google/uuid"

// AnalysisRequestMessage is the inbound message from the analysis.request queue.
type AnalysisRequestMessage struct {
	AnalysisID uuid.UUID `json:"analysis_id"`
	UserID     string    `json:"user_id"`
	VideoKey   string    `json:"video_key"`
	FileSize   int64     `json:"file_size"`
	UserEmail  string    `json:"user_email"`
}

// AnalysisStatusMessage is the outbound message published to the analysis.status queue.
type AnalysisStatusMessage struct {
	AnalysisID   uuid.UUID      `json:"analysis_id"`
	UserID       string         `json:"user_id"`
	Status       AnalysisStatus `json:"status"`
	VideoKey     string         `json:"video_key"`
	Prediction   Label          `json:"prediction,omitempty"`
	Confidence   float64        `json:"confidence,omitempty"`
	FrameCount   int            `json:"frame_count,omitempty"`
	Duration     float64        `json:"duration_seconds,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Attempt      int            `json:"attempt"`
	MaxAttempts  int            `json:"max_attempts"`
}

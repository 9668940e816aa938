// Package detect defines the closed error taxonomy of the inference pipeline.
// Every failure that crosses the service boundary is mapped onto exactly one
// Kind; no internal detail (paths, stack traces) leaves the process.
package detect

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindUnreadableVideo: the container could not be opened or parsed.
	KindUnreadableVideo Kind = "UNREADABLE_VIDEO"
	// KindNoDecodableFrames: the container opened but yielded zero usable frames.
	KindNoDecodableFrames Kind = "NO_DECODABLE_FRAMES"
	// KindScoringFailed: the model invocation failed after the single retry.
	KindScoringFailed Kind = "SCORING_FAILED"
	// KindTimeout: the request exceeded its wall-clock budget.
	KindTimeout Kind = "TIMEOUT"
	// KindModelUnavailable: the model artifact failed to load. Fatal at startup.
	KindModelUnavailable Kind = "MODEL_UNAVAILABLE"
)

// ClientFault reports whether the kind is caused by the input rather than the
// service, which determines the HTTP status class at the boundary.
func (k Kind) ClientFault() bool {
	return k == KindUnreadableVideo || k == KindNoDecodableFrames
}

// Message is the short, user-facing text for the kind.
func (k Kind) Message() string {
	switch k {
	case KindUnreadableVideo:
		return "cannot open video file, it may be corrupt or not a video"
	case KindNoDecodableFrames:
		return "could not extract any frames, the video might be too short or in an unsupported format"
	case KindScoringFailed:
		return "model inference failed, please retry"
	case KindTimeout:
		return "analysis exceeded the time budget"
	case KindModelUnavailable:
		return "detection model is not available"
	default:
		return "analysis failed"
	}
}

// Error tags an underlying error with a taxonomy kind.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

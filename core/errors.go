package core

import (
	"errors"
	"fmt"
)

// Pipeline stages at which a slide can fail. These names appear verbatim in
// the slide_errors entries of the video response.
const (
	StagePrepare     = "prepare"
	StageRenderOrMux = "render_or_mux"
)

// FailureKind classifies pipeline failures for errors.As matching.
type FailureKind string

const (
	KindPlanning  FailureKind = "planning"
	KindNarration FailureKind = "narration"
	KindRender    FailureKind = "render"
	KindCapture   FailureKind = "capture"
	KindMux       FailureKind = "mux"
	KindStitch    FailureKind = "stitch"
	KindNotes     FailureKind = "notes"
)

// ErrNoContent is returned when a document has no text chunks to plan from.
var ErrNoContent = errors.New("no text chunks available")

// StageError is a failure attributed to one pipeline component. Per-slide
// kinds (render, capture, mux) carry the slide index; run-level kinds
// (planning, stitch, notes) leave it at -1.
type StageError struct {
	Kind  FailureKind
	Slide int
	Err   error
}

func (e *StageError) Error() string {
	if e.Slide >= 0 {
		return fmt.Sprintf("%s failed for slide %d: %v", e.Kind, e.Slide, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err as a failure of the given kind for one slide.
func NewStageError(kind FailureKind, slide int, err error) *StageError {
	return &StageError{Kind: kind, Slide: slide, Err: err}
}

// NewRunError wraps err as a run-level failure of the given kind.
func NewRunError(kind FailureKind, err error) *StageError {
	return &StageError{Kind: kind, Slide: -1, Err: err}
}

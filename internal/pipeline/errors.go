// Package pipeline drives the conversion of an uploaded document into
// persisted, embedded chunks.
package pipeline

import (
	"errors"
	"fmt"
)

// Stage identifies how far a document got through the processing state
// machine before finishing or failing.
type Stage string

const (
	StageReceived  Stage = "received"
	StageExtracted Stage = "extracted"
	StageSegmented Stage = "segmented"
	StageEmbedded  Stage = "embedded"
	StageDone      Stage = "done"
)

// ErrUnsupportedFileType is returned when a document's MIME type has no
// registered extraction path.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// ErrEmbeddingUnavailable is returned when every request in an embedding
// batch fails, which signals the service itself is unreachable rather than a
// single bad input.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// ProcessError is the single fatal error surfaced by document processing. It
// names the stage that failed and wraps the underlying cause.
type ProcessError struct {
	Stage Stage
	Err   error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("document processing failed at stage %q: %v", e.Stage, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func failAt(stage Stage, err error) error {
	return &ProcessError{Stage: stage, Err: err}
}

package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrFilterExtraction = errors.New("filter extraction failure")
	ErrIndexService     = errors.New("index service failure")
	ErrRetrieval        = errors.New("retrieval failure")
	ErrGeneration       = errors.New("generation failure")
	ErrPipeline         = errors.New("conversational pipeline error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PipelineError is the only error kind Respond returns. It matches
// ErrPipeline but does not unwrap, so callers cannot branch on the stage.
type PipelineError struct {
	cause error
}

func NewPipelineError(cause error) *PipelineError {
	return &PipelineError{cause: cause}
}

func (e *PipelineError) Error() string {
	return ErrPipeline.Error()
}

func (e *PipelineError) Is(target error) bool {
	return target == ErrPipeline
}

// Cause returns the original failure for diagnostic logging.
func (e *PipelineError) Cause() error {
	if e == nil {
		return nil
	}
	return e.cause
}

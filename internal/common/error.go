package common

import (
	"errors"
	"fmt"
)

// Error kinds. Input and upstream errors below wrap one of them.
var (
	ErrInput    = fmt.Errorf("input error")
	ErrUpstream = fmt.Errorf("upstream error")
	ErrPipeline = fmt.Errorf("pipeline error")
)

var (
	ErrInvalidReference = fmt.Errorf("%w: invalid Gamebanana URL", ErrInput)
	ErrInvalidQuery     = fmt.Errorf("%w: invalid query", ErrInput)
	ErrUnknownMethod    = fmt.Errorf("%w: unknown method", ErrInput)
	ErrRateLimited      = fmt.Errorf("%w: too many requests, try again later", ErrInput)

	ErrUpstreamUnavailable      = fmt.Errorf("%w: couldn't fetch data from Gamebanana API", ErrUpstream)
	ErrMalformedUpstreamPayload = fmt.Errorf("%w: unexpected Gamebanana API response", ErrUpstream)
	ErrAssetNotFound            = fmt.Errorf("%w: couldn't find map on Avocado's FastDL", ErrUpstream)

	ErrDirectoryExists   = fmt.Errorf("extraction directory already exists")
	ErrInsufficientSpace = fmt.Errorf("not enough free disk space")

	ErrEmptyQueue = fmt.Errorf("queue is empty")
)

// PipelineError is a failure of a running job, tagged with the stage it happened in.
type PipelineError struct {
	Stage string
	Err   error
}

func NewPipelineError(stage string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{ErrPipeline, e.Err}
}

// StageOf returns the failed stage of err, or "" if err is not a PipelineError.
func StageOf(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}

	return ""
}

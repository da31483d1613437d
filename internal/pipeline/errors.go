package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrSequenceGap is returned when the encode stage receives a frame out of order.
	ErrSequenceGap = errors.New("frame sequence gap")
	// ErrOutput wraps failures opening, writing or closing the sink.
	ErrOutput = errors.New("output error")
	// ErrConfig is returned for settings the pipeline cannot run with.
	ErrConfig = errors.New("invalid pipeline configuration")
	// ErrAlreadyRun is returned when Run is called twice on one driver.
	ErrAlreadyRun = errors.New("pipeline already ran")
)

// Stage names used in errors and logs.
const (
	StageCapture = "capture"
	StageEncode  = "encode"
)

// StageError records which stage failed and on which frame.
type StageError struct {
	Stage string
	Seq   uint64
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: frame %d: %v", e.Stage, e.Seq, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

func stageError(stage string, seq uint64, cause error) error {
	return &StageError{Stage: stage, Seq: seq, Cause: cause}
}

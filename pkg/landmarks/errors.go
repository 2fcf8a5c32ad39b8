package landmarks

import (
	"errors"
	"fmt"
)

var (
	// ErrTopologyMismatch is returned when a frame has fewer points than
	// the topology indexes into.
	ErrTopologyMismatch = errors.New("landmarks: point count does not match topology")

	// ErrMissingFrameSize is returned for normalized points without a
	// positive frame width and height to scale them by.
	ErrMissingFrameSize = errors.New("landmarks: normalized frame without size")

	// ErrUnknownTopology is returned by TopologyByName.
	ErrUnknownTopology = errors.New("landmarks: unknown topology")

	// ErrModelNotFound is returned when an ONNX model file is missing.
	ErrModelNotFound = errors.New("landmarks: model file not found")

	// ErrCaptureRead is returned when the capture device yields no frame.
	ErrCaptureRead = errors.New("landmarks: capture read failed")
)

// LineError locates a malformed record in a JSONL feed.
type LineError struct {
	Line int
	Err  error
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("landmarks: line %d: %v", e.Line, e.Err)
}

// Unwrap returns the decode error.
func (e *LineError) Unwrap() error {
	return e.Err
}

// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompletePose is matched by *IncompletePoseError.
	ErrIncompletePose = errors.New("incomplete pose")
	// ErrInsufficientFrames is matched by *InsufficientFramesError.
	ErrInsufficientFrames = errors.New("insufficient frames")
	// ErrDeserialization is matched by *DeserializationError.
	ErrDeserialization = errors.New("sequence deserialization failed")
	// ErrNoComparableLandmarks is returned when no aligned pair shares a confident landmark.
	ErrNoComparableLandmarks = errors.New("no comparable landmarks")
	// ErrReferenceUnavailable is returned when scoring is requested without a loaded ideal.
	ErrReferenceUnavailable = errors.New("reference sequence unavailable")
	// ErrNotRecording is returned when frames arrive outside a recording session.
	ErrNotRecording = errors.New("no recording session open")
	// ErrSequenceFrozen is returned when appending to a frozen sequence.
	ErrSequenceFrozen = errors.New("sequence is frozen")
	// ErrOutOfOrder is returned for frames whose timestamp does not advance.
	ErrOutOfOrder = errors.New("frame timestamp out of order")
	// ErrStaleSession is returned for work tagged with a superseded session epoch.
	ErrStaleSession = errors.New("stale session")
)

// IncompletePoseError reports a frame lacking required landmarks.
type IncompletePoseError struct {
	Missing []Joint
	Reason  string
}

func (e *IncompletePoseError) Error() string {
	if len(e.Missing) == 0 {
		return fmt.Sprintf("incomplete pose: %s", e.Reason)
	}
	names := make([]string, len(e.Missing))
	for i, j := range e.Missing {
		names[i] = string(j)
	}
	return fmt.Sprintf("incomplete pose: missing %s", strings.Join(names, ", "))
}

func (e *IncompletePoseError) Is(target error) bool {
	return target == ErrIncompletePose
}

// InsufficientFramesError reports a sequence too short to align.
type InsufficientFramesError struct {
	Which string
	Have  int
	Need  int
}

func (e *InsufficientFramesError) Error() string {
	return fmt.Sprintf("insufficient frames in %s sequence: have %d, need %d", e.Which, e.Have, e.Need)
}

func (e *InsufficientFramesError) Is(target error) bool {
	return target == ErrInsufficientFrames
}

// DeserializationError reports a corrupt or version-mismatched sequence blob.
type DeserializationError struct {
	Reason string
	Err    error
}

func (e *DeserializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deserialize sequence: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("deserialize sequence: %s", e.Reason)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

func (e *DeserializationError) Is(target error) bool {
	return target == ErrDeserialization
}

package core

import (
	"errors"
	"fmt"
)

// ErrImageLoad marks a missing, unreadable or non-image input file.
var ErrImageLoad = errors.New("image load failed")

// ErrNoSpeech is returned by audio capture when nothing was said before the
// listen timeout elapsed.
var ErrNoSpeech = errors.New("no speech detected")

// RecognitionErrorKind classifies why a question could not be captured.
type RecognitionErrorKind int

const (
	RecognitionTimeout        RecognitionErrorKind = iota + 1 // No speech before the listen timeout.
	RecognitionUnintelligible                                 // Audio captured but no transcript.
	RecognitionService                                        // Device, network or provider failure.
)

func (k RecognitionErrorKind) String() string {
	switch k {
	case RecognitionTimeout:
		return "timeout"
	case RecognitionUnintelligible:
		return "unintelligible"
	case RecognitionService:
		return "service"
	default:
		return "unknown"
	}
}

// RecognitionError is returned by the speech recognizer. Every kind means
// "skip this turn"; none is fatal to the session.
type RecognitionError struct {
	Kind RecognitionErrorKind
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition %s", e.Kind)
	}
	return fmt.Sprintf("recognition %s: %v", e.Kind, e.Err)
}

func (e *RecognitionError) Unwrap() error {
	return e.Err
}

// NewRecognitionError builds a RecognitionError of the given kind.
func NewRecognitionError(kind RecognitionErrorKind, err error) *RecognitionError {
	return &RecognitionError{Kind: kind, Err: err}
}

// RecognitionKindOf returns the kind carried by err, or 0 when err is not a
// RecognitionError.
func RecognitionKindOf(err error) RecognitionErrorKind {
	var recErr *RecognitionError
	if errors.As(err, &recErr) {
		return recErr.Kind
	}
	return 0
}

package model

import (
	"errors"
	"fmt"
)

// LoadError reports a model that could not be loaded. It is sticky: once a
// load fails, every later call observes the same error.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a model load failure.
func IsLoadError(err error) bool {
	var target *LoadError
	return errors.As(err, &target)
}

// InferenceError reports a generation that failed after the model loaded.
// The model stays usable.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference: %v", e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// IsInferenceError reports whether err is a generation failure.
func IsInferenceError(err error) bool {
	var target *InferenceError
	return errors.As(err, &target)
}

package engine

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var ErrActivation = errors.New("audio output activation failed")

// LoadFailure describes one cue asset that could not be loaded
type LoadFailure struct {
	Category Category
	Asset    string
	Err      error
}

func (f LoadFailure) Error() string {
	return fmt.Sprintf("cue %s (%s): %v", f.Category, f.Asset, f.Err)
}

func (f LoadFailure) Unwrap() error {
	return f.Err
}

// LoadError is returned by Start when one or more cues failed to load.
// Categories that did load stay playable.
type LoadError struct {
	Failures []LoadFailure
}

func (e *LoadError) Error() string {
	return "failed to load cues: " + multierr.Combine(e.Unwrap()...).Error()
}

func (e *LoadError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Failed reports whether the category is among the failures
func (e *LoadError) Failed(category Category) bool {
	for _, f := range e.Failures {
		if f.Category == category {
			return true
		}
	}
	return false
}

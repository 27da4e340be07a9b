package wizard

import (
	"errors"
	"fmt"

	"github.com/zdunecki/onboarding/pkg/schema"
)

var (
	// ErrSubmitted is returned by operations on a run that was already handed
	// to the submission adapter.
	ErrSubmitted = errors.New("wizard already submitted")

	// ErrAlreadyOnboarded is returned by Start when the stored session shows a
	// completed onboarding.
	ErrAlreadyOnboarded = errors.New("onboarding already completed")

	// ErrIncompleteScore is returned by AddScore when the pending exam score
	// is missing a name, marks or a positive total.
	ErrIncompleteScore = errors.New("please fill all the fields for the exam score")

	// ErrNotSkippable is returned by TrySkip on a step that cannot be skipped.
	ErrNotSkippable = errors.New("step cannot be skipped")
)

// OutOfRangeError reports a step index outside the registry.
type OutOfRangeError = schema.OutOfRangeError

// FieldError reports an operation addressed to a field that cannot take it.
type FieldError struct {
	Key    string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
}

// SubmissionError wraps a failure of the submission adapter.
type SubmissionError struct {
	Step string
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit %s: %v", e.Step, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

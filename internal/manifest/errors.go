package manifest

import (
	"fmt"
	"strings"
)

// SchemaError reports a structural problem at Path: a missing required
// field, a value of the wrong type, or a malformed address or CIDR.
type SchemaError struct {
	Path string
	Msg  string
}

func (e *SchemaError) Error() string { return e.Path + ": " + e.Msg }

// ReferenceError reports a reference at Path that does not resolve.
type ReferenceError struct {
	Path string
	Ref  string
	Msg  string
}

func (e *ReferenceError) Error() string { return e.Path + ": " + e.Msg }

// CardinalityError reports a sequence at Path whose length differs from the
// group count.
type CardinalityError struct {
	Path  string
	Count int
	Got   int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: has %d entries but count is %d", e.Path, e.Got, e.Count)
}

// ValidationError collects every issue found in one document. Use errors.As
// to reach an individual *SchemaError, *ReferenceError or *CardinalityError.
type ValidationError struct {
	Source string
	Errs   []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("manifest %q is invalid:\n  - %s", e.Source, strings.Join(msgs, "\n  - "))
}

func (e *ValidationError) Unwrap() []error { return e.Errs }

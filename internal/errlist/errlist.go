// Package errlist provides a small ordered, appendable list of independent
// errors, used wherever a stage can accumulate more than one failure
// before aborting (the validator suite in particular must report every
// missing deployment in one pass, not just the first). It plays the same
// role tfdiags.Diagnostics plays for HCL-sourced diagnostics, minus the
// source-position and severity machinery that has no counterpart in
// this domain.
package errlist

import "strings"

// List is an ordered collection of errors.
type List []error

// Append adds err to the list if it is non-nil, flattening any *List
// passed in so lists don't nest.
func (l *List) Append(err error) {
	if err == nil {
		return
	}
	if other, ok := err.(*List); ok {
		*l = append(*l, *other...)
		return
	}
	*l = append(*l, err)
}

// HasErrors reports whether the list contains at least one error.
func (l List) HasErrors() bool { return len(l) > 0 }

// Err returns the list as an error if it is non-empty, or nil otherwise --
// the usual pattern for returning an accumulated list from a function that
// otherwise returns a plain error.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return &l
}

// Error implements the error interface, joining every message on its own
// line.
func (l *List) Error() string {
	msgs := make([]string, len(*l))
	for i, err := range *l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the underlying errors for errors.Is/As traversal.
func (l *List) Unwrap() []error { return *l }

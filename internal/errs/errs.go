// Package errs pairs technical errors with the short reason shown to the
// user.
package errs

import (
	"errors"
	"fmt"
)

// Error carries a user-facing Reason next to the underlying Err. Error()
// reports Err and falls back to Reason when Err is nil.
type Error struct {
	Err    error
	Reason string
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error { return e.Err }

// Wrap attaches reason to err.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf attaches a formatted reason to err.
func Wrapf(err error, format string, a ...any) Error {
	return Wrap(err, fmt.Sprintf(format, a...))
}

// UserErrorf builds an error meant to be read as a sentence, capitalized
// and punctuated, which is why it bypasses the usual error string linters.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// As returns the outermost Error in err's chain.
func As(err error) (Error, bool) {
	var e Error
	ok := errors.As(err, &e)
	return e, ok
}

// Reasoned keeps the reason err already carries, or wraps it with reason.
func Reasoned(err error, reason string) Error {
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(err, reason)
}

package rheap

import "github.com/pkg/errors"

// FatalError corresponds to spec.md §7's fatal-error kind: a second
// consecutive allocation failure within one exception-construction
// path, a corrupt IREP load, or an image CRC mismatch. Fatal errors
// terminate the interpreter; they are never delivered as a rescuable
// value.
type FatalError struct {
	Cause  error
	Reason string
}

func (e *FatalError) Error() string { return "fatal: " + e.Reason }
func (e *FatalError) Unwrap() error { return e.Cause }

// WrapFatal attaches a stack trace to the underlying cause (via
// pkg/errors, matching ProbeChain-go-probe's use of the same library
// for its own infrastructure-failure paths) while preserving the
// FatalError sentinel so a host can type-switch on it.
func WrapFatal(cause error, reason string) error {
	return &FatalError{Cause: errors.Wrap(cause, reason), Reason: reason}
}

package rembed

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/clarete/rembed/rparser"
)

// ParseError is the boundary's own sentinel wrapping every
// rparser.ParseError accumulated while compiling a script, matching
// spec.md §7's "Parse errors ... accumulate with line/column; do not
// execute." The teacher's own ParsingError (errors.go) is the model:
// one exported struct per error kind with a formatted Error() string.
type ParseError struct {
	Errors []*rparser.ParseError
}

func (e *ParseError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("parse error: %s", e.Errors[0])
	}
	return fmt.Sprintf("%d parse errors, first: %s", len(e.Errors), e.Errors[0])
}

// wrapParseErrors lifts a non-empty rparser error slice into a
// *ParseError, keeping a github.com/pkg/errors stack trace attached so
// a host can errors.Cause(err) back to the accumulated list.
func wrapParseErrors(errs []*rparser.ParseError) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.WithStack(&ParseError{Errors: errs})
}

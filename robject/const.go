package robject

import (
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// ConstMissing is invoked by LookupConst when the lexical-outer and
// superclass walk both fail, so the embedding can run the
// `const_missing` method call with the symbol (spec.md §4.2
// "Constants"). It returns the resolved value (typically the
// exception-raising result of that call) and an error the caller
// should propagate as a NameError if missing is itself undefined.
type ConstMissingFunc func(scope *Class, sym rsym.ID) (rvalue.Value, error)

// LookupConst walks the lexical outer chain first, then the
// superclass chain, exactly as spec.md §4.2 specifies, before falling
// back to missing.
func LookupConst(scope *Class, sym rsym.ID, missing ConstMissingFunc) (rvalue.Value, error) {
	for s := scope; s != nil; s = s.Outer {
		if v, ok := s.GetIVar(sym); ok {
			return v, nil
		}
	}
	for s := scope; s != nil; s = s.Super {
		if v, ok := s.GetIVar(sym); ok {
			return v, nil
		}
	}
	if missing != nil {
		return missing(scope, sym)
	}
	return rvalue.Nil, &NameError{Scope: scope, Sym: sym}
}

// NameError is spec.md §7's "Name errors": a missing constant after
// const_missing is itself absent.
type NameError struct {
	Scope *Class
	Sym   rsym.ID
}

func (e *NameError) Error() string { return "uninitialized constant" }

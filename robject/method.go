package robject

import (
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// Lookup walks the super-chain looking for sym, consulting a wrapped
// module's table when it steps through an IClass, and returns the
// class in which the method was actually found (spec.md §4.2
// "Method lookup" / §3 invariant 4). Lookup is pure: it never
// mutates state, so callers (rvm's SEND) record foundIn into the call
// frame's target_class themselves.
func Lookup(class *Class, sym rsym.ID) (method rvalue.Value, foundIn *Class, ok bool) {
	for c := class; c != nil; c = c.Super {
		table := c
		if c.tt == TTIClass {
			table = c.Wrapped
		}
		if m, present := table.OwnMethod(sym); present {
			return m, c, true
		}
	}
	return rvalue.Nil, nil, false
}

// MethodMissingID is interned once by the embedding boundary's
// bootstrap and passed to LookupOrMissing; robject has no opinion on
// which rsym.ID that turns out to be.
type MissingNames struct {
	MethodMissing rsym.ID
}

// LookupOrMissing implements spec.md §4.2 "Method missing": if
// Lookup finds nothing, the caller substitutes `method_missing`,
// prepending the original name as a symbol to the argument list (the
// prepending itself is the VM's job, since only it owns the argument
// stack slots); if method_missing is itself absent, a *NoMethodError is
// returned so the caller can raise the fatal-error-kind spec.md §4.2
// describes.
func LookupOrMissing(class *Class, sym rsym.ID, missing MissingNames) (rvalue.Value, *Class, error) {
	if m, foundIn, ok := Lookup(class, sym); ok {
		return m, foundIn, nil
	}
	if m, foundIn, ok := Lookup(class, missing.MethodMissing); ok {
		return m, foundIn, nil
	}
	return rvalue.Nil, nil, &NoMethodError{Class: class, Sym: sym}
}

// NoMethodError is raised (as a runtime exception, not returned to a
// Go caller that expects to recover) when neither the requested
// method nor `method_missing` exist anywhere in the chain.
type NoMethodError struct {
	Class *Class
	Sym   rsym.ID
}

func (e *NoMethodError) Error() string { return "no method and no method_missing" }

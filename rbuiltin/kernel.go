package rbuiltin

import (
	"github.com/clarete/rembed/rvalue"
)

// Puts implements `Kernel#puts`: each argument is written followed by
// a newline (arrays are flattened one level, matching the reference
// implementation's behavior that original_source/ shows and spec.md's
// distillation omits); called with no arguments it writes a single
// newline. It always returns nil, per spec.md §8 scenario 1.
func Puts(ctx Context, args []rvalue.Value, inspect func(rvalue.Value) string) (rvalue.Value, error) {
	if len(args) == 0 {
		ctx.Write("\n")
		return rvalue.Nil, nil
	}
	for _, a := range args {
		if ref, ok := a.Heap(); ok {
			if arr, ok := ref.(*Array); ok {
				for _, item := range arr.ToSlice() {
					ctx.Write(inspect(item))
					ctx.Write("\n")
				}
				continue
			}
		}
		ctx.Write(inspect(a))
		ctx.Write("\n")
	}
	return rvalue.Nil, nil
}

// Print implements `Kernel#print`: arguments are written with no
// separator and no trailing newline.
func Print(ctx Context, args []rvalue.Value, inspect func(rvalue.Value) string) (rvalue.Value, error) {
	for _, a := range args {
		ctx.Write(inspect(a))
	}
	return rvalue.Nil, nil
}

// DefaultInspect is the fallback `inspect` used when no user override
// exists for a value's class; it handles every immediate tag plus
// String/Array/Range without needing a full method dispatch,
// since that is the common case `puts`/`print` hit.
func DefaultInspect(v rvalue.Value) string {
	if ref, ok := v.Heap(); ok {
		switch o := ref.(type) {
		case *String:
			return o.Content()
		case *Array:
			s := "["
			for i, item := range o.ToSlice() {
				if i > 0 {
					s += ", "
				}
				s += DefaultInspect(item)
			}
			return s + "]"
		case *Range:
			sep := ".."
			if o.Exclusive {
				sep = "..."
			}
			return DefaultInspect(o.Low) + sep + DefaultInspect(o.High)
		}
	}
	return v.String()
}

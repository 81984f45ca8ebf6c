// Package rbuiltin implements spec.md §4's built-in value services
// (component E): Array, Hash, String, Range, and the Proc/Env pair the
// VM needs to represent closures, plus the small Kernel surface
// (`puts`/`print`) spec.md §1 lists as an external collaborator.
//
// rbuiltin depends on rheap, rvalue and rirep, but never on
// rvm: native methods reach back into the VM only through the Context
// interface below, the same inversion the teacher uses for its
// pluggable import loader (grammar_import.go's ImportLoader).
package rbuiltin

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rvalue"
)

// Context is the narrow surface a native method needs from the VM
// that owns the call: the heap to allocate through, a way to invoke a
// supplied block, a way to raise an exception, and somewhere to write
// Kernel#puts/print output.
type Context interface {
	Heap() *rheap.Heap
	CallBlock(block rvalue.Value, args []rvalue.Value) (rvalue.Value, error)
	Raise(v rvalue.Value) error
	Write(s string)
	ClassOf(v rvalue.Value) rheap.GCObject
}

// NativeFunc is the shape of a host/builtin method: a native function
// pointer per spec.md §3's Proc definition.
type NativeFunc func(ctx Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error)

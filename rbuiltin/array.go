package rbuiltin

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rvalue"
)

// arrayBacking is the refcounted shared storage block spec.md §3
// describes: "a shared (refcounted backing block, with the array
// acting as a window into it)". Sharing is transparent to readers;
// writers de-share first.
type arrayBacking struct {
	data     []rvalue.Value
	refcount int
}

// Array is spec.md §3's Array heap kind: either inline (capacity +
// pointer, i.e. an ordinary owned Go slice) or a window into a shared
// backing block.
type Array struct {
	rheap.Header

	inline []rvalue.Value // used when shared == nil

	shared      *arrayBacking
	start, size int // window bounds into shared.data
}

func NewArray(heap *rheap.Heap, class rheap.GCObject, items []rvalue.Value) (*Array, error) {
	a := &Array{inline: append([]rvalue.Value(nil), items...)}
	if _, err := heap.Alloc(a, rheap.KindArray, class); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Array) Len() int {
	if a.shared != nil {
		return a.size
	}
	return len(a.inline)
}

func (a *Array) Get(i int) (rvalue.Value, bool) {
	if i < 0 || i >= a.Len() {
		return rvalue.Nil, false
	}
	if a.shared != nil {
		return a.shared.data[a.start+i], true
	}
	return a.inline[i], true
}

// Set de-shares (clones the backing) before mutating, per spec.md §3
// "writers first de-share", and runs heap.FieldWriteBarrier(a, ref)
// itself when v is a heap reference.
func (a *Array) Set(heap *rheap.Heap, i int, v rvalue.Value) bool {
	if i < 0 || i >= a.Len() {
		return false
	}
	a.unshare()
	a.inline[i] = v
	if ref, ok := v.Heap(); ok {
		heap.FieldWriteBarrier(a, ref)
	}
	return true
}

// Push appends, de-sharing first; it is the aggregate mutation
// spec.md §4.1 calls out as needing the Object write barrier rather
// than a Field barrier per element, since growth can reallocate the
// whole backing slice.
func (a *Array) Push(heap *rheap.Heap, v rvalue.Value) {
	a.unshare()
	a.inline = append(a.inline, v)
	heap.ObjectWriteBarrier(a)
}

// Share produces a new Array object that is a read-only window into
// the same backing as a (used by `dup`, by `a[lo..hi]`, and by
// splatting a shared tail into a call). It bumps the refcount; the
// refcount drops on Finalize.
func (a *Array) Share(heap *rheap.Heap, class rheap.GCObject, start, size int) (*Array, error) {
	bk := a.ensureBacking()
	bk.refcount++
	out := &Array{shared: bk, start: a.start + start, size: size}
	if _, err := heap.Alloc(out, rheap.KindArray, class); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Array) ensureBacking() *arrayBacking {
	if a.shared == nil {
		a.shared = &arrayBacking{data: a.inline, refcount: 1}
		a.start, a.size = 0, len(a.inline)
		a.inline = nil
	}
	return a.shared
}

// unshare materializes a's own window as an owned inline slice,
// dropping this array's reference to the shared backing. It is a
// no-op if a was never shared.
func (a *Array) unshare() {
	if a.shared == nil {
		return
	}
	cp := make([]rvalue.Value, a.size)
	copy(cp, a.shared.data[a.start:a.start+a.size])
	a.dropShared()
	a.inline = cp
}

func (a *Array) dropShared() {
	if a.shared == nil {
		return
	}
	a.shared.refcount--
	if a.shared.refcount == 0 {
		a.shared.data = nil
	}
	a.shared = nil
	a.start, a.size = 0, 0
}

// TraceChildren visits every element currently reachable through this
// array's window (shared or owned); spec.md §3's invariant "every
// non-immediate live value is reachable from a root set" depends on
// this walking exactly the live window, not the whole backing block,
// so elements outside the window of every live sharer are correctly
// found unreachable once nothing else points at them.
func (a *Array) TraceChildren(visit func(rheap.GCObject)) {
	n := a.Len()
	for i := 0; i < n; i++ {
		v, _ := a.Get(i)
		if ref, ok := v.Heap(); ok {
			visit(ref)
		}
	}
}

func (a *Array) Finalize() { a.dropShared() }

// Concat implements `ARYCAT`: append other's elements, de-sharing
// first.
func (a *Array) Concat(heap *rheap.Heap, other *Array) {
	a.unshare()
	n := other.Len()
	for i := 0; i < n; i++ {
		v, _ := other.Get(i)
		a.inline = append(a.inline, v)
	}
	heap.ObjectWriteBarrier(a)
}

// ToSlice copies out every element, for native methods (`each`,
// `map`) that need a stable snapshot while they call back into the
// VM (which may trigger a GC step or further array mutation).
func (a *Array) ToSlice() []rvalue.Value {
	n := a.Len()
	out := make([]rvalue.Value, n)
	for i := 0; i < n; i++ {
		out[i], _ = a.Get(i)
	}
	return out
}

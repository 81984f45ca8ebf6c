package rbuiltin

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rvalue"
)

// Range is spec.md §3's Range heap kind, covering both `..` (dot2,
// inclusive) and `...` (dot3, exclusive) forms; which form a literal
// produced is carried in Exclusive, set by the codegen's RANGE opcode
// emission.
type Range struct {
	rheap.Header
	Low, High rvalue.Value
	Exclusive bool
}

func NewRange(heap *rheap.Heap, class rheap.GCObject, low, high rvalue.Value, exclusive bool) (*Range, error) {
	r := &Range{Low: low, High: high, Exclusive: exclusive}
	if _, err := heap.Alloc(r, rheap.KindRange, class); err != nil {
		return nil, err
	}
	return r, nil
}

// Contains only handles the integer fast path the VM's RANGE-related
// opcodes rely on directly; arbitrary comparable endpoints go through
// `<=>`via SEND, one level up in rvm.
func (r *Range) Contains(n int64) bool {
	if !r.Low.IsInt() || !r.High.IsInt() {
		return false
	}
	lo, hi := r.Low.Int(), r.High.Int()
	if r.Exclusive {
		return n >= lo && n < hi
	}
	return n >= lo && n <= hi
}

// Step enumerates integer endpoints (`Range#step`/`Range#each` fast
// path), a feature original_source/ carries that the distilled
// spec.md is silent on; non-integer ranges are enumerated by the
// `each` method dispatching through `succ`, handled in rvm.
func (r *Range) Step(by int64, yield func(int64) error) error {
	if !r.Low.IsInt() || !r.High.IsInt() || by == 0 {
		return nil
	}
	lo, hi := r.Low.Int(), r.High.Int()
	for n := lo; (by > 0 && (n < hi || (!r.Exclusive && n == hi))) || (by < 0 && (n > hi || (!r.Exclusive && n == hi))); n += by {
		if err := yield(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *Range) TraceChildren(visit func(rheap.GCObject)) {
	if ref, ok := r.Low.Heap(); ok {
		visit(ref)
	}
	if ref, ok := r.High.Heap(); ok {
		visit(ref)
	}
}

func (r *Range) Finalize() {}

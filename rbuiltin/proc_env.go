package rbuiltin

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rvalue"
)

// Env captures the locals of an enclosing call frame so inner procs
// can read/write them after the outer frame returns, per spec.md §3.
// While the defining frame is active, Stack aliases a window of the
// VM's shared value stack (CIOff >= 0); Detach copies it out into a
// private allocation exactly once, when the VM pops that frame,
// establishing invariant 3 of spec.md §8 for good.
type Env struct {
	rheap.Header
	Stack []rvalue.Value
	CIOff int

	// Outer chains to the Env of the scope this one was nested inside
	// at `def`/block-literal time, so GETUPVAR/SETUPVAR's `lv` operand
	// (levels up) can walk past more than one enclosing scope, e.g. a
	// block inside a block inside a method.
	Outer *Env
}

func NewEnv(heap *rheap.Heap, class rheap.GCObject, liveWindow []rvalue.Value, cioff int) (*Env, error) {
	e := &Env{Stack: liveWindow, CIOff: cioff}
	if _, err := heap.Alloc(e, rheap.KindEnv, class); err != nil {
		return nil, err
	}
	return e, nil
}

// At walks levels outward (0 = this env) and returns the Env found
// there, or nil past the outermost captured scope.
func (e *Env) At(levels int) *Env {
	cur := e
	for i := 0; i < levels && cur != nil; i++ {
		cur = cur.Outer
	}
	return cur
}

// Detach copies the currently-live window into a private, owned
// allocation and marks the env as no longer backed by the shared
// stack. Idempotent.
func (e *Env) Detach() {
	if e.CIOff < 0 {
		return
	}
	cp := make([]rvalue.Value, len(e.Stack))
	copy(cp, e.Stack)
	e.Stack = cp
	e.CIOff = -1
}

func (e *Env) Get(idx int) rvalue.Value {
	if idx < 0 || idx >= len(e.Stack) {
		return rvalue.Nil
	}
	return e.Stack[idx]
}

func (e *Env) Set(heap *rheap.Heap, idx int, v rvalue.Value) {
	if idx < 0 || idx >= len(e.Stack) {
		return
	}
	e.Stack[idx] = v
	if ref, ok := v.Heap(); ok {
		heap.FieldWriteBarrier(e, ref)
	}
}

func (e *Env) TraceChildren(visit func(rheap.GCObject)) {
	for _, v := range e.Stack {
		if ref, ok := v.Heap(); ok {
			visit(ref)
		}
	}
	if e.Outer != nil {
		visit(e.Outer)
	}
}

func (e *Env) Finalize() {}

// Proc is spec.md §3's Proc heap kind: either a native function
// pointer, or a reference to an IREP plus an optional captured
// environment. DefiningClass is the lexically current class at `def`
// time, used by `super` to continue lookup from its superclass.
type Proc struct {
	rheap.Header

	Native NativeFunc
	IREP   *rirep.IREP
	Env    *Env

	DefiningClass rheap.GCObject

	// IsLambda distinguishes a `->(){}`/`lambda{}` proc from a plain
	// block literal. The VM's LAMBDA opcode always creates procs with
	// it false, and nothing in the VM reads it.
	IsLambda bool
}

func NewNativeProc(heap *rheap.Heap, class rheap.GCObject, fn NativeFunc) (*Proc, error) {
	p := &Proc{Native: fn}
	if _, err := heap.Alloc(p, rheap.KindProc, class); err != nil {
		return nil, err
	}
	return p, nil
}

func NewIREPProc(heap *rheap.Heap, class rheap.GCObject, irep *rirep.IREP, env *Env, definingClass rheap.GCObject, lambda bool) (*Proc, error) {
	p := &Proc{IREP: irep, Env: env, DefiningClass: definingClass, IsLambda: lambda}
	if _, err := heap.Alloc(p, rheap.KindProc, class); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Proc) TraceChildren(visit func(rheap.GCObject)) {
	if p.Env != nil {
		visit(p.Env)
	}
	if p.DefiningClass != nil {
		visit(p.DefiningClass)
	}
}

func (p *Proc) Finalize() {
	if p.IREP != nil {
		p.IREP.Release()
	}
}

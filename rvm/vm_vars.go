package rvm

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// ivarHolder is satisfied by every heap kind robject gives its own
// ivar table: plain instances and classes (which flatten constants,
// class variables and instance variables into the same table, per
// robject.Class's doc comment).
type ivarHolder interface {
	GetIVar(rsym.ID) (rvalue.Value, bool)
	SetIVar(rsym.ID, rvalue.Value)
}

// getIVar implements GETIV: reading an unset instance variable is nil,
// never an error, per spec.md §4.2.
func getIVar(recv rvalue.Value, name rsym.ID) rvalue.Value {
	ref, ok := recv.Heap()
	if !ok {
		return rvalue.Nil
	}
	h, ok := ref.(ivarHolder)
	if !ok {
		return rvalue.Nil
	}
	v, _ := h.GetIVar(name)
	return v
}

// setIVar implements SETIV. Assigning an ivar on a receiver that
// carries no ivar table (an immediate, or a heap kind with none) is
// silently a no-op; only objects and classes are addressable this way.
func setIVar(heap *rheap.Heap, recv rvalue.Value, name rsym.ID, v rvalue.Value) {
	ref, ok := recv.Heap()
	if !ok {
		return
	}
	h, ok := ref.(ivarHolder)
	if !ok {
		return
	}
	h.SetIVar(name, v)
	if target, ok := v.Heap(); ok {
		heap.FieldWriteBarrier(ref, target)
	}
}

// lookupConst implements GETCONST, resolving against the current
// frame's lexically enclosing class/module chain.
func (vm *VM) lookupConst(ci *CallInfo, name rsym.ID) (rvalue.Value, error) {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	return robject.LookupConst(scope, name, nil)
}

// setConst implements SETCONST against the current frame's class.
func (vm *VM) setConst(ci *CallInfo, name rsym.ID, v rvalue.Value) {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	scope.SetIVar(name, v)
	if target, ok := v.Heap(); ok {
		vm.heap.FieldWriteBarrier(scope, target)
	}
}

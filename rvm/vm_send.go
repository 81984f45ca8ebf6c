package rvm

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// ClassOf resolves v's class for method dispatch, satisfying
// rbuiltin.Context; heap values answer from their own header, while
// immediates defer to the resolver the embedding boundary installed
// at bootstrap.
func (vm *VM) ClassOf(v rvalue.Value) rheap.GCObject {
	c := vm.classOf(v)
	if c == nil {
		return nil
	}
	return c
}

func (vm *VM) classOf(v rvalue.Value) *robject.Class {
	if vm.ImmediateClassOf == nil {
		if ref, ok := v.Heap(); ok {
			c, _ := ref.Header().Class().(*robject.Class)
			return c
		}
		return nil
	}
	return robject.ClassOf(v, vm.ImmediateClassOf)
}

func procFromValue(v rvalue.Value) (*rbuiltin.Proc, bool) {
	ref, ok := v.Heap()
	if !ok {
		return nil, false
	}
	p, ok := ref.(*rbuiltin.Proc)
	return p, ok
}

func asArray(v rvalue.Value) (*rbuiltin.Array, bool) {
	ref, ok := v.Heap()
	if !ok {
		return nil, false
	}
	a, ok := ref.(*rbuiltin.Array)
	return a, ok
}

// invoke is the uncached method-resolution path the arithmetic fast
// paths' SEND fallback goes through. SEND/FSEND themselves go through
// execSend's lookupCached instead, since those are the call sites
// spec.md §9 calls out as worth caching; invoke resolves the method
// (falling back to method_missing per spec.md §4.2, prepending the
// original name when that fallback fires), then calls it.
func (vm *VM) invoke(ci *CallInfo, recv rvalue.Value, mid rsym.ID, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
	class := vm.classOf(recv)
	if class == nil {
		return rvalue.Nil, vm.raiseRuntime("undefined method for receiver with no class")
	}
	method, _, err := robject.LookupOrMissing(class, mid, vm.Missing)
	if err != nil {
		return rvalue.Nil, vm.raiseRuntime(err.Error())
	}
	if _, _, ok := robject.Lookup(class, mid); !ok {
		args = append([]rvalue.Value{rvalue.Sym(mid)}, args...)
	}
	proc, ok := procFromValue(method)
	if !ok {
		return rvalue.Nil, vm.raiseRuntime("method table entry is not callable")
	}
	result, err := vm.Call(proc, recv, args, block, rvalue.Sym(mid))
	if err != nil {
		if raised, ok := err.(*RaisedError); ok {
			return rvalue.Nil, raised
		}
		return rvalue.Nil, err
	}
	return result, nil
}

func (vm *VM) sendBinary(ci *CallInfo, mid rsym.ID, recv, arg rvalue.Value) (rvalue.Value, error) {
	return vm.invoke(ci, recv, mid, []rvalue.Value{arg}, rvalue.Nil)
}

// sendCacheKey identifies one SEND/FSEND call site: a fixed (irep, pc)
// pair always carries the same method id, so the class it last saw is
// enough to tell whether the cached resolution still applies.
type sendCacheKey struct {
	irep *rirep.IREP
	pc   int
}

type sendCacheEntry struct {
	class       *robject.Class
	proc        *rbuiltin.Proc
	prependName bool
}

// lookupCached resolves mid against class the way invoke does, but
// consults/fills vm.sendCache first so a monomorphic call site (the
// common case) skips robject.LookupOrMissing's class-chain walk on
// every subsequent hit.
func (vm *VM) lookupCached(irep *rirep.IREP, pc int, class *robject.Class, mid rsym.ID) (*rbuiltin.Proc, bool, error) {
	key := sendCacheKey{irep: irep, pc: pc}
	if cached, ok := vm.sendCache.Get(key); ok {
		entry := cached.(sendCacheEntry)
		if entry.class == class {
			return entry.proc, entry.prependName, nil
		}
	}

	method, _, err := robject.LookupOrMissing(class, mid, vm.Missing)
	if err != nil {
		return nil, false, vm.raiseRuntime(err.Error())
	}
	_, _, found := robject.Lookup(class, mid)
	proc, ok := procFromValue(method)
	if !ok {
		return nil, false, vm.raiseRuntime("method table entry is not callable")
	}

	vm.sendCache.Add(key, sendCacheEntry{class: class, proc: proc, prependName: !found})
	return proc, !found, nil
}

// execSend implements SEND/SENDB/FSEND. Operand convention: A holds
// the receiver register for SEND/SENDB (FSEND's receiver is always
// self, R(0), and A addresses the argument base directly), B indexes
// ci.IREP.Syms for the method name, and C is the argument count, or
// sendArgcBundled when the caller already packed argv into a single
// Array at the argument base (splat-call convention).
func (vm *VM) execSend(ci *CallInfo, inst rirep.Inst, regs []rvalue.Value) error {
	mid := ci.IREP.Syms[inst.B]
	argc := int(inst.C)

	var recv rvalue.Value
	argBase := inst.A + 1
	if inst.Op == OpFSend {
		recv = regs[0]
		argBase = inst.A
	} else {
		recv = regs[inst.A]
	}

	var args []rvalue.Value
	var slotsUsed int32
	if argc == sendArgcBundled {
		arr, ok := asArray(regs[argBase])
		if !ok {
			return &RuntimeError{Reason: "bundled send argument is not an array"}
		}
		args = arr.ToSlice()
		slotsUsed = 1
	} else {
		args = append([]rvalue.Value{}, regs[argBase:argBase+int32(argc)]...)
		slotsUsed = int32(argc)
	}

	block := rvalue.Nil
	if inst.Op == OpSendB {
		block = regs[argBase+slotsUsed]
	}

	class := vm.classOf(recv)
	if class == nil {
		return vm.raiseRuntime("undefined method for receiver with no class")
	}
	proc, prependName, err := vm.lookupCached(ci.IREP, ci.PC-1, class, mid)
	if err != nil {
		return err
	}
	if prependName {
		args = append([]rvalue.Value{rvalue.Sym(mid)}, args...)
	}

	result, err := vm.Call(proc, recv, args, block, rvalue.Sym(mid))
	if err != nil {
		if raised, ok := err.(*RaisedError); ok {
			return raised
		}
		return err
	}
	regs[inst.A] = result
	return nil
}

// execSuper implements SUPER (ZSUPER is execZSuper): lookup continues from the
// currently executing method's defining class's superclass, using the
// currently executing method's own name (ci.Mid), per spec.md §4.2
// "super" and §4.5's call-frame fields.
func (vm *VM) execSuper(ci *CallInfo, inst rirep.Inst, regs []rvalue.Value) error {
	if ci.TargetClass == nil || ci.TargetClass.Super == nil {
		return &RuntimeError{Reason: "no superclass for super call"}
	}
	argc := int(inst.C)
	argBase := inst.A

	var args []rvalue.Value
	if argc == sendArgcBundled {
		arr, ok := asArray(regs[argBase])
		if !ok {
			return &RuntimeError{Reason: "bundled super argument is not an array"}
		}
		args = arr.ToSlice()
	} else {
		args = append([]rvalue.Value{}, regs[argBase:argBase+int32(argc)]...)
	}

	method, _, ok := robject.Lookup(ci.TargetClass.Super, ci.Mid)
	if !ok {
		return vm.raiseRuntime("no superclass method")
	}
	proc, ok := procFromValue(method)
	if !ok {
		return &RuntimeError{Reason: "super target is not callable"}
	}
	result, err := vm.Call(proc, regs[0], args, rvalue.Nil, rvalue.Sym(ci.Mid))
	if err != nil {
		if raised, ok := err.(*RaisedError); ok {
			return raised
		}
		return err
	}
	regs[inst.A] = result
	return nil
}

// raiseRuntime materializes a runtime-detected failure (no method, no
// superclass method) as a catchable language exception rather than a
// Go-level fault, so a `rescue` clause can observe it like any other
// raised value.
func (vm *VM) raiseRuntime(msg string) error {
	s, err := vm.newString(msg)
	if err != nil {
		return &RuntimeError{Reason: msg}
	}
	return &RaisedError{Value: s}
}

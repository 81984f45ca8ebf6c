package rvm

import (
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// execCall implements OP_CALL (`proc.call(...)`): regs[A] holds the
// Proc being invoked directly, with no method lookup.
func (vm *VM) execCall(ci *CallInfo, argc int32, regs []rvalue.Value, destAndProc int32) (rvalue.Value, error) {
	proc, ok := procFromValue(regs[destAndProc])
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "CALL target is not a Proc"}
	}
	args := append([]rvalue.Value{}, regs[destAndProc+1:destAndProc+1+argc]...)
	result, err := vm.Call(proc, regs[0], args, rvalue.Nil, rvalue.Nil)
	if err != nil {
		if raised, ok := err.(*RaisedError); ok {
			return rvalue.Nil, raised
		}
		return rvalue.Nil, err
	}
	return result, nil
}

// execZSuper implements ZSUPER (bare `super`, no parens): forwards the
// currently executing method's own incoming arguments, reconstructed
// from the frame's leading registers rather than an explicit arg list.
func (vm *VM) execZSuper(ci *CallInfo, regs []rvalue.Value) (rvalue.Value, error) {
	if ci.TargetClass == nil || ci.TargetClass.Super == nil {
		return rvalue.Nil, &RuntimeError{Reason: "no superclass for super call"}
	}
	argc := int(ci.Argc)
	if argc > len(regs)-1 {
		argc = len(regs) - 1
	}
	args := append([]rvalue.Value{}, regs[1:1+argc]...)
	method, _, ok := robject.Lookup(ci.TargetClass.Super, ci.Mid)
	if !ok {
		return rvalue.Nil, vm.raiseRuntime("no superclass method")
	}
	proc, ok := procFromValue(method)
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "super target is not callable"}
	}
	result, err := vm.Call(proc, regs[0], args, ci.Block, rvalue.Sym(ci.Mid))
	if err != nil {
		if raised, ok := err.(*RaisedError); ok {
			return rvalue.Nil, raised
		}
		return rvalue.Nil, err
	}
	return result, nil
}

// execArgAry implements ARGARY: bundles the current method's incoming
// positional arguments into a fresh Array, backing `*args` forwarding
// and `method_missing`'s argv reconstruction.
func (vm *VM) execArgAry(ci *CallInfo, regs []rvalue.Value) (rvalue.Value, error) {
	argc := int(ci.Argc)
	if argc > len(regs)-1 {
		argc = len(regs) - 1
	}
	items := append([]rvalue.Value{}, regs[1:1+argc]...)
	return vm.newArray(items)
}

// getCVar/setCVar implement GETCV/SETCV: class variables live in the
// same flattened ivar table robject.Class keeps for constants and
// instance variables, distinguished only by the interned name's `@@`
// spelling, which the parser/codegen already baked into the symbol.
func getCVar(ci *CallInfo, vm *VM, name rsym.ID) rvalue.Value {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	for s := scope; s != nil; s = s.Super {
		if v, ok := s.GetIVar(name); ok {
			return v
		}
	}
	return rvalue.Nil
}

func setCVar(ci *CallInfo, vm *VM, name rsym.ID, v rvalue.Value) {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	scope.SetIVar(name, v)
	if ref, ok := v.Heap(); ok {
		vm.heap.FieldWriteBarrier(scope, ref)
	}
}

// getMConst/setMConst implement GETMCNST/SETMCNST (`Scope::NAME`):
// addressed directly against the named scope rather than walking the
// current frame's lexical chain.
func (vm *VM) getMConst(scopeVal rvalue.Value, name rsym.ID) rvalue.Value {
	ref, ok := scopeVal.Heap()
	if !ok {
		return rvalue.Nil
	}
	scope, ok := ref.(*robject.Class)
	if !ok {
		return rvalue.Nil
	}
	v, _ := robject.LookupConst(scope, name, nil)
	return v
}

func (vm *VM) setMConst(scopeVal rvalue.Value, name rsym.ID, v rvalue.Value) {
	ref, ok := scopeVal.Heap()
	if !ok {
		return
	}
	scope, ok := ref.(*robject.Class)
	if !ok {
		return
	}
	scope.SetIVar(name, v)
	if target, ok := v.Heap(); ok {
		vm.heap.FieldWriteBarrier(scope, target)
	}
}

// getUpvar/setUpvar implement GETUPVAR/SETUPVAR, walking `levels`
// enclosing Envs from the currently executing Proc's captured scope.
func getUpvar(ci *CallInfo, idx int, levels int) rvalue.Value {
	if ci.Proc == nil || ci.Proc.Env == nil {
		return rvalue.Nil
	}
	env := ci.Proc.Env.At(levels)
	if env == nil {
		return rvalue.Nil
	}
	return env.Get(idx)
}

func (vm *VM) setUpvar(ci *CallInfo, idx int, levels int, v rvalue.Value) {
	if ci.Proc == nil || ci.Proc.Env == nil {
		return
	}
	env := ci.Proc.Env.At(levels)
	if env == nil {
		return
	}
	env.Set(vm.heap, idx, v)
}

// execSClass implements SCLASS (`class << obj`): open obj's singleton
// class, creating it on first use.
func (vm *VM) execSClass(obj rvalue.Value) (rvalue.Value, error) {
	ref, ok := obj.Heap()
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "can't define singleton on an immediate value"}
	}
	sc, err := robject.SingletonClass(vm.heap, ref)
	if err != nil {
		return rvalue.Nil, wrapf(err, "open singleton class")
	}
	return rvalue.Ref(sc), nil
}

// execTClass implements TCLASS: the class actually used for dispatch
// against self, needed so `def self.foo` inside a singleton-class body
// still resolves to the right defining scope.
func (vm *VM) execTClass(self rvalue.Value) rvalue.Value {
	c := vm.classOf(self)
	if c == nil {
		return rvalue.Nil
	}
	return rvalue.Ref(c)
}

package rvm

import (
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rvalue"
)

// execAryCat/execAryPush/execARef/execASet/execAPost implement the
// array aggregate opcodes: concatenation, push, indexed read/write,
// and post-splat destructuring for `a, *b, c = ...`-shaped targets.

func (vm *VM) execAryCat(inst rirep.Inst, regs []rvalue.Value) error {
	a, ok := asArray(regs[inst.A])
	if !ok {
		return &RuntimeError{Reason: "ARYCAT target is not an array"}
	}
	b, ok := asArray(regs[inst.B])
	if !ok {
		return &RuntimeError{Reason: "ARYCAT source is not an array"}
	}
	a.Concat(vm.heap, b)
	return nil
}

func (vm *VM) execAryPush(inst rirep.Inst, regs []rvalue.Value) error {
	a, ok := asArray(regs[inst.A])
	if !ok {
		return &RuntimeError{Reason: "ARYPUSH target is not an array"}
	}
	a.Push(vm.heap, regs[inst.B])
	return nil
}

func execARef(inst rirep.Inst, regs []rvalue.Value) {
	a, ok := asArray(regs[inst.B])
	if !ok {
		regs[inst.A] = rvalue.Nil
		return
	}
	v, _ := a.Get(int(inst.C))
	regs[inst.A] = v
}

func (vm *VM) execASet(inst rirep.Inst, regs []rvalue.Value) {
	a, ok := asArray(regs[inst.A])
	if !ok {
		return
	}
	a.Set(vm.heap, int(inst.B), regs[inst.C])
}

func execAPost(inst rirep.Inst, regs []rvalue.Value) {
	a, ok := asArray(regs[inst.A])
	if !ok {
		return
	}
	n, cnt := a.Len(), int(inst.B)
	base := int(inst.C)
	for i := 0; i < cnt; i++ {
		v, _ := a.Get(n - cnt + i)
		regs[base+i] = v
	}
}

// execStrCat implements STRCAT (string interpolation's piecewise
// append), mutating the destination String in place.
func execStrCat(regs []rvalue.Value, inst rirep.Inst) {
	dst, ok := asString(regs[inst.A])
	if !ok {
		return
	}
	if src, ok := asString(regs[inst.B]); ok {
		dst.Append(src.Content())
	}
}

// execHash implements OP_HASH: regs[A:A+2*C] holds C alternating
// key/value pairs.
func (vm *VM) execHash(inst rirep.Inst, regs []rvalue.Value) (rvalue.Value, error) {
	n := int(inst.B)
	keys := make([]rvalue.Value, n)
	vals := make([]rvalue.Value, n)
	base := inst.A
	for i := 0; i < n; i++ {
		keys[i] = regs[base+int32(2*i)]
		vals[i] = regs[base+int32(2*i)+1]
	}
	return vm.newHash(keys, vals)
}

// execOpenClass implements OCLASS/CLASS: reopen (or, on first sight,
// create) a class under name in the current lexical scope. explicit
// super, when non-nil, is only consulted the first time the class is
// opened, matching spec.md §4.2 "reopening a class ignores a
// mismatched superclass expression".
func (vm *VM) execOpenClass(ci *CallInfo, name string, explicitSuper *robject.Class) (*robject.Class, error) {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	sym := vm.Symbols.Intern(name)
	if existing, ok := scope.GetIVar(sym); ok {
		if ref, ok := existing.Heap(); ok {
			if class, ok := ref.(*robject.Class); ok {
				return class, nil
			}
		}
	}
	super := explicitSuper
	if super == nil {
		super = vm.Consts
	}
	class, err := robject.NewClass(vm.heap, name, super, robject.TTClass)
	if err != nil {
		return nil, wrapf(err, "open class")
	}
	class.Outer = scope
	scope.SetIVar(sym, rvalue.Ref(class))
	vm.heap.FieldWriteBarrier(scope, class)
	return class, nil
}

func (vm *VM) execOpenModule(ci *CallInfo, name string) (*robject.Class, error) {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	sym := vm.Symbols.Intern(name)
	if existing, ok := scope.GetIVar(sym); ok {
		if ref, ok := existing.Heap(); ok {
			if class, ok := ref.(*robject.Class); ok {
				return class, nil
			}
		}
	}
	mod, err := robject.NewClass(vm.heap, name, nil, robject.TTModule)
	if err != nil {
		return nil, wrapf(err, "open module")
	}
	mod.Outer = scope
	scope.SetIVar(sym, rvalue.Ref(mod))
	vm.heap.FieldWriteBarrier(scope, mod)
	return mod, nil
}

// execClassBody implements EXEC: run child (the class/module body
// IREP) with selfAndScope as both self and the lexical/target class
// for constant and method definitions inside the body.
func (vm *VM) execClassBody(selfAndScope *robject.Class, child *rirep.IREP) error {
	stackIdx := vm.nextStackIdx()
	nregs := child.NRegs
	if nregs < child.NLocals+1 {
		nregs = child.NLocals + 1
	}
	regs := vm.regSlice(stackIdx, nregs)
	regs[0] = rvalue.Ref(selfAndScope)
	sub := &CallInfo{StackIdx: stackIdx, NRegs: nregs, IREP: child, TargetClass: selfAndScope}
	vm.pushFrame(sub)
	defer vm.popFrame()
	_, err := vm.run(sub)
	return err
}

// execDefineMethod implements METHOD: install the Proc built by a
// preceding LAMBDA into the current scope's method table; `def`
// evaluates to the method name symbol, matching the language's own
// `def` return value.
func (vm *VM) execDefineMethod(ci *CallInfo, procVal rvalue.Value, name string) rvalue.Value {
	scope := ci.TargetClass
	if scope == nil {
		scope = vm.Consts
	}
	sym := vm.Symbols.Intern(name)
	scope.DefineMethod(sym, procVal)
	if ref, ok := procVal.Heap(); ok {
		vm.heap.FieldWriteBarrier(scope, ref)
	}
	return rvalue.Sym(sym)
}

package rvm

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rvalue"
)

// newArray backs the ARRAY/ARYCAT opcodes and every native method that
// needs to hand a fresh array back to the VM.
func (vm *VM) newArray(items []rvalue.Value) (rvalue.Value, error) {
	a, err := rbuiltin.NewArray(vm.heap, vm.ArrayClass, items)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate array")
	}
	return rvalue.Ref(a), nil
}

func (vm *VM) newString(s string) (rvalue.Value, error) {
	str, err := rbuiltin.NewString(vm.heap, vm.StringClass, s)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate string")
	}
	return rvalue.Ref(str), nil
}

// newHash builds a Hash literal from parallel key/value slices, the
// shape OP_HASH's operand layout (alternating key/value registers)
// naturally produces.
func (vm *VM) newHash(keys, vals []rvalue.Value) (rvalue.Value, error) {
	h, err := rbuiltin.NewHash(vm.heap, vm.HashClass)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate hash")
	}
	for i := range keys {
		if err := h.Set(vm.heap, vm.StringClass, keys[i], vals[i]); err != nil {
			return rvalue.Nil, wrapf(err, "populate hash literal")
		}
	}
	return rvalue.Ref(h), nil
}

func (vm *VM) newRange(low, high rvalue.Value, exclusive bool) (rvalue.Value, error) {
	r, err := rbuiltin.NewRange(vm.heap, vm.RangeClass, low, high, exclusive)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate range")
	}
	return rvalue.Ref(r), nil
}

// loadPoolConst implements OP_LOADL: ints and floats are re-materialized
// as immediates on every load (they're free), but a string constant is
// allocated once per IREP and cached in MaterializedPool, per spec.md
// §4.1's listing of "for each IREP, the constant pool" among the
// root-mark scan targets — the cache entry is what keeps that string
// alive across GC cycles between loads where nothing else references
// it (a loop body that never stores the literal anywhere else).
func (vm *VM) loadPoolConst(irep *rirep.IREP, idx int32) (rvalue.Value, error) {
	c := irep.Pool[idx]
	switch c.Kind {
	case rirep.ConstInt:
		return rvalue.Int(c.I), nil
	case rirep.ConstFloat:
		return rvalue.Float(c.F), nil
	default:
		return vm.loadStringConst(irep, idx, c.S)
	}
}

func (vm *VM) loadStringConst(irep *rirep.IREP, idx int32, s string) (rvalue.Value, error) {
	if len(irep.MaterializedPool) != len(irep.Pool) {
		grown := make([]rheap.GCObject, len(irep.Pool))
		copy(grown, irep.MaterializedPool)
		irep.MaterializedPool = grown
	}
	if obj := irep.MaterializedPool[idx]; obj != nil {
		return rvalue.Ref(obj), nil
	}
	str, err := rbuiltin.NewStaticString(vm.heap, vm.StringClass, s)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate pooled string")
	}
	irep.MaterializedPool[idx] = str
	return rvalue.Ref(str), nil
}

// makeLambda implements OP_LAMBDA: wrap a child IREP (built by the code
// generator for a block/def/lambda literal) as a Proc, capturing the
// defining frame's register window as its Env so GETUPVAR/SETUPVAR can
// reach enclosing locals after this frame returns. The child IREP is
// retained on the Proc's behalf; Proc.Finalize releases it.
func (vm *VM) makeLambda(ci *CallInfo, child *rirep.IREP) (rvalue.Value, error) {
	env := vm.ensureEnv(ci)
	child.Retain()
	p, err := rbuiltin.NewIREPProc(vm.heap, vm.ProcClass, child, env, ci.TargetClass, false)
	if err != nil {
		child.Release()
		return rvalue.Nil, wrapf(err, "allocate lambda")
	}
	return rvalue.Ref(p), nil
}

// ensureEnv lazily creates (once per frame) the Env that lets any
// lambda/block literal created inside ci's frame see this frame's
// locals; later lambdas created in the same frame share the same Env
// object, matching the teacher's one-env-per-scope closure model.
func (vm *VM) ensureEnv(ci *CallInfo) *rbuiltin.Env {
	if ci.Env != nil {
		return ci.Env
	}
	window := vm.stack[ci.StackIdx : ci.StackIdx+ci.NRegs]
	env, err := rbuiltin.NewEnv(vm.heap, nil, window, ci.StackIdx)
	if err != nil {
		return nil
	}
	if ci.Proc != nil {
		env.Outer = ci.Proc.Env
	}
	ci.Env = env
	return env
}

package rvm

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// Call invokes proc with self as receiver and args as the argument
// vector, returning its result or the in-language exception it raised
// (distinguished from *RuntimeError, a VM-internal fault).
func (vm *VM) Call(proc *rbuiltin.Proc, self rvalue.Value, args []rvalue.Value, block rvalue.Value, mid rvalue.Value) (rvalue.Value, error) {
	if proc.Native != nil {
		return proc.Native(vm, self, args, block)
	}
	return vm.runIREP(proc, self, args, block, mid)
}

func (vm *VM) runIREP(proc *rbuiltin.Proc, self rvalue.Value, args []rvalue.Value, block rvalue.Value, mid rvalue.Value) (rvalue.Value, error) {
	irep := proc.IREP
	stackIdx := vm.nextStackIdx()
	nregs := irep.NRegs
	if nregs < irep.NLocals+1 {
		nregs = irep.NLocals + 1
	}
	regs := vm.regSlice(stackIdx, nregs)
	regs[0] = self

	if err := vm.reshapeArgs(regs, irep.Params, args, block); err != nil {
		return rvalue.Nil, err
	}

	var targetClass *robject.Class
	if c, ok := self.Heap(); ok {
		if class, ok := c.(*robject.Class); ok {
			targetClass = class
		}
	}
	if proc.DefiningClass != nil {
		if class, ok := proc.DefiningClass.(*robject.Class); ok {
			targetClass = class
		}
	}

	if len(vm.frames) >= vm.MaxFrames {
		return rvalue.Nil, vm.raiseRuntime("stack level too deep")
	}

	// Env starts nil: it is this frame's own capture env, lazily built
	// by ensureEnv the first time a lambda/block literal closes over
	// it, not the proc's own (outer) Env — that stays reachable via
	// ci.Proc.Env for GETUPVAR/SETUPVAR and via ensureEnv's Outer wiring.
	ci := &CallInfo{
		Proc: proc, StackIdx: stackIdx, Argc: int32(len(args)),
		TargetClass: targetClass, NRegs: nregs, IREP: irep,
		Block: block,
	}
	if mid.IsSymbol() {
		ci.Mid = mid.Symbol()
	}
	vm.pushFrame(ci)
	defer vm.popFrame()

	return vm.run(ci)
}

// reshapeArgs is OP_ENTER's prologue work (spec.md §4.5 call protocol
// step 2): bind required/optional/rest parameters into the frame's
// leading registers (indices 1..nlocals, R(0) holding self).
func (vm *VM) reshapeArgs(regs []rvalue.Value, spec rirep.ParamSpec, args []rvalue.Value, block rvalue.Value) error {
	req, opt := int(spec.Req), int(spec.Opt)
	if len(args) < req {
		return &ArgumentError{Message: "wrong number of arguments"}
	}
	idx := 1
	for i := 0; i < req && idx < len(regs); i++ {
		regs[idx] = args[i]
		idx++
	}
	taken := req
	for i := 0; i < opt && idx < len(regs); i++ {
		if taken < len(args) {
			regs[idx] = args[taken]
			taken++
		} else {
			regs[idx] = rvalue.Nil
		}
		idx++
	}
	if spec.Rest && idx < len(regs) {
		restItems := append([]rvalue.Value{}, args[taken:]...)
		arr, err := vm.newArray(restItems)
		if err != nil {
			return err
		}
		regs[idx] = arr
		idx++
	}
	if spec.Block && idx < len(regs) {
		regs[idx] = block
	}
	return nil
}

type ArgumentError struct{ Message string }

func (e *ArgumentError) Error() string { return e.Message }

func (vm *VM) nextStackIdx() int {
	if len(vm.frames) == 0 {
		return 0
	}
	top := vm.currentFrame()
	return top.StackIdx + top.NRegs
}

// run executes ci's IREP from ci.PC until RETURN/TAILCALL/STOP or an
// unhandled exception, implementing the opcode groups of spec.md
// §4.5's dispatch table.
func (vm *VM) run(ci *CallInfo) (rvalue.Value, error) {
	irep := ci.IREP
	regs := vm.stack[ci.StackIdx : ci.StackIdx+ci.NRegs]

	R := func(i int32) rvalue.Value { return regs[i] }
	setR := func(i int32, v rvalue.Value) { regs[i] = v }

	for {
		if ci.PC >= len(irep.Code) {
			return rvalue.Nil, nil
		}
		inst := irep.Code[ci.PC]
		ci.PC++

		switch inst.Op {
		case OpNop:
		case OpMove:
			setR(inst.A, R(inst.B))
		case OpLoadNil:
			setR(inst.A, rvalue.Nil)
		case OpLoadSelf:
			setR(inst.A, R(0))
		case OpLoadT:
			setR(inst.A, rvalue.Bool(true))
		case OpLoadF:
			setR(inst.A, rvalue.Bool(false))
		case OpLoadI:
			setR(inst.A, rvalue.Int(int64(inst.B)))
		case OpLoadSym:
			setR(inst.A, rvalue.Sym(rsym.ID(inst.B)))
		case OpLoadL:
			v, err := vm.loadPoolConst(irep, inst.B)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, v)

		case OpJmp:
			ci.PC = int(inst.B)
		case OpJmpIf:
			if R(inst.A).IsTruthy() {
				ci.PC = int(inst.B)
			}
		case OpJmpNot:
			if R(inst.A).IsFalsey() {
				ci.PC = int(inst.B)
			}

		case OpAdd, OpSub, OpMul, OpDiv, OpEq, OpLt, OpLe, OpGt, OpGe, OpAddI, OpSubI:
			v, err := vm.execArith(ci, inst, R)
			if err != nil {
				if exc, ok := vm.asException(err); ok {
					if !vm.unwindToRescue(ci) {
						return rvalue.Nil, exc
					}
					continue
				}
				return rvalue.Nil, err
			}
			setR(inst.A, v)

		case OpGetGlobal:
			setR(inst.A, vm.Globals[rsym.ID(inst.B)])
		case OpSetGlobal:
			vm.Globals[rsym.ID(inst.B)] = R(inst.A)

		case OpGetIV:
			v := getIVar(R(0), rsym.ID(inst.B))
			setR(inst.A, v)
		case OpSetIV:
			setIVar(vm.heap, R(0), rsym.ID(inst.B), R(inst.A))
		case OpGetCV:
			setR(inst.A, getCVar(ci, vm, rsym.ID(inst.B)))
		case OpSetCV:
			setCVar(ci, vm, rsym.ID(inst.B), R(inst.A))

		case OpGetConst:
			v, err := vm.lookupConst(ci, rsym.ID(inst.B))
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpSetConst:
			vm.setConst(ci, rsym.ID(inst.B), R(inst.A))
		case OpGetMConst:
			setR(inst.A, vm.getMConst(R(inst.B), rsym.ID(inst.C)))
		case OpSetMConst:
			vm.setMConst(R(inst.B), rsym.ID(inst.C), R(inst.A))
		case OpGetUpvar:
			setR(inst.A, getUpvar(ci, int(inst.B), int(inst.C)))
		case OpSetUpvar:
			vm.setUpvar(ci, int(inst.B), int(inst.C), R(inst.A))

		case OpArray:
			items := append([]rvalue.Value{}, regs[inst.A:inst.A+inst.B]...)
			arr, err := vm.newArray(items)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, arr)
		case OpString:
			s, err := vm.newString(irep.Pool[inst.B].S)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, s)
		case OpRange:
			r, err := vm.newRange(R(inst.A), R(inst.A+1), inst.C != 0)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, r)
		case OpAryCat:
			if err := vm.execAryCat(inst, regs); err != nil {
				return rvalue.Nil, err
			}
		case OpAryPush:
			if err := vm.execAryPush(inst, regs); err != nil {
				return rvalue.Nil, err
			}
		case OpARef:
			execARef(inst, regs)
		case OpASet:
			vm.execASet(inst, regs)
		case OpAPost:
			execAPost(inst, regs)
		case OpStrCat:
			execStrCat(regs, inst)
		case OpHash:
			h, err := vm.execHash(inst, regs)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, h)

		case OpLambda:
			v, err := vm.makeLambda(ci, irep.Kids[inst.B])
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpOClass:
			name := vm.Symbols.Name(irep.Syms[inst.B])
			class, err := vm.execOpenClass(ci, name, nil)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, rvalue.Ref(class))
		case OpClass:
			name := vm.Symbols.Name(irep.Syms[inst.B])
			var super *robject.Class
			if ref, ok := R(inst.C).Heap(); ok {
				super, _ = ref.(*robject.Class)
			}
			class, err := vm.execOpenClass(ci, name, super)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, rvalue.Ref(class))
		case OpModule:
			name := vm.Symbols.Name(irep.Syms[inst.B])
			mod, err := vm.execOpenModule(ci, name)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, rvalue.Ref(mod))
		case OpExec:
			ref, ok := R(inst.A).Heap()
			if !ok {
				return rvalue.Nil, &RuntimeError{Reason: "EXEC target is not a class or module"}
			}
			scope, ok := ref.(*robject.Class)
			if !ok {
				return rvalue.Nil, &RuntimeError{Reason: "EXEC target is not a class or module"}
			}
			if err := vm.execClassBody(scope, irep.Kids[inst.B]); err != nil {
				return rvalue.Nil, err
			}
		case OpMethod:
			name := vm.Symbols.Name(irep.Syms[inst.B])
			setR(inst.A, vm.execDefineMethod(ci, R(inst.C), name))
		case OpSClass:
			v, err := vm.execSClass(R(inst.B))
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpTClass:
			setR(inst.A, vm.execTClass(R(0)))

		case OpSend, OpSendB, OpFSend:
			if err := vm.execSend(ci, inst, regs); err != nil {
				if exc, ok := vm.asException(err); ok {
					if !vm.unwindToRescue(ci) {
						return rvalue.Nil, exc
					}
					continue
				}
				return rvalue.Nil, err
			}
		case OpSuper:
			if err := vm.execSuper(ci, inst, regs); err != nil {
				return rvalue.Nil, err
			}
		case OpZSuper:
			v, err := vm.execZSuper(ci, regs)
			if err != nil {
				if exc, ok := vm.asException(err); ok {
					if !vm.unwindToRescue(ci) {
						return rvalue.Nil, exc
					}
					continue
				}
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpCall:
			v, err := vm.execCall(ci, inst.B, regs, inst.A)
			if err != nil {
				if exc, ok := vm.asException(err); ok {
					if !vm.unwindToRescue(ci) {
						return rvalue.Nil, exc
					}
					continue
				}
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpArgAry:
			v, err := vm.execArgAry(ci, regs)
			if err != nil {
				return rvalue.Nil, err
			}
			setR(inst.A, v)
		case OpEnter:
			// argument reshaping already ran in runIREP's prologue.
		case OpBlkPush:
			setR(inst.A, ci.Block)
		case OpTailCall:
			if err := vm.execSend(ci, inst, regs); err != nil {
				if exc, ok := vm.asException(err); ok {
					if !vm.unwindToRescue(ci) {
						return rvalue.Nil, exc
					}
					continue
				}
				return rvalue.Nil, err
			}
			vm.runPendingEnsures(ci, ci.EIdx)
			return R(inst.A), nil

		case OpOnErr:
			vm.rescues = append(vm.rescues, rescueEntry{target: ci.PC + int(inst.B)})
		case OpPopErr:
			n := int(inst.A)
			if n > len(vm.rescues) {
				n = len(vm.rescues)
			}
			vm.rescues = vm.rescues[:len(vm.rescues)-n]
		case OpRescue:
			setR(inst.A, vm.exception)
			vm.exception, vm.hasExc = rvalue.Nil, false
		case OpRaise:
			exc := R(inst.A)
			vm.exception, vm.hasExc = exc, true
			if !vm.unwindToRescue(ci) {
				return rvalue.Nil, &RaisedError{Value: exc}
			}
		case OpEPush:
			vm.ensures = append(vm.ensures, ensureEntry{irep: irep.Kids[inst.B]})
		case OpEPop:
			vm.runPendingEnsures(ci, len(vm.ensures)-int(inst.A))

		case OpReturn:
			vm.runPendingEnsures(ci, ci.EIdx)
			return R(inst.A), nil

		case OpStop, OpErr:
			return rvalue.Nil, nil

		default:
			return rvalue.Nil, &RuntimeError{Reason: "unimplemented opcode"}
		}
	}
}

// RaisedError wraps a language-level exception Value that reached the
// top of the call stack unhandled (spec.md §4.5 unwind algorithm: "if
// no rescue is found and the root frame is reached, return the
// exception to the host").
type RaisedError struct{ Value rvalue.Value }

func (e *RaisedError) Error() string { return "unhandled exception" }

func (vm *VM) asException(err error) (*RaisedError, bool) {
	re, ok := err.(*RaisedError)
	return re, ok
}

// runPendingEnsures executes and pops ensure entries down to floor, in
// LIFO order, per spec.md §4.5 EPOP/RETURN semantics.
func (vm *VM) runPendingEnsures(ci *CallInfo, floor int) {
	for len(vm.ensures) > floor {
		last := vm.ensures[len(vm.ensures)-1]
		vm.ensures = vm.ensures[:len(vm.ensures)-1]
		vm.evalEnsureBody(ci, last.irep)
	}
}

func (vm *VM) evalEnsureBody(ci *CallInfo, irep *rirep.IREP) {
	sub := &CallInfo{Proc: ci.Proc, StackIdx: vm.nextStackIdx(), NRegs: irep.NRegs, IREP: irep, TargetClass: ci.TargetClass}
	vm.growStack(sub.StackIdx + sub.NRegs)
	vm.pushFrame(sub)
	_, _ = vm.run(sub)
	vm.popFrame()
}

// unwindToRescue implements the unwind algorithm's "resume at the top
// rescue target" branch for the current frame; if this frame has no
// rescue handler left, the caller continues the walk by returning
// false so the exception propagates up through Call's error return.
func (vm *VM) unwindToRescue(ci *CallInfo) bool {
	vm.runPendingEnsures(ci, ci.EIdx)
	if len(vm.rescues) <= ci.RIdx {
		return false
	}
	top := vm.rescues[len(vm.rescues)-1]
	vm.rescues = vm.rescues[:len(vm.rescues)-1]
	ci.PC = top.target
	return true
}

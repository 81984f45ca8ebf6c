package rvm

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rvalue"
)

// FiberStatus mirrors spec.md §4.5's Fiber status transitions:
// created -> running -> suspended (repeatedly, on yield/resume) ->
// terminated (once, on the body's natural return or an unrescued
// exception escaping it).
type FiberStatus int32

const (
	FiberCreated FiberStatus = iota
	FiberRunning
	FiberSuspended
	FiberTerminated
)

// fiberOutcome is what crosses from a fiber's goroutine back to
// whichever Resume call is waiting on it: either a yielded value, a
// terminating return value, or an error (an in-language exception
// that escaped the fiber body unrescued).
type fiberOutcome struct {
	value      rvalue.Value
	err        error
	terminated bool
}

// Fiber is spec.md §4.5's cooperatively scheduled execution context:
// its own stack/call-info/rescue/ensure bundle lives on a private VM
// (self) sharing the resuming VM's Heap/Globals/Consts/class
// registry. Go has no manual stack-switch primitive, so the transfer
// spec.md §9's "coroutine control flow" describes as "a single
// pointer swap" is implemented the idiomatic Go way instead: the
// fiber body runs on its own goroutine, and Resume/Yield hand off
// across a pair of unbuffered, rendezvousing channels — the same
// goroutine-plus-channel shape the teacher pack's worker loops use
// for their own request/response handoff (miner/worker.go's
// newWorkCh/taskCh). Exactly one goroutine is ever unblocked at a
// time, so this still gives the single-threaded, non-preemptive
// scheduling spec.md §9 requires.
type Fiber struct {
	rheap.Header

	status FiberStatus
	self   *VM
	proc   *rbuiltin.Proc

	// resumer is the fiber whose Resume call is blocked waiting on
	// this one; nil means "nobody has resumed this fiber yet" or "the
	// resumer was the root fiber".
	resumer *Fiber

	resumeCh chan []rvalue.Value
	yieldCh  chan fiberOutcome
	started  bool
}

func (f *Fiber) TraceChildren(visit func(rheap.GCObject)) {
	if f.proc != nil {
		visit(f.proc)
	}
}

func (f *Fiber) Finalize() {}

// NewFiber allocates a Fiber wrapping body, with its own VM sharing
// parent's heap, symbol table, global table, constant scope, and
// builtin-class registry — everything except the call stack and
// frame/rescue/ensure bookkeeping, which spec.md §4.5 requires each
// fiber to own privately.
func NewFiber(parent *VM, class rheap.GCObject, body *rbuiltin.Proc) (*Fiber, error) {
	self := &VM{
		heap:             parent.heap,
		Symbols:          parent.Symbols,
		Globals:          parent.Globals,
		Consts:           parent.Consts,
		ArrayClass:       parent.ArrayClass,
		StringClass:      parent.StringClass,
		RangeClass:       parent.RangeClass,
		ProcClass:        parent.ProcClass,
		HashClass:        parent.HashClass,
		FiberClass:       parent.FiberClass,
		ImmediateClassOf: parent.ImmediateClassOf,
		Missing:          parent.Missing,
		MaxFrames:        parent.MaxFrames,
		stack:            make([]rvalue.Value, 256),
		writer:           parent.writer,
		sendCache:        parent.sendCache,
	}
	f := &Fiber{
		status:   FiberCreated,
		self:     self,
		proc:     body,
		resumeCh: make(chan []rvalue.Value),
		yieldCh:  make(chan fiberOutcome),
	}
	self.owningFiber = f
	if _, err := parent.heap.Alloc(f, rheap.KindFiber, class); err != nil {
		return nil, err
	}
	return f, nil
}

// Resume implements Fiber#resume: switches execution to f, blocking
// caller until f yields or terminates, per spec.md §4.5. Resuming an
// already-terminated fiber, or a fiber that is itself mid-resume
// (double resume of a running fiber), fails with a catchable
// exception rather than a Go-level fault.
func (f *Fiber) Resume(caller *VM, args []rvalue.Value) (rvalue.Value, error) {
	switch f.status {
	case FiberTerminated:
		return rvalue.Nil, caller.raiseRuntime("resuming a terminated fiber")
	case FiberRunning:
		return rvalue.Nil, caller.raiseRuntime("double resume of a running fiber")
	}

	callerFiber := caller.owningFiber
	f.resumer = callerFiber
	f.status = FiberRunning

	if !f.started {
		f.started = true
		go f.run(args)
	} else {
		f.resumeCh <- args
	}

	outcome := <-f.yieldCh
	if outcome.terminated {
		f.status = FiberTerminated
	} else {
		f.status = FiberSuspended
	}
	if outcome.err != nil {
		return rvalue.Nil, outcome.err
	}
	return outcome.value, nil
}

// run is the fiber's goroutine body: it runs exactly once per Fiber
// and always ends by reporting a terminated outcome, whether the
// block returned normally or raised past its own top frame.
func (f *Fiber) run(args []rvalue.Value) {
	result, err := f.self.Call(f.proc, rvalue.Nil, args, rvalue.Nil, rvalue.Nil)
	f.yieldCh <- fiberOutcome{value: result, err: err, terminated: true}
}

// Yield implements Fiber.yield: suspends whichever fiber vm belongs
// to, handing value back to its resumer, and blocks until that fiber
// is resumed again, at which point Resume's args become this call's
// return value. Yielding from the root fiber (vm.owningFiber == nil)
// fails, per spec.md §4.5 "root-yield fails".
func (vm *VM) Yield(value rvalue.Value) (rvalue.Value, error) {
	f := vm.owningFiber
	if f == nil {
		return rvalue.Nil, vm.raiseRuntime("can't yield from the root fiber")
	}
	f.yieldCh <- fiberOutcome{value: value}
	args := <-f.resumeCh
	if len(args) == 0 {
		return rvalue.Nil, nil
	}
	return args[0], nil
}

// fiberAsVM recovers the *VM a native method was called through;
// Fiber's native methods need the concrete type (unlike ordinary
// builtins) to reach owningFiber and raiseRuntime.
func fiberAsVM(ctx rbuiltin.Context) (*VM, bool) {
	vm, ok := ctx.(*VM)
	return vm, ok
}

func fiberNew(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
	vm, ok := fiberAsVM(ctx)
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "Fiber.new requires the VM context"}
	}
	proc, ok := procFromValue(block)
	if !ok {
		return rvalue.Nil, vm.raiseRuntime("Fiber.new requires a block")
	}
	ref, _ := recv.Heap()
	class, _ := ref.(*robject.Class)
	f, err := NewFiber(vm, class, proc)
	if err != nil {
		return rvalue.Nil, wrapf(err, "allocate fiber")
	}
	return rvalue.Ref(f), nil
}

func fiberResume(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
	vm, ok := fiberAsVM(ctx)
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "Fiber#resume requires the VM context"}
	}
	ref, ok := recv.Heap()
	if !ok {
		return rvalue.Nil, vm.raiseRuntime("not a fiber")
	}
	f, ok := ref.(*Fiber)
	if !ok {
		return rvalue.Nil, vm.raiseRuntime("not a fiber")
	}
	return f.Resume(vm, args)
}

func fiberYield(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
	vm, ok := fiberAsVM(ctx)
	if !ok {
		return rvalue.Nil, &RuntimeError{Reason: "Fiber.yield requires the VM context"}
	}
	v := rvalue.Nil
	if len(args) > 0 {
		v = args[0]
	}
	return vm.Yield(v)
}

func fiberAlive(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
	ref, ok := recv.Heap()
	if !ok {
		return rvalue.Bool(false), nil
	}
	f, ok := ref.(*Fiber)
	if !ok {
		return rvalue.Bool(false), nil
	}
	return rvalue.Bool(f.status != FiberTerminated), nil
}

// BootstrapFiberClass installs Fiber's native methods (`new` and
// `yield` on its singleton class, `resume` and `alive?` on instances)
// and records class as vm.FiberClass, mirroring how the embedding
// boundary installs every other builtin's native surface once its
// class object exists.
func (vm *VM) BootstrapFiberClass(class *robject.Class) error {
	singleton, err := robject.SingletonClass(vm.heap, class)
	if err != nil {
		return wrapf(err, "open Fiber singleton class")
	}
	define := func(scope *robject.Class, name string, fn rbuiltin.NativeFunc) error {
		proc, err := rbuiltin.NewNativeProc(vm.heap, class, fn)
		if err != nil {
			return err
		}
		sym := vm.Symbols.Intern(name)
		scope.DefineMethod(sym, rvalue.Ref(proc))
		vm.heap.FieldWriteBarrier(scope, proc)
		return nil
	}
	if err := define(singleton, "new", fiberNew); err != nil {
		return wrapf(err, "define Fiber.new")
	}
	if err := define(singleton, "yield", fiberYield); err != nil {
		return wrapf(err, "define Fiber.yield")
	}
	if err := define(class, "resume", fiberResume); err != nil {
		return wrapf(err, "define Fiber#resume")
	}
	if err := define(class, "alive?", fiberAlive); err != nil {
		return wrapf(err, "define Fiber#alive?")
	}
	vm.FiberClass = class
	return nil
}

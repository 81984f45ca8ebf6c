package rvm

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// sendCacheSize bounds the per-VM inline cache SEND consults before
// falling back to a full method-table walk; 4096 call sites is enough
// headroom for any script this embeds without the cache itself ever
// showing up in a heap profile.
const sendCacheSize = 4096

type rescueEntry struct {
	target int // pc to resume at
}

type ensureEntry struct {
	irep *rirep.IREP
}

// VM is one fiber's worth of execution state: its value stack, call
// frames, and exception-handling stacks. The root fiber's VM is
// created by the embedding package (rembed); every non-root Fiber
// (fiber.go) wraps another VM sharing the same Heap/Globals/Consts.
type VM struct {
	heap    *rheap.Heap
	Symbols *rsym.Table
	Globals map[rsym.ID]rvalue.Value
	Consts  *robject.Class // the root lexical scope / Object class

	// Builtin classes the VM's own opcodes need to allocate instances
	// of directly (ARRAY, STRING, RANGE, LAMBDA) without going through
	// a SEND, mirroring mruby's mrb_state holding these as well-known
	// globals rather than looking them up by name on every allocation.
	ArrayClass  *robject.Class
	StringClass *robject.Class
	RangeClass  *robject.Class
	ProcClass   *robject.Class
	HashClass   *robject.Class
	FiberClass  *robject.Class

	// owningFiber is non-nil only inside the goroutine running a
	// non-root Fiber's body, letting Fiber.yield (vm.Yield) find the
	// fiber it must suspend without threading it through every call.
	owningFiber *Fiber

	// ImmediateClassOf resolves the class of a non-heap Value
	// (Integer, Float, Symbol, NilClass, TrueClass, FalseClass); the
	// embedding boundary supplies it once it has bootstrapped those
	// classes, per robject.ClassOf's extension point.
	ImmediateClassOf rvalue.ClassResolver

	// MissingNames.MethodMissing is interned by the embedding
	// boundary's bootstrap; robject.LookupOrMissing needs it to know
	// which symbol to retry after a plain Lookup fails.
	Missing robject.MissingNames

	// MaxFrames bounds call-stack depth; spec.md §8's boundary
	// behavior requires recursive self-calls to raise with a runtime
	// kind after at least 60,000 frames on the default configuration.
	MaxFrames int

	stack  []rvalue.Value
	frames []*CallInfo

	// sendCache is SEND/FSEND's monomorphic inline cache: one entry
	// per (irep, pc) call site, remembering the receiver class last
	// seen there and the method it resolved to so a repeated call from
	// a monomorphic site (the overwhelming majority, per the usual
	// inline-caching argument) skips robject.Lookup's class-chain walk
	// entirely.
	sendCache *lru.Cache

	rescues []rescueEntry
	ensures []ensureEntry

	exception rvalue.Value
	hasExc    bool

	writer func(string)
}

// Config bundles what New needs beyond a Heap, so embedders don't
// have to poke at VM fields directly (mirrors the teacher's
// config.go constructor-options style, generalized to this package).
type Config struct {
	Heap    *rheap.Heap
	Symbols *rsym.Table
	Object  *robject.Class
	Writer  func(string)

	ArrayClass, StringClass, RangeClass, ProcClass, HashClass, FiberClass *robject.Class

	ImmediateClassOf rvalue.ClassResolver
	Missing          robject.MissingNames

	// MaxFrames defaults to 60000 (spec.md §8) when zero.
	MaxFrames int
}

const defaultMaxFrames = 60000

func New(cfg Config) *VM {
	w := cfg.Writer
	if w == nil {
		w = func(string) {}
	}
	maxFrames := cfg.MaxFrames
	if maxFrames == 0 {
		maxFrames = defaultMaxFrames
	}
	sendCache, _ := lru.New(sendCacheSize)
	return &VM{
		heap:             cfg.Heap,
		Symbols:          cfg.Symbols,
		Globals:          map[rsym.ID]rvalue.Value{},
		Consts:           cfg.Object,
		stack:            make([]rvalue.Value, 256),
		writer:           w,
		ArrayClass:       cfg.ArrayClass,
		StringClass:      cfg.StringClass,
		RangeClass:       cfg.RangeClass,
		ProcClass:        cfg.ProcClass,
		HashClass:        cfg.HashClass,
		FiberClass:       cfg.FiberClass,
		ImmediateClassOf: cfg.ImmediateClassOf,
		Missing:          cfg.Missing,
		MaxFrames:        maxFrames,
		sendCache:        sendCache,
	}
}

// growStack doubles the register stack and re-bases every live Env
// whose backing slots still point into it, per spec.md §4.5
// "Dispatch": "if a call would need more registers than available,
// the value stack is reallocated and every live env's stack pointer
// adjusted to the new base." Opcode register reads (regSlice) re-slice
// vm.stack fresh on every access, so they see the new array for free,
// but rbuiltin.Env.Get/Set read through a captured slice header
// (Env.Stack) that would otherwise keep pointing at the old backing
// array — so any env still attached to a frame on vm.frames (CIOff
// >= 0) needs that slice re-sliced against the new array. A detached
// env (CIOff < 0, see popFrame) already owns a private copy and is
// left alone.
func (vm *VM) growStack(min int) {
	if len(vm.stack) >= min {
		return
	}
	next := make([]rvalue.Value, min*2)
	copy(next, vm.stack)
	vm.stack = next
	for _, ci := range vm.frames {
		if ci.Env != nil && ci.Env.CIOff >= 0 {
			ci.Env.Stack = vm.stack[ci.Env.CIOff : ci.Env.CIOff+len(ci.Env.Stack)]
		}
	}
}

func (vm *VM) regSlice(stackIdx, nregs int) []rvalue.Value {
	vm.growStack(stackIdx + nregs)
	return vm.stack[stackIdx : stackIdx+nregs]
}

func (vm *VM) currentFrame() *CallInfo { return vm.frames[len(vm.frames)-1] }

func (vm *VM) pushFrame(ci *CallInfo) {
	ci.RIdx = len(vm.rescues)
	ci.EIdx = len(vm.ensures)
	vm.frames = append(vm.frames, ci)
}

// popFrame pops the top call frame and detaches its env, if any, from
// the shared register stack (spec.md §8 invariant 3): once a frame is
// gone, any closure holding that env must own a private copy rather
// than keep aliasing a stack region the next call is free to reuse.
func (vm *VM) popFrame() *CallInfo {
	ci := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	if ci.Env != nil {
		ci.Env.Detach()
	}
	return ci
}

// RuntimeError is the VM's own fatal-condition type (such as malformed
// bytecode; stack exhaustion is raised in-language instead) distinct from a raised-in-language exception
// value, which instead travels as vm.exception.
type RuntimeError struct{ Reason string }

func (e *RuntimeError) Error() string { return "rvm: " + e.Reason }

func wrapf(cause error, reason string) error { return errors.Wrap(cause, reason) }

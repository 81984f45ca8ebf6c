// Package rembed is the embedding boundary spec.md §1/§6 describe: a
// host links against this package, creates an Interp, and runs script
// source through it. It owns the one piece no inner package should:
// wiring rheap/rsym/robject/rbuiltin/rvm together into a single
// runnable instance (component I).
package rembed

import (
	"github.com/google/uuid"

	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
	"github.com/clarete/rembed/rvm"
)

// Interp bundles one interpreter instance's heap, symbol table,
// bootstrap class set, and VM. spec.md §5 requires instances to share
// no heap objects with each other; nothing here is package-level
// state, so creating two Interps gives two fully isolated runtimes.
type Interp struct {
	id      uuid.UUID
	heap    *rheap.Heap
	symbols *rsym.Table
	vm      *rvm.VM

	Object, Integer, Float, String, Symbol, Array, Hash, Range, Proc, NilClass, TrueClass, FalseClass, Fiber *robject.Class

	Exception, RuntimeError *robject.Class

	main *robject.Instance

	logger Logger
}

// ID returns a stable identity a host can use to correlate log lines
// or metrics across several disjoint interpreter instances (spec.md
// §5 "multiple interpreter instances").
func (in *Interp) ID() uuid.UUID { return in.id }

// New builds an Interp from cfg (NewConfig()'s defaults if cfg is
// nil), bootstrapping the heap, symbol table, and the handful of
// built-in classes the VM's own opcodes reach for directly
// (Object/Array/String/Range/Proc/Hash/Fiber), the same bootstrap
// rvm's own test helper builds by hand for each test.
func New(cfg *Config) (*Interp, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	heap := rheap.NewHeap(rheap.Config{
		StepRatio:      (*cfg).GetInt("gc.step_ratio"),
		IntervalRatio:  (*cfg).GetInt("gc.interval_ratio"),
		Generational:   (*cfg).GetBool("gc.generational"),
		MajorThreshold: (*cfg).GetInt("gc.major_threshold"),
	}, (*cfg).GetInt("arena.size"))

	symbols := rsym.NewTable()

	object, err := robject.NewClass(heap, "Object", nil, robject.TTClass)
	if err != nil {
		return nil, err
	}
	integer, err := robject.NewClass(heap, "Integer", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	float, err := robject.NewClass(heap, "Float", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	symbolClass, err := robject.NewClass(heap, "Symbol", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	nilClass, err := robject.NewClass(heap, "NilClass", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	trueClass, err := robject.NewClass(heap, "TrueClass", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	falseClass, err := robject.NewClass(heap, "FalseClass", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	arrayClass, err := robject.NewClass(heap, "Array", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	arrayClass.InstanceKind = rheap.KindArray
	stringClass, err := robject.NewClass(heap, "String", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	stringClass.InstanceKind = rheap.KindString
	rangeClass, err := robject.NewClass(heap, "Range", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	rangeClass.InstanceKind = rheap.KindRange
	procClass, err := robject.NewClass(heap, "Proc", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	procClass.InstanceKind = rheap.KindProc
	hashClass, err := robject.NewClass(heap, "Hash", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	hashClass.InstanceKind = rheap.KindHash
	fiberClass, err := robject.NewClass(heap, "Fiber", object, robject.TTClass)
	if err != nil {
		return nil, err
	}
	fiberClass.InstanceKind = rheap.KindFiber

	missing := robject.MissingNames{MethodMissing: symbols.Intern("method_missing")}

	vm := rvm.New(rvm.Config{
		Heap: heap, Symbols: symbols, Object: object,
		ArrayClass: arrayClass, StringClass: stringClass, RangeClass: rangeClass,
		ProcClass: procClass, HashClass: hashClass, FiberClass: fiberClass,
		Missing:   missing,
		MaxFrames: (*cfg).GetInt("vm.stack_max"),
		ImmediateClassOf: func(v rvalue.Value) rheap.GCObject {
			switch v.Tag() {
			case rvalue.TagInt:
				return integer
			case rvalue.TagFloat:
				return float
			case rvalue.TagSymbol:
				return symbolClass
			case rvalue.TagNil:
				return nilClass
			case rvalue.TagTrue:
				return trueClass
			case rvalue.TagFalse:
				return falseClass
			default:
				return object
			}
		},
	})
	if err := vm.BootstrapFiberClass(fiberClass); err != nil {
		return nil, err
	}

	if err := bootstrapKernel(heap, symbols, object, procClass); err != nil {
		return nil, err
	}
	if err := bootstrapInteger(heap, symbols, integer, procClass); err != nil {
		return nil, err
	}
	if err := bootstrapArray(heap, symbols, arrayClass, procClass); err != nil {
		return nil, err
	}
	exception, runtimeError, err := bootstrapExceptions(heap, symbols, object, procClass, stringClass)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}

	return &Interp{
		id: id, heap: heap, symbols: symbols, vm: vm,
		Object: object, Integer: integer, Float: float, String: stringClass,
		Symbol: symbolClass, Array: arrayClass, Hash: hashClass, Range: rangeClass,
		Proc: procClass, NilClass: nilClass, TrueClass: trueClass, FalseClass: falseClass,
		Fiber: fiberClass,
		Exception: exception, RuntimeError: runtimeError,
		logger: NewDefaultLogger(),
	}, nil
}

// SetLogger replaces the Interp's default Logger.
func (in *Interp) SetLogger(l Logger) { in.logger = l }

// Symbols exposes the interpreter's symbol table so a host embedding
// native methods can intern names consistently with the VM.
func (in *Interp) Symbols() *rsym.Table { return in.symbols }

// Heap exposes the interpreter's heap for a host registering
// additional native classes before running any script.
func (in *Interp) Heap() *rheap.Heap { return in.heap }

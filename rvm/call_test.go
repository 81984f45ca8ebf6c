package rvm

import (
	"testing"

	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuperUsesTargetClassNotReceiverClass exercises spec.md's
// invariant 4: ci.target_class is the class in whose method table the
// running method was found, not the receiver's own class, so super
// called from a method defined on a grandparent class still continues
// one level up from *that* class rather than restarting from the
// receiver's immediate class chain.
func TestSuperUsesTargetClassNotReceiverClass(t *testing.T) {
	te := newTestVM(t)
	heap := te.heap

	a, err := robject.NewClass(heap, "A", te.object, robject.TTClass)
	require.NoError(t, err)
	b, err := robject.NewClass(heap, "B", a, robject.TTClass)
	require.NoError(t, err)
	c, err := robject.NewClass(heap, "C", b, robject.TTClass)
	require.NoError(t, err)

	mid := te.symbols.Intern("greet")

	// A#greet is the base case: return 1, no further super call.
	aIrep := mkIREP([]rirep.Inst{
		{Op: OpLoadI, A: 1, B: 1},
		{Op: OpReturn, A: 1},
	}, nil, nil, nil, 2)
	aProc, err := rbuiltin.NewIREPProc(heap, te.vm.ProcClass, aIrep, nil, a, false)
	require.NoError(t, err)
	a.DefineMethod(mid, rvalue.Ref(aProc))

	// B#greet calls super with no args; execSuper must resolve it
	// from ci.TargetClass.Super (A, since this proc's DefiningClass is
	// B), which only happens to equal the receiver's actual
	// superclass chain member because invariant 4 holds.
	bIrep := mkIREP([]rirep.Inst{
		{Op: OpSuper, A: 1, C: 0},
		{Op: OpReturn, A: 1},
	}, nil, nil, nil, 2)
	bProc, err := rbuiltin.NewIREPProc(heap, te.vm.ProcClass, bIrep, nil, b, false)
	require.NoError(t, err)
	b.DefineMethod(mid, rvalue.Ref(bProc))

	// C defines no greet of its own: dispatch on a C instance finds
	// the method in B's table, so ci.TargetClass for the running
	// frame must be B, not C.
	instC, err := robject.NewInstance(heap, c)
	require.NoError(t, err)

	result, err := te.vm.invoke(nil, rvalue.Ref(instC), mid, nil, rvalue.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Int())
}

// TestSuperFromReceiversOwnClassStillWorks covers the simpler case
// invariant 4 also has to hold for: a method found directly on the
// receiver's own class still resolves target_class to that class, so
// an immediate super call from it lands on the true superclass.
func TestSuperFromReceiversOwnClassStillWorks(t *testing.T) {
	te := newTestVM(t)
	heap := te.heap

	a, err := robject.NewClass(heap, "A", te.object, robject.TTClass)
	require.NoError(t, err)
	b, err := robject.NewClass(heap, "B", a, robject.TTClass)
	require.NoError(t, err)

	mid := te.symbols.Intern("greet")

	aIrep := mkIREP([]rirep.Inst{
		{Op: OpLoadI, A: 1, B: 42},
		{Op: OpReturn, A: 1},
	}, nil, nil, nil, 2)
	aProc, err := rbuiltin.NewIREPProc(heap, te.vm.ProcClass, aIrep, nil, a, false)
	require.NoError(t, err)
	a.DefineMethod(mid, rvalue.Ref(aProc))

	bIrep := mkIREP([]rirep.Inst{
		{Op: OpSuper, A: 1, C: 0},
		{Op: OpReturn, A: 1},
	}, nil, nil, nil, 2)
	bProc, err := rbuiltin.NewIREPProc(heap, te.vm.ProcClass, bIrep, nil, b, false)
	require.NoError(t, err)
	b.DefineMethod(mid, rvalue.Ref(bProc))

	instB, err := robject.NewInstance(heap, b)
	require.NoError(t, err)

	result, err := te.vm.invoke(nil, rvalue.Ref(instB), mid, nil, rvalue.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Int())
}

// TestDeepRecursionRaisesRuntimeKindInsteadOfOverflowingGoStack covers
// spec.md §8's boundary behavior: recursive self-calls exceed the
// stack limit and raise with a runtime kind rather than crashing the
// host process. MaxFrames is set low so the test doesn't need 60,000
// real Go call frames to exercise the same check.
func TestDeepRecursionRaisesRuntimeKindInsteadOfOverflowingGoStack(t *testing.T) {
	heap := rheap.NewHeap(rheap.DefaultConfig(), 4096)
	symbols := rsym.NewTable()

	object, err := robject.NewClass(heap, "Object", nil, robject.TTClass)
	require.NoError(t, err)
	procClass, err := robject.NewClass(heap, "Proc", object, robject.TTClass)
	require.NoError(t, err)
	stringClass, err := robject.NewClass(heap, "String", object, robject.TTClass)
	require.NoError(t, err)

	vm := New(Config{
		Heap: heap, Symbols: symbols, Object: object,
		ProcClass: procClass, StringClass: stringClass,
		Missing:   robject.MissingNames{MethodMissing: symbols.Intern("method_missing")},
		MaxFrames: 5,
	})

	mid := symbols.Intern("loop")
	irep := mkIREP([]rirep.Inst{
		{Op: OpFSend, A: 1, B: 0, C: 0},
		{Op: OpReturn, A: 1},
	}, nil, []rsym.ID{mid}, nil, 2)
	proc, err := rbuiltin.NewIREPProc(heap, procClass, irep, nil, object, false)
	require.NoError(t, err)
	object.DefineMethod(mid, rvalue.Ref(proc))

	instance, err := robject.NewInstance(heap, object)
	require.NoError(t, err)

	_, err = vm.invoke(nil, rvalue.Ref(instance), mid, nil, rvalue.Nil)
	require.Error(t, err)
	raised, ok := err.(*RaisedError)
	require.True(t, ok, "expected a catchable *RaisedError, got %T", err)
	_ = raised
}

// TestClosureSurvivesDefiningFrameReturn covers spec.md's invariant 3:
// a lambda that captures its defining frame's locals must keep
// reading the right values after that frame is popped, at which point
// its Env has detached into a private copy rather than continue
// aliasing a stack region a later call is free to overwrite.
func TestClosureSurvivesDefiningFrameReturn(t *testing.T) {
	te := newTestVM(t)

	// R1 holds the local the lambda closes over; R2 receives the
	// lambda itself so building it doesn't clobber R1's value.
	childIrep := mkIREP([]rirep.Inst{
		{Op: OpGetUpvar, A: 1, B: 1, C: 0},
		{Op: OpReturn, A: 1},
	}, nil, nil, nil, 2)

	outerIrep := mkIREP([]rirep.Inst{
		{Op: OpLoadI, A: 1, B: 7},
		{Op: OpLambda, A: 2, B: 0},
		{Op: OpReturn, A: 2},
	}, nil, nil, []*rirep.IREP{childIrep}, 3)

	result, err := te.callIREP(t, outerIrep, rvalue.Nil, nil)
	require.NoError(t, err)

	ref, ok := result.Heap()
	require.True(t, ok)
	proc, ok := ref.(*rbuiltin.Proc)
	require.True(t, ok)
	require.NotNil(t, proc.Env)

	// The defining frame (outerIrep's call) is long gone by now: its
	// popFrame already ran via callIREP's return, so the env must have
	// detached rather than still alias vm.stack.
	assert.Equal(t, -1, proc.Env.CIOff)

	// Drive a handful of unrelated calls to churn vm.stack the way a
	// real program would before the closure is ever invoked, then
	// confirm it still reads its own captured value, not whatever
	// those calls left behind in the same stack region.
	for i := 0; i < 3; i++ {
		_, err := te.callIREP(t, mkIREP([]rirep.Inst{
			{Op: OpLoadI, A: 1, B: int32(100 + i)},
			{Op: OpReturn, A: 1},
		}, nil, nil, nil, 2), rvalue.Nil, nil)
		require.NoError(t, err)
	}

	out, err := te.vm.Call(proc, rvalue.Nil, nil, rvalue.Nil, rvalue.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Int())
}

package rheap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeObj is a minimal GCObject used to exercise the collector
// without pulling in robject/rbuiltin.
type fakeObj struct {
	Header
	kids []*fakeObj
}

func (f *fakeObj) TraceChildren(visit func(GCObject)) {
	for _, k := range f.kids {
		visit(k)
	}
}
func (f *fakeObj) Finalize() {}

type fakeRoots struct{ objs []GCObject }

func (r *fakeRoots) GCRoots(visit func(GCObject)) {
	for _, o := range r.objs {
		visit(o)
	}
}

func newHeapForTest() *Heap {
	return NewHeap(DefaultConfig(), 1024)
}

func TestAllocPaintsCurrentWhite(t *testing.T) {
	h := newHeapForTest()
	obj, err := h.Alloc(&fakeObj{}, KindObject, nil)
	require.NoError(t, err)
	require.True(t, obj.Header().Color().IsWhite())
}

// TestSweepCollectsUnreachable covers invariant 1 of spec.md §8: at a
// sweep safe-point every white object is unreachable, and every
// reachable object survives.
func TestSweepCollectsUnreachable(t *testing.T) {
	h := newHeapForTest()
	live, _ := h.Alloc(&fakeObj{}, KindObject, nil)
	garbage, _ := h.Alloc(&fakeObj{}, KindObject, nil)

	roots := &fakeRoots{objs: []GCObject{live}}
	h.AddRoot(roots)

	save := h.Arena().Save()
	h.Arena().Restore(save - 2) // drop both allocation-time arena protections

	h.Collect()

	require.Equal(t, 1, h.LiveCount())
	require.NotNil(t, live.Header())
	_ = garbage
}

// TestFieldWriteBarrierReshadesWhiteChild covers invariant 2: a black
// object must never end a mark phase pointing at a white object
// without the barrier having run.
func TestFieldWriteBarrierReshadesWhiteChild(t *testing.T) {
	h := newHeapForTest()
	parentObj, _ := h.Alloc(&fakeObj{}, KindObject, nil)
	parent := parentObj.(*fakeObj)
	roots := &fakeRoots{objs: []GCObject{parent}}
	h.AddRoot(roots)
	child, _ := h.Alloc(&fakeObj{}, KindObject, nil)
	h.Arena().Restore(h.Arena().Save() - 1) // drop the child's arena protection so it stays white

	// Drive parent to black by running root-mark plus one one-cell mark
	// step without a sweep: do it manually so we can install the white
	// child mid-way, simulating a mutator write between steps.
	h.beginRootMark()
	h.rootMarkStep()
	h.stepBudget = 1
	h.markStep()
	require.Equal(t, ColorBlack, parent.Header().Color())

	parent.kids = append(parent.kids, child.(*fakeObj))
	h.FieldWriteBarrier(parent, child)
	require.Equal(t, ColorGray, child.Header().Color())
}

func TestCollectTwiceIsIdempotent(t *testing.T) {
	h := newHeapForTest()
	live, _ := h.Alloc(&fakeObj{}, KindObject, nil)
	h.AddRoot(&fakeRoots{objs: []GCObject{live}})
	h.Collect()
	before := h.LiveCount()
	h.Collect()
	require.Equal(t, before, h.LiveCount())
}

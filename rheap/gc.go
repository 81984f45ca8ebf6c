// Package rheap implements the page-based allocator and the tracing,
// tri-color, incremental, optionally generational garbage collector
// that spec.md §4.1 specifies. The collector is deliberately modeled
// on the Go runtime's own mark-sweep machinery (gray worklist as a
// stack of work buffers, field/slice write-barrier split, per-page
// sweep-to-freelist) rather than reinvented, since that design is the
// one the retrieval pack's own runtime sources (mgcwork.go,
// mbarrier.go, mgcsweep.go, malloc.go) already document — scaled down
// to a single-threaded, non-preemptible, step-budgeted incremental
// collector invoked inline from allocation instead of running
// concurrently on its own goroutine.
package rheap

import (
	"github.com/pkg/errors"
)

// Phase is the collector's state machine, spec.md §4.1 "Phases".
type Phase uint8

const (
	PhaseNone Phase = iota
	PhaseRootMark
	PhaseMark
	PhaseSweep
)

// RootSource is implemented by the VM (and by the host through the
// embedding boundary) to hand the collector every live root: the
// in-use stack range, call-info proc/env/target-class fields, the
// ensure stack, globals, the class hierarchy root, and the current
// exception. IREP constant pools are walked by the Heap itself via
// registered IREP roots (see AddIREPRoot).
type RootSource interface {
	GCRoots(visit func(GCObject))
}

// Config bundles the tunables spec.md §4.1 names: the step-size
// budget derived from a step ratio, and the live-memory threshold
// derived from (post-mark-live * interval-ratio / 100).
type Config struct {
	StepRatio      int  // percent of live objects scanned per incremental step
	IntervalRatio  int  // percent of post-mark live that must accrue before the next step
	Generational   bool
	MajorThreshold int // live-after-mark object count that forces a major cycle
}

func DefaultConfig() Config {
	return Config{StepRatio: 200, IntervalRatio: 200, Generational: true, MajorThreshold: 1 << 20}
}

// Heap owns the page list, the arena, and the collector's running
// state. One Heap belongs to exactly one interpreter instance;
// spec.md §5 requires instances to share no heap objects.
type Heap struct {
	cfg Config

	pages       *Page
	currentPage *Page

	arena *Arena

	phase       Phase
	allocColor  Color // "current white": the color assigned to new allocations this cycle
	sweepTarget Color // the white sub-color sweep is collecting this cycle

	gray    []GCObject // the primary gray worklist (drained by Mark)
	varGray []GCObject // "variable gray": objects repainted by the Object barrier

	live          int // objects currently occupied across all pages
	postMarkLive  int // live count observed at the end of the previous mark
	stepBudget    int // remaining cells this incremental step may touch
	sweepPage     *Page
	sweepIdx      int

	roots []RootSource
	ireps []IREPRoot

	consecutiveAllocFailures int
}

// IREPRoot lets rirep register a compiled module's constant pool as a
// GC root without rheap importing rirep (which would be circular:
// rirep is shared by codegen, loader and VM, none of which should
// depend back on the collector's internals beyond this interface).
type IREPRoot interface {
	IREPRoots(visit func(GCObject))
}

func NewHeap(cfg Config, arenaSize int) *Heap {
	h := &Heap{cfg: cfg, arena: newArena(arenaSize), allocColor: ColorWhiteA, sweepTarget: ColorWhiteB}
	return h
}

func (h *Heap) Arena() *Arena { return h.arena }

func (h *Heap) AddRoot(r RootSource)     { h.roots = append(h.roots, r) }
func (h *Heap) AddIREPRoot(r IREPRoot)   { h.ireps = append(h.ireps, r) }

// Alloc implements spec.md §4.1's alloc(kind, class): it pops a free
// cell (linking a new page if none is available), paints the object
// the current allocation color, protects it through an arena slot,
// and initializes its class pointer.
func (h *Heap) Alloc(obj GCObject, kind Kind, class GCObject) (GCObject, error) {
	if h.currentPage == nil || !h.currentPage.hasFree() {
		if err := h.linkPage(); err != nil {
			return nil, err
		}
	}
	hdr := obj.Header()
	*hdr = newHeader(kind, class, h.allocColor)
	idx := h.currentPage.take()
	h.currentPage.cells[idx] = obj
	h.live++
	if err := h.arena.Protect(obj); err != nil {
		return nil, err
	}
	h.maybeStep()
	return obj, nil
}

func (h *Heap) linkPage() error {
	p, err := newPage()
	if err != nil {
		h.consecutiveAllocFailures++
		if h.consecutiveAllocFailures >= 2 {
			return &FatalError{Cause: err, Reason: "double allocation failure"}
		}
		// One forced collection, then retry once.
		h.collectFully()
		p, err = newPage()
		if err != nil {
			return errors.Wrap(err, "rheap: allocation failed after forced collection")
		}
	}
	h.consecutiveAllocFailures = 0
	p.next = h.pages
	h.pages = p
	h.currentPage = p
	return nil
}

// maybeStep triggers an incremental step when live memory crosses the
// threshold derived from (post-mark-live * interval-ratio / 100).
func (h *Heap) maybeStep() {
	threshold := h.postMarkLive * h.cfg.IntervalRatio / 100
	if threshold <= 0 {
		threshold = 64
	}
	if h.live < threshold && h.phase == PhaseNone {
		return
	}
	h.Step()
}

// Step runs one incremental slice of work, bounded by the step
// budget; it advances the phase state machine NONE -> ROOT_MARK ->
// MARK -> SWEEP -> NONE exactly as spec.md §4.1 describes.
func (h *Heap) Step() {
	h.stepBudget = h.live * h.cfg.StepRatio / 100
	if h.stepBudget <= 0 {
		h.stepBudget = 16
	}
	for h.stepBudget > 0 {
		switch h.phase {
		case PhaseNone:
			h.beginRootMark()
		case PhaseRootMark:
			h.rootMarkStep()
		case PhaseMark:
			h.markStep()
		case PhaseSweep:
			h.sweepStep()
		}
		if h.phase == PhaseNone {
			break
		}
	}
}

// collectFully drains every phase synchronously; used when an
// allocation cannot otherwise be satisfied.
func (h *Heap) collectFully() {
	if h.phase == PhaseNone {
		h.beginRootMark()
	}
	for h.phase != PhaseNone {
		h.stepBudget = 1 << 30
		switch h.phase {
		case PhaseRootMark:
			h.rootMarkStep()
		case PhaseMark:
			h.markStep()
		case PhaseSweep:
			h.sweepStep()
		}
	}
}

func (h *Heap) beginRootMark() {
	h.phase = PhaseRootMark
	h.gray = h.gray[:0]
	h.varGray = h.varGray[:0]
}

// rootMarkStep scans every root source registered with the heap (the
// VM's stack-in-use range, call-info chain, ensure stack, globals,
// class hierarchy root, current exception), the arena, and every
// registered IREP's constant pool, painting each discovered object
// gray and queuing it. Root marking is treated as a single atomic
// step (it must not race a mutator write, and in this single-threaded
// design nothing preempts it).
func (h *Heap) rootMarkStep() {
	mark := func(o GCObject) { h.shade(o) }
	h.arena.each(mark)
	for _, r := range h.roots {
		r.GCRoots(mark)
	}
	for _, r := range h.ireps {
		r.IREPRoots(mark)
	}
	h.phase = PhaseMark
}

// shade paints a white object gray and links it into the gray
// worklist; no-op for objects already gray or black.
func (h *Heap) shade(o GCObject) {
	if o == nil {
		return
	}
	hdr := o.Header()
	if !hdr.color.IsWhite() {
		return
	}
	hdr.color = ColorGray
	h.gray = append(h.gray, o)
}

// markStep drains the gray worklist, bounded by the step budget;
// draining an object paints it black after marking its children.
func (h *Heap) markStep() {
	for h.stepBudget > 0 {
		if len(h.gray) == 0 {
			if len(h.varGray) > 0 {
				// Final mark retraverses the variable-gray list
				// produced by the Object write barrier before
				// declaring mark complete.
				for _, o := range h.varGray {
					o.Header().ClearFlag(FlagVarGray)
				}
				h.gray = append(h.gray, h.varGray...)
				h.varGray = h.varGray[:0]
				continue
			}
			h.postMarkLive = h.live
			h.beginSweep()
			return
		}
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		o.TraceChildren(h.shade)
		o.Header().color = ColorBlack
		h.stepBudget--
	}
}

func (h *Heap) beginSweep() {
	h.phase = PhaseSweep
	h.sweepPage = h.pages
	h.sweepIdx = 0
}

// sweepStep walks pages, finalizing and freeing any cell still white
// at sweep time; pages entirely free at the end of their sweep are
// unmapped and unlinked. Generational mode marks a page "old" (and
// lets future minor cycles skip it) once its freelist empties after
// this sweep; a major cycle (triggered when live-after-mark crosses
// MajorThreshold) clears every page's old bit first.
func (h *Heap) sweepStep() {
	major := h.cfg.Generational && h.postMarkLive >= h.cfg.MajorThreshold
	if major {
		h.clearOldBits()
	}
	var prev *Page
	p := h.sweepPage
	for p != nil && h.stepBudget > 0 {
		if h.cfg.Generational && p.old && !major {
			prev, p = p, p.next
			h.sweepPage = p
			continue
		}
		for ; h.sweepIdx < cellsPerPage && h.stepBudget > 0; h.sweepIdx++ {
			obj := p.cells[h.sweepIdx]
			if obj == nil {
				continue
			}
			hdr := obj.Header()
			if hdr.color.IsWhite() {
				obj.Finalize()
				p.release(h.sweepIdx)
				h.live--
			} else {
				hdr.color = h.allocColor // repaint for next cycle
			}
			h.stepBudget--
		}
		if h.sweepIdx >= cellsPerPage {
			if h.cfg.Generational {
				p.old = p.allOccupied()
			}
			if p.allFree() {
				p.unmap()
				if prev == nil {
					h.pages = p.next
				} else {
					prev.next = p.next
				}
				p = p.next
				h.sweepIdx = 0
				h.sweepPage = p
				continue
			}
			prev = p
			p = p.next
			h.sweepIdx = 0
			h.sweepPage = p
		}
	}
	if p == nil {
		h.finishCycle()
	}
}

func (h *Heap) clearOldBits() {
	for p := h.pages; p != nil; p = p.next {
		p.old = false
	}
}

func (h *Heap) finishCycle() {
	h.phase = PhaseNone
	h.allocColor, h.sweepTarget = h.sweepTarget, h.allocColor
}

// Collect forces a full synchronous cycle; exposed to the host/VM as
// `GC.start`.
func (h *Heap) Collect() { h.collectFully() }

// LiveCount reports the number of occupied cells, for diagnostics and
// for spec.md §8's "running GC.start twice changes no reachable
// value" property test.
func (h *Heap) LiveCount() int { return h.live }

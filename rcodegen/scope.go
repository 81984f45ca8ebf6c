package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rsym"
)

// loopCtx is one entry of a scope's loop stack (spec.md §4.4 "loop: a
// stack of loop contexts with their kind and pcs for break/next/redo").
type loopCtx struct {
	kind string // "while", "for", "block"

	// breakPatches collects the indices of JMP instructions emitted for
	// `break`, backpatched to the loop's exit pc once known.
	breakPatches []int

	// nextTarget is the pc `next` jumps to (the loop head, which
	// re-tests the condition); redoTarget is the pc `redo`/`retry` jump
	// to (the start of the body, skipping the condition).
	nextTarget int
	redoTarget int

	// ensureDepth is the enclosing ensureDepth active when the loop was
	// entered, so break/next out of nested begin/ensure blocks pop the
	// right number of pending ensures before jumping.
	ensureDepth int
}

// gen is one lexical scope's compiler state: one gen per IREP being
// built (top-level, or a def/class/module/sclass/block/lambda body),
// chained to its lexically enclosing gen via parent so GETUPVAR/
// SETUPVAR lookups (spec.md §4.4 "Closures") can count levels.
type gen struct {
	symbols *rsym.Table
	parent  *gen

	code []rirep.Inst

	locals   map[string]int32
	localOrd []string
	nlocals  int32
	sp       int32
	nregs    int32

	pool       []rirep.Const
	poolInts   map[int64]int32
	poolFloats map[float64]int32
	poolStrs   map[string]int32

	syms    []rsym.ID
	symIdxs map[rsym.ID]int32

	kids []*rirep.IREP

	// loops is a slice of pointers so that pushing a nested loop can
	// never reallocate and invalidate a pointer an enclosing VisitWhile/
	// VisitFor call is still holding onto.
	loops []*loopCtx

	ensureDepth int

	// targets marks instruction indices that are jump targets, so
	// peephole (peephole.go) never collapses across a label.
	targets map[int32]bool

	// last is the register the most recently compiled expression left
	// its value in; every Visit* method that evaluates to a value sets
	// this before returning (rast.Visitor's methods only return error,
	// so the produced register travels out-of-band through this field,
	// the same shape the teacher's compiler uses for its own position-
	// only Visitor return type).
	last int32

	params rirep.ParamSpec
}

func newGen(symbols *rsym.Table, parent *gen) *gen {
	g := &gen{
		symbols:    symbols,
		parent:     parent,
		locals:     map[string]int32{},
		poolInts:   map[int64]int32{},
		poolFloats: map[float64]int32{},
		poolStrs:   map[string]int32{},
		symIdxs:    map[rsym.ID]int32{},
	}
	g.sp = 1 // R(0) is self
	return g
}

func (g *gen) resultReg() int32 { return g.alloc() }

// alloc reserves the next free register above the locals, tracking the
// scope's high-water register count (spec.md §4.4 "Temporaries live
// above nlocals and are always allocated at sp").
func (g *gen) alloc() int32 {
	r := g.sp
	g.sp++
	if g.sp > g.nregs {
		g.nregs = g.sp
	}
	return r
}

// free releases registers back to the stack; callers must only free
// the most recently allocated temporaries, in reverse order, matching
// the stack discipline spec.md §4.4 describes.
func (g *gen) free(to int32) {
	if to < g.nlocals+1 {
		to = g.nlocals + 1
	}
	g.sp = to
	if g.sp > g.nregs {
		g.nregs = g.sp
	}
}

// declareLocal assigns a fixed register to name the first time it is
// seen, in declaration order (spec.md §4.4 "Locals occupy indices
// 1..nlocals in fixed order").
func (g *gen) declareLocal(name string) int32 {
	if idx, ok := g.locals[name]; ok {
		return idx
	}
	g.nlocals++
	idx := g.nlocals
	g.locals[name] = idx
	g.localOrd = append(g.localOrd, name)
	if g.sp <= idx {
		g.sp = idx + 1
		if g.sp > g.nregs {
			g.nregs = g.sp
		}
	}
	return idx
}

// lookupLocal scans this scope then, per spec.md §4.4 "Closures",
// counts levels up through parent scopes; found==false means the name
// is not a local anywhere in the lexical chain (fcall or undeclared
// global-ish bareword).
func (g *gen) lookupLocal(name string) (idx int32, level int, found bool) {
	s := g
	lv := 0
	for s != nil {
		if i, ok := s.locals[name]; ok {
			return i, lv, true
		}
		s = s.parent
		lv++
	}
	return 0, 0, false
}

func (g *gen) symIdx(name string) int32 {
	id := g.symbols.Intern(name)
	if idx, ok := g.symIdxs[id]; ok {
		return idx
	}
	idx := int32(len(g.syms))
	g.syms = append(g.syms, id)
	g.symIdxs[id] = idx
	return idx
}

func (g *gen) poolInt(v int64) int32 {
	if idx, ok := g.poolInts[v]; ok {
		return idx
	}
	idx := int32(len(g.pool))
	g.pool = append(g.pool, rirep.Const{Kind: rirep.ConstInt, I: v})
	g.poolInts[v] = idx
	return idx
}

func (g *gen) poolFloat(v float64) int32 {
	if idx, ok := g.poolFloats[v]; ok {
		return idx
	}
	idx := int32(len(g.pool))
	g.pool = append(g.pool, rirep.Const{Kind: rirep.ConstFloat, F: v})
	g.poolFloats[v] = idx
	return idx
}

// poolString dedups by content (spec.md §4.4 "Literal pooling": "string
// equality is deep, so duplicate literals share one entry").
func (g *gen) poolString(v string) int32 {
	if idx, ok := g.poolStrs[v]; ok {
		return idx
	}
	idx := int32(len(g.pool))
	g.pool = append(g.pool, rirep.Const{Kind: rirep.ConstString, S: v})
	g.poolStrs[v] = idx
	return idx
}

func (g *gen) addKid(irep *rirep.IREP) int32 {
	idx := int32(len(g.kids))
	g.kids = append(g.kids, irep)
	return idx
}

// emit appends inst and runs the peephole pass over the instruction it
// replaces, if any (spec.md §4.4 "Peephole rules").
func (g *gen) emit(inst rirep.Inst) int {
	g.code = append(g.code, inst)
	g.peephole()
	return len(g.code) - 1
}

// label returns the pc the next emit will land at, for jump targets
// that are known before the jump itself is written.
func (g *gen) label() int32 { return int32(len(g.code)) }

// patchJmp rewrites a previously emitted JMP/JMPIF/JMPNOT's B operand
// (an absolute target pc) once the target is known.
func (g *gen) patchJmp(at int, target int32) {
	g.code[at].B = target
}

func (g *gen) finish() *rirep.IREP {
	r := rirep.New()
	r.NLocals = int(g.nlocals)
	r.NRegs = int(g.nregs)
	r.Code = g.code
	r.Pool = g.pool
	r.Syms = g.syms
	r.Kids = g.kids
	r.Params = g.params
	return r
}

// pushLoop opens a new loop context (spec.md §4.4 "loop: a stack of
// loop contexts with their kind and pcs for break/next/redo").
func (g *gen) pushLoop(kind string) *loopCtx {
	lp := &loopCtx{kind: kind, ensureDepth: g.ensureDepth}
	g.loops = append(g.loops, lp)
	return lp
}

func (g *gen) popLoop() { g.loops = g.loops[:len(g.loops)-1] }

func (g *gen) currentLoop() *loopCtx {
	if len(g.loops) == 0 {
		return nil
	}
	return g.loops[len(g.loops)-1]
}

func errAt(n rast.Node, msg string) error {
	return &CodegenError{Message: msg, Pos: n.Pos()}
}

package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rvm"
)

// compileExpr lowers n into a freshly allocated register and returns
// it; every Visit* method below follows the same contract: leave the
// scope's register stack (sp) exactly one above the register it
// reports back through g.last, so a caller stacking several compileExpr
// calls back to back gets contiguous registers for free (spec.md §4.4
// "Values must be pushed left-to-right").
func (g *gen) compileExpr(n rast.Node) (int32, error) {
	if err := n.Accept(g); err != nil {
		return 0, err
	}
	return g.last, nil
}

// compileInto lowers n and ensures its value ends up in dest,
// inserting a MOVE when the natural landing register differs (the
// MOVE-collapse peephole rule frequently erases this MOVE again).
func (g *gen) compileInto(dest int32, n rast.Node) error {
	r, err := g.compileExpr(n)
	if err != nil {
		return err
	}
	if r != dest {
		g.emit(rirepInst(rvm.OpMove, dest, r, 0))
	}
	g.settle(dest)
	return nil
}

// settle records reg as the result register and frees any scratch
// registers a composite expression allocated above it.
func (g *gen) settle(reg int32) {
	g.free(reg + 1)
	g.last = reg
}

// compileIntoSlot allocates the next free register and compiles n into
// it, guaranteeing the value lands there even when n's natural
// register (a bare local-variable reference, which allocates nothing)
// would otherwise be some earlier, non-adjacent register. Every
// contiguous-register calling convention (ARRAY, HASH, RANGE, SEND's
// argument list) builds its slots this way.
func (g *gen) compileIntoSlot(n rast.Node) (int32, error) {
	slot := g.alloc()
	if err := g.compileInto(slot, n); err != nil {
		return 0, err
	}
	return slot, nil
}

func (g *gen) VisitInt(n *rast.IntNode) error {
	dest := g.alloc()
	if int64(int32(n.Value)) == n.Value {
		g.emit(rirepInst(rvm.OpLoadI, dest, int32(n.Value), 0))
	} else {
		g.emit(rirepInst(rvm.OpLoadL, dest, g.poolInt(n.Value), 0))
	}
	g.settle(dest)
	return nil
}

func (g *gen) VisitFloat(n *rast.FloatNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadL, dest, g.poolFloat(n.Value), 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitString(n *rast.StringNode) error {
	dest, err := g.compileStringParts(n.Parts, n.Kind == rast.StringPlain)
	if err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

// compileStringParts lowers a literal/interpolated string's Parts; a
// single literal-only part with plain kind uses LOADL so repeated
// evaluations of the same literal (a loop body) share one pooled
// object (spec.md §4.4 "Literal pooling"); interpolated strings build
// a fresh mutable buffer with STRING and grow it with STRCAT/to_s.
func (g *gen) compileStringParts(parts []rast.StringPart, plain bool) (int32, error) {
	if plain && len(parts) <= 1 {
		lit := ""
		if len(parts) == 1 {
			lit = parts[0].Literal
		}
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpLoadL, dest, g.poolString(lit), 0))
		return dest, nil
	}
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpString, dest, g.poolString(""), 0))
	for _, p := range parts {
		if p.Expr == nil {
			if p.Literal == "" {
				continue // peephole rule: STRCAT with an empty literal is a no-op
			}
			t := g.alloc()
			g.emit(rirepInst(rvm.OpString, t, g.poolString(p.Literal), 0))
			g.emit(rirepInst(rvm.OpStrCat, dest, t, 0))
			g.free(t)
			continue
		}
		t, err := g.compileExpr(p.Expr)
		if err != nil {
			return 0, err
		}
		g.emit(rirepInst(rvm.OpSend, t, g.symIdx("to_s"), 0))
		g.emit(rirepInst(rvm.OpStrCat, dest, t, 0))
		g.free(t)
	}
	return dest, nil
}

func (g *gen) VisitRegexp(n *rast.RegexpNode) error {
	// No REGEXP opcode exists in this VM's instruction set (spec.md
	// §4.5's aggregate group omits one); regex literals lower to their
	// source text as a plain string.
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadL, dest, g.poolString(n.Source), 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitSymbol(n *rast.SymbolNode) error {
	if n.Parts == nil {
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpLoadSym, dest, int32(g.symbols.Intern(n.Name)), 0))
		g.settle(dest)
		return nil
	}
	dest, err := g.compileStringParts(n.Parts, false)
	if err != nil {
		return err
	}
	g.emit(rirepInst(rvm.OpSend, dest, g.symIdx("to_sym"), 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitWords(n *rast.WordsNode) error {
	base := g.sp
	for _, w := range n.Words {
		t := g.alloc()
		if n.Symbols {
			g.emit(rirepInst(rvm.OpLoadSym, t, int32(g.symbols.Intern(w)), 0))
		} else {
			g.emit(rirepInst(rvm.OpLoadL, t, g.poolString(w), 0))
		}
	}
	g.emit(rirepInst(rvm.OpArray, base, int32(len(n.Words)), 0))
	g.settle(base)
	return nil
}

func (g *gen) VisitNil(n *rast.NilNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitTrue(n *rast.TrueNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadT, dest, 0, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitFalse(n *rast.FalseNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadF, dest, 0, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitSelf(n *rast.SelfNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadSelf, dest, 0, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitVar(n *rast.VarNode) error {
	switch n.Kind {
	case rast.VarLocal:
		if idx, lv, ok := g.lookupLocal(n.Name); ok {
			if lv == 0 {
				g.last = idx
				return nil
			}
			dest := g.alloc()
			g.emit(rirepInst(rvm.OpGetUpvar, dest, idx, int32(lv)))
			g.settle(dest)
			return nil
		}
		// Not a known local anywhere in the lexical chain: a bare
		// identifier that parses as VarLocal but resolves as a
		// zero-arg method call on self, same as real Ruby's
		// parse-time ambiguity resolution.
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpFSend, dest, g.symIdx(n.Name), 0))
		g.settle(dest)
		return nil
	case rast.VarInstance:
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpGetIV, dest, int32(g.symbols.Intern(n.Name)), 0))
		g.settle(dest)
		return nil
	case rast.VarClass:
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpGetCV, dest, int32(g.symbols.Intern(n.Name)), 0))
		g.settle(dest)
		return nil
	case rast.VarGlobal:
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpGetGlobal, dest, int32(g.symbols.Intern(n.Name)), 0))
		g.settle(dest)
		return nil
	case rast.VarConstant, rast.VarColon3:
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpGetConst, dest, int32(g.symbols.Intern(n.Name)), 0))
		g.settle(dest)
		return nil
	case rast.VarColon2:
		scope, err := g.compileExpr(n.Scope)
		if err != nil {
			return err
		}
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpGetMConst, dest, scope, int32(g.symbols.Intern(n.Name))))
		g.settle(dest)
		return nil
	}
	return errAt(n, "unknown variable kind")
}

func (g *gen) VisitBackRef(n *rast.BackRefNode) error {
	// No GETSPECIAL opcode exists; back-references lower to nil.
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
	g.settle(dest)
	return nil
}

func hasSplat(items []rast.Node) bool {
	for _, it := range items {
		if _, ok := it.(*rast.SplatNode); ok {
			return true
		}
	}
	return false
}

func (g *gen) VisitArray(n *rast.ArrayNode) error {
	if hasSplat(n.Items) {
		return g.compileSplatCollection(n.Items)
	}
	base := g.sp
	for _, it := range n.Items {
		if _, err := g.compileIntoSlot(it); err != nil {
			return err
		}
	}
	g.emit(rirepInst(rvm.OpArray, base, int32(len(n.Items)), 0))
	g.settle(base)
	return nil
}

// compileSplatCollection lowers an array literal containing one or
// more `*expr` entries: start from an empty array and grow it with
// ARYCAT (splat) / ARYPUSH (plain item) left to right.
func (g *gen) compileSplatCollection(items []rast.Node) error {
	dest := g.alloc()
	if err := g.compileSplatArrayInto(dest, items); err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

// compileSplatArrayInto builds a single Array out of items (a mix of
// plain expressions and `*expr` splats) into the already-reserved
// register dest, for both array literals and a splat call's bundled
// argument list (spec.md §4.4 "splat-call convention").
func (g *gen) compileSplatArrayInto(dest int32, items []rast.Node) error {
	g.emit(rirepInst(rvm.OpArray, dest, 0, 0))
	for _, it := range items {
		if sp, ok := it.(*rast.SplatNode); ok {
			v, err := g.compileExpr(sp.Value)
			if err != nil {
				return err
			}
			g.emit(rirepInst(rvm.OpAryCat, dest, v, 0))
			g.free(dest + 1)
			continue
		}
		v, err := g.compileExpr(it)
		if err != nil {
			return err
		}
		g.emit(rirepInst(rvm.OpAryPush, dest, v, 0))
		g.free(dest + 1)
	}
	return nil
}

func (g *gen) VisitHash(n *rast.HashNode) error {
	base := g.sp
	for _, p := range n.Pairs {
		if _, err := g.compileIntoSlot(p.Key); err != nil {
			return err
		}
		if _, err := g.compileIntoSlot(p.Value); err != nil {
			return err
		}
	}
	g.emit(rirepInst(rvm.OpHash, base, int32(len(n.Pairs)), 0))
	g.settle(base)
	return nil
}

func (g *gen) VisitSplat(n *rast.SplatNode) error {
	if n.Value == nil {
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
		g.settle(dest)
		return nil
	}
	r, err := g.compileExpr(n.Value)
	if err != nil {
		return err
	}
	g.settle(r)
	return nil
}

func (g *gen) VisitRange(n *rast.RangeNode) error {
	lo, err := g.compileIntoSlot(n.Low)
	if err != nil {
		return err
	}
	if _, err := g.compileIntoSlot(n.High); err != nil {
		return err
	}
	excl := int32(0)
	if n.Exclusive {
		excl = 1
	}
	g.emit(rirepInst(rvm.OpRange, lo, 0, excl))
	g.settle(lo)
	return nil
}

func (g *gen) VisitNegate(n *rast.NegateNode) error {
	if iv, ok := n.Value.(*rast.IntNode); ok {
		dest := g.alloc()
		neg := -iv.Value
		if int64(int32(neg)) == neg {
			g.emit(rirepInst(rvm.OpLoadI, dest, int32(neg), 0))
		} else {
			g.emit(rirepInst(rvm.OpLoadL, dest, g.poolInt(neg), 0))
		}
		g.settle(dest)
		return nil
	}
	if fv, ok := n.Value.(*rast.FloatNode); ok {
		dest := g.alloc()
		g.emit(rirepInst(rvm.OpLoadL, dest, g.poolFloat(-fv.Value), 0))
		g.settle(dest)
		return nil
	}
	t, err := g.compileExpr(n.Value)
	if err != nil {
		return err
	}
	g.emit(rirepInst(rvm.OpSend, t, g.symIdx("-@"), 0))
	g.settle(t)
	return nil
}

func (g *gen) VisitPostExe(n *rast.PostExeNode) error {
	// No deferred-execution registry exists in this VM; END blocks run
	// inline at the point they're declared.
	return g.compileBody(n.Body, g.alloc())
}

func (g *gen) VisitHeredoc(n *rast.HeredocNode) error {
	dest, err := g.compileStringParts(n.Parts, false)
	if err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

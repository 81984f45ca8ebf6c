package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rvm"
)

// compileBody compiles a statement sequence, landing the value of the
// last statement (or nil, for an empty body) in dest; every earlier
// statement's result is discarded. Callers must alloc dest immediately
// before calling this (spec.md §4.4: "a statement sequence reuses one
// temporary slot across its members").
func (g *gen) compileBody(stmts []rast.Node, dest int32) error {
	base := dest + 1
	if len(stmts) == 0 {
		g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
		g.last = dest
		return nil
	}
	for i, s := range stmts {
		g.free(base)
		if i == len(stmts)-1 {
			return g.compileInto(dest, s)
		}
		if _, err := g.compileExpr(s); err != nil {
			return err
		}
	}
	return nil
}

func (g *gen) VisitIf(n *rast.IfNode) error {
	cond, err := g.compileExpr(n.Cond)
	if err != nil {
		return err
	}
	g.free(cond)
	dest := g.alloc()

	jmpNotAt := g.emit(rirepInst(rvm.OpJmpNot, cond, 0, 0))
	if err := g.compileBody(n.Then, dest); err != nil {
		return err
	}
	jmpEndAt := g.emit(rirepInst(rvm.OpJmp, 0, 0, 0))

	elseLabel := g.label()
	g.markTarget(elseLabel)
	g.patchJmp(jmpNotAt, elseLabel)
	if err := g.compileBody(n.Else, dest); err != nil {
		return err
	}

	endLabel := g.label()
	g.markTarget(endLabel)
	g.patchJmp(jmpEndAt, endLabel)

	g.settle(dest)
	return nil
}

// VisitCase lowers both subject-form (`case x; when 1, 2`) and
// subject-less (`case; when cond`) case statements. Subject-form
// compares each `when` value against the subject with `===` (spec.md
// §4.4 "case equality"); subject-less form tests each condition's
// truthiness directly, the way a chain of elsif does.
func (g *gen) VisitCase(n *rast.CaseNode) error {
	dest := g.alloc()
	subjReg := int32(-1)
	if n.Subject != nil {
		r, err := g.compileExpr(n.Subject)
		if err != nil {
			return err
		}
		subjReg = r
	}

	var endPatches []int
	skipAt := -1

	for _, w := range n.Whens {
		if skipAt >= 0 {
			g.patchJmp(skipAt, g.label())
			skipAt = -1
		}
		var matchJumps []int
		if len(w.Conds) > 0 {
			for _, c := range w.Conds {
				var test int32
				if subjReg >= 0 {
					r, err := g.compileIntoSlot(c)
					if err != nil {
						return err
					}
					arg := g.alloc()
					g.emit(rirepInst(rvm.OpMove, arg, subjReg, 0))
					g.emit(rirepInst(rvm.OpSend, r, g.symIdx("==="), 1))
					g.free(r + 1)
					test = r
				} else {
					r, err := g.compileExpr(c)
					if err != nil {
						return err
					}
					test = r
				}
				matchJumps = append(matchJumps, g.emit(rirepInst(rvm.OpJmpIf, test, 0, 0)))
				g.free(test)
			}
			skipAt = g.emit(rirepInst(rvm.OpJmp, 0, 0, 0))
		}

		bodyLabel := g.label()
		g.markTarget(bodyLabel)
		for _, at := range matchJumps {
			g.patchJmp(at, bodyLabel)
		}
		bodyDest := g.alloc()
		if err := g.compileBody(w.Body, bodyDest); err != nil {
			return err
		}
		g.emit(rirepInst(rvm.OpMove, dest, bodyDest, 0))
		g.free(bodyDest)
		endPatches = append(endPatches, g.emit(rirepInst(rvm.OpJmp, 0, 0, 0)))
	}
	if skipAt >= 0 {
		g.patchJmp(skipAt, g.label())
	}
	g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))

	endLabel := g.label()
	g.markTarget(endLabel)
	for _, at := range endPatches {
		g.patchJmp(at, endLabel)
	}
	if subjReg >= 0 {
		g.free(subjReg)
	}
	g.settle(dest)
	return nil
}

// VisitWhile lowers both pre-test (`while`/`until`) and post-test
// (`begin...end while`) loops to the same shape: an optional jump
// straight into the body for the post-test form, a head that retests
// the condition, and a body that redo jumps back into directly
// (spec.md §4.4 "loop: ... pcs for break/next/redo").
func (g *gen) VisitWhile(n *rast.WhileNode) error {
	dest := g.alloc()
	lp := g.pushLoop("while")

	skipAt := -1
	if n.DoFirst {
		skipAt = g.emit(rirepInst(rvm.OpJmp, 0, 0, 0))
	}

	headLabel := g.label()
	g.markTarget(headLabel)
	lp.nextTarget = int(headLabel)

	cond, err := g.compileExpr(n.Cond)
	if err != nil {
		return err
	}
	exitOp := byte(rvm.OpJmpNot)
	if n.Until {
		exitOp = rvm.OpJmpIf
	}
	exitAt := g.emit(rirepInst(exitOp, cond, 0, 0))
	g.free(cond)

	bodyLabel := g.label()
	g.markTarget(bodyLabel)
	lp.redoTarget = int(bodyLabel)
	if skipAt >= 0 {
		g.patchJmp(skipAt, bodyLabel)
	}

	bodyDest := g.alloc()
	if err := g.compileBody(n.Body, bodyDest); err != nil {
		return err
	}
	g.free(bodyDest)
	g.emit(rirepInst(rvm.OpJmp, 0, headLabel, 0))

	exitLabel := g.label()
	g.markTarget(exitLabel)
	g.patchJmp(exitAt, exitLabel)
	for _, at := range lp.breakPatches {
		g.patchJmp(at, exitLabel)
	}
	g.popLoop()

	g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
	g.settle(dest)
	return nil
}

// VisitFor lowers `for x in iter; body; end` to an `each` send with a
// block built from body, the closest the register VM's opcode set
// gets to a native iteration construct. Unlike a block literal, a
// `for` loop's variables are not fresh per-iteration locals in Ruby,
// but giving them their own child scope here is a deliberate, noted
// simplification (DESIGN.md) traded for reusing the LAMBDA/SENDB path
// blocks already need.
func (g *gen) VisitFor(n *rast.ForNode) error {
	dest := g.alloc()
	iterReg, err := g.compileExpr(n.Iter)
	if err != nil {
		return err
	}
	g.free(iterReg + 1)
	blockReg := g.alloc()

	child := newGen(g.symbols, g)
	for _, v := range n.Vars {
		if vn, ok := v.(*rast.VarNode); ok {
			child.declareLocal(vn.Name)
		}
	}
	lp := child.pushLoop("for")
	bodyDest := child.alloc()
	if err := child.compileBody(n.Body, bodyDest); err != nil {
		return err
	}
	exitLabel := child.label()
	child.markTarget(exitLabel)
	for _, at := range lp.breakPatches {
		child.patchJmp(at, exitLabel)
	}
	child.popLoop()
	child.emit(rirepInst(rvm.OpReturn, bodyDest, int32(rvm.ReturnNormal), 0))
	kidIdx := g.addKid(child.finish())

	g.emit(rirepInst(rvm.OpLambda, blockReg, kidIdx, 0))
	g.emit(rirepInst(rvm.OpSendB, iterReg, g.symIdx("each"), 0))
	g.emit(rirepInst(rvm.OpMove, dest, iterReg, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitJump(n *rast.JumpNode) error {
	lp := g.currentLoop()
	if lp == nil {
		return errAt(n, n.String()+" used outside of a loop")
	}
	switch n.Kind {
	case rast.JumpBreak:
		// The break value is evaluated for side effects only; it is not
		// threaded out to the loop's own result register, so a
		// while/until loop resolves to nil and a `for` loop to whatever
		// its `each` call returns (DESIGN.md).
		if n.Value != nil {
			before := g.sp
			if _, err := g.compileExpr(n.Value); err != nil {
				return err
			}
			g.free(before)
		}
		at := g.emit(rirepInst(rvm.OpJmp, 0, 0, 0))
		lp.breakPatches = append(lp.breakPatches, at)
	case rast.JumpNext:
		g.emit(rirepInst(rvm.OpJmp, 0, int32(lp.nextTarget), 0))
	case rast.JumpRedo, rast.JumpRetry:
		g.emit(rirepInst(rvm.OpJmp, 0, int32(lp.redoTarget), 0))
	}
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLoadNil, dest, 0, 0))
	g.settle(dest)
	return nil
}

func (g *gen) VisitReturn(n *rast.ReturnNode) error {
	var val int32
	if n.Value != nil {
		r, err := g.compileExpr(n.Value)
		if err != nil {
			return err
		}
		val = r
	} else {
		val = g.alloc()
		g.emit(rirepInst(rvm.OpLoadNil, val, 0, 0))
	}
	g.emit(rirepInst(rvm.OpReturn, val, int32(rvm.ReturnReturn), 0))
	g.settle(val)
	return nil
}

func (g *gen) VisitAnd(n *rast.AndNode) error {
	dest, err := g.compileIntoSlot(n.Left)
	if err != nil {
		return err
	}
	shortAt := g.emit(rirepInst(rvm.OpJmpNot, dest, 0, 0))
	if err := g.compileInto(dest, n.Right); err != nil {
		return err
	}
	end := g.label()
	g.markTarget(end)
	g.patchJmp(shortAt, end)
	g.settle(dest)
	return nil
}

func (g *gen) VisitOr(n *rast.OrNode) error {
	dest, err := g.compileIntoSlot(n.Left)
	if err != nil {
		return err
	}
	shortAt := g.emit(rirepInst(rvm.OpJmpIf, dest, 0, 0))
	if err := g.compileInto(dest, n.Right); err != nil {
		return err
	}
	end := g.label()
	g.markTarget(end)
	g.patchJmp(shortAt, end)
	g.settle(dest)
	return nil
}

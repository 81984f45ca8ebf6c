package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rvm"
)

// VisitBegin lowers begin/rescue/else/ensure. An ensure body compiles
// to its own child IREP, pushed with EPUSH before the protected region
// and popped (which runs it) with EPOP on every path out: normal
// completion, a matched rescue clause, and — implicitly, via the
// unwind algorithm's own runPendingEnsures sweep — an unhandled or
// re-raised exception, so EPOP is only emitted explicitly on the two
// paths that don't already go through that sweep.
//
// A rescue clause's exception classes are tested with `cls === exc`,
// the same case-equality VisitCase uses; an empty Classes list (a bare
// `rescue`) matches unconditionally rather than being narrowed to
// StandardError, a simplification noted in DESIGN.md. The `else`
// clause is compiled while the rescue handler is still technically
// active (POPERR runs after it, not before), so an exception raised
// from `else` would incorrectly be caught by this same begin's own
// rescue clauses — another noted simplification.
func (g *gen) VisitBegin(n *rast.BeginNode) error {
	dest := g.alloc()
	hasEnsure := len(n.Ensure) > 0
	hasRescue := len(n.Rescues) > 0

	if hasEnsure {
		child := newGen(g.symbols, g)
		ed := child.alloc()
		if err := child.compileBody(n.Ensure, ed); err != nil {
			return err
		}
		child.emit(rirepInst(rvm.OpReturn, ed, int32(rvm.ReturnNormal), 0))
		kidIdx := g.addKid(child.finish())
		g.emit(rirepInst(rvm.OpEPush, 0, kidIdx, 0))
	}

	onErrAt := -1
	if hasRescue {
		onErrAt = g.emit(rirepInst(rvm.OpOnErr, 0, 0, 0))
	}

	if err := g.compileBody(n.Body, dest); err != nil {
		return err
	}
	if len(n.Else) > 0 {
		if err := g.compileBody(n.Else, dest); err != nil {
			return err
		}
	}
	if hasRescue {
		g.emit(rirepInst(rvm.OpPopErr, 1, 0, 0))
	}
	if hasEnsure {
		g.emit(rirepInst(rvm.OpEPop, 1, 0, 0))
	}

	var endPatches []int
	endPatches = append(endPatches, g.emit(rirepInst(rvm.OpJmp, 0, 0, 0)))

	if hasRescue {
		rescueLabel := g.label()
		g.markTarget(rescueLabel)
		// ONERR's B is PC-relative to the instruction after itself
		// (rvm.execSend's sibling case, OpOnErr: `ci.PC + int(inst.B)`,
		// where ci.PC has already advanced past ONERR when it runs).
		g.code[onErrAt].B = rescueLabel - int32(onErrAt) - 1

		excReg := g.alloc()
		g.emit(rirepInst(rvm.OpRescue, excReg, 0, 0))

		skipAt := -1
		for _, rc := range n.Rescues {
			if skipAt >= 0 {
				next := g.label()
				g.markTarget(next)
				g.patchJmp(skipAt, next)
				skipAt = -1
			}
			var matchJumps []int
			if len(rc.Classes) > 0 {
				for _, c := range rc.Classes {
					cls, err := g.compileIntoSlot(c)
					if err != nil {
						return err
					}
					arg := g.alloc()
					g.emit(rirepInst(rvm.OpMove, arg, excReg, 0))
					g.emit(rirepInst(rvm.OpSend, cls, g.symIdx("==="), 1))
					g.free(cls + 1)
					matchJumps = append(matchJumps, g.emit(rirepInst(rvm.OpJmpIf, cls, 0, 0)))
					g.free(cls)
				}
				skipAt = g.emit(rirepInst(rvm.OpJmp, 0, 0, 0))
			}

			clauseLabel := g.label()
			g.markTarget(clauseLabel)
			for _, at := range matchJumps {
				g.patchJmp(at, clauseLabel)
			}
			if rc.VarName != "" {
				idx := g.declareLocal(rc.VarName)
				g.emit(rirepInst(rvm.OpMove, idx, excReg, 0))
			}
			clauseDest := g.alloc()
			if err := g.compileBody(rc.Body, clauseDest); err != nil {
				return err
			}
			g.emit(rirepInst(rvm.OpMove, dest, clauseDest, 0))
			g.free(clauseDest)
			if hasEnsure {
				g.emit(rirepInst(rvm.OpEPop, 1, 0, 0))
			}
			endPatches = append(endPatches, g.emit(rirepInst(rvm.OpJmp, 0, 0, 0)))
		}
		if skipAt >= 0 {
			g.patchJmp(skipAt, g.label())
		}
		// No clause matched: re-raise. The still-pending EPUSH entry (if
		// any) is swept by whichever frame's unwindToRescue or RETURN
		// eventually runs runPendingEnsures, not by an explicit EPOP
		// here.
		g.emit(rirepInst(rvm.OpRaise, excReg, 0, 0))
		g.free(excReg)
	}

	endLabel := g.label()
	g.markTarget(endLabel)
	for _, at := range endPatches {
		g.patchJmp(at, endLabel)
	}
	g.settle(dest)
	return nil
}

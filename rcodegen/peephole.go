package rcodegen

import (
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rvm"
)

func rirepInst(op byte, a, b, c int32) rirep.Inst {
	return rirep.Inst{Op: op, A: a, B: b, C: c}
}

// markTarget records pc as the target of some jump, so peephole never
// collapses the instruction sitting there into its predecessor (spec.md
// §4.4 "Peephole never fires across a label").
func (g *gen) markTarget(pc int32) {
	if g.targets == nil {
		g.targets = map[int32]bool{}
	}
	g.targets[pc] = true
}

func (g *gen) isTarget(pc int32) bool { return g.targets != nil && g.targets[pc] }

// peephole inspects the last two instructions after every emit and
// collapses the pairs spec.md §4.4 lists that are safe without a full
// liveness analysis: a MOVE immediately undoing the previous
// instruction's destination, and ADD/SUB immediately following a
// LOADI of the same operand becoming ADDI/SUBI.
func (g *gen) peephole() {
	n := len(g.code)
	if n < 2 {
		return
	}
	cur := g.code[n-1]
	prevIdx := n - 2
	prev := g.code[prevIdx]

	if g.isTarget(int32(prevIdx)) || g.isTarget(int32(n-1)) {
		return
	}

	switch cur.Op {
	case rvm.OpMove:
		if prevOpHasDest(prev.Op) && prev.A == cur.B {
			g.code[prevIdx].A = cur.A
			g.code = g.code[:n-1]
		}
	case rvm.OpAdd, rvm.OpSub:
		if prev.Op == rvm.OpLoadI && prev.A == cur.B {
			imm := prev.B
			newOp := byte(rvm.OpAddI)
			if cur.Op == rvm.OpSub {
				newOp = rvm.OpSubI
			}
			g.code[prevIdx] = rirepInst(newOp, cur.A, cur.A, imm)
			g.code = g.code[:n-1]
		}
	case rvm.OpEPop, rvm.OpPopErr:
		if prev.Op == cur.Op {
			g.code[prevIdx].A += cur.A
			g.code = g.code[:n-1]
		}
	}
}

func prevOpHasDest(op byte) bool {
	switch op {
	case rvm.OpJmp, rvm.OpJmpIf, rvm.OpJmpNot, rvm.OpSetGlobal, rvm.OpSetIV, rvm.OpSetCV,
		rvm.OpSetConst, rvm.OpSetMConst, rvm.OpSetUpvar, rvm.OpASet, rvm.OpEnter,
		rvm.OpOnErr, rvm.OpPopErr, rvm.OpRaise, rvm.OpEPush, rvm.OpEPop, rvm.OpReturn,
		rvm.OpTailCall, rvm.OpStop, rvm.OpErr, rvm.OpNop:
		return false
	default:
		return true
	}
}

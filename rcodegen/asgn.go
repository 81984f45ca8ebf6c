package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rvm"
)

// compileStore emits the write half of an assignment: value (already
// compiled into valueReg) is stored into target. Register/global/ivar/
// cvar/const opcodes all take the value register as A and the raw
// interned symbol id as B (not an index into the per-IREP Syms pool,
// unlike SEND/METHOD/OCLASS's B operand) (rvm/dispatch.go's Get*/Set*
// cases).
func (g *gen) compileStore(target rast.Node, valueReg int32) error {
	switch t := target.(type) {
	case *rast.VarNode:
		switch t.Kind {
		case rast.VarLocal:
			idx := g.declareLocal(t.Name)
			if idx != valueReg {
				g.emit(rirepInst(rvm.OpMove, idx, valueReg, 0))
			}
			return nil
		case rast.VarInstance:
			g.emit(rirepInst(rvm.OpSetIV, valueReg, int32(g.symbols.Intern(t.Name)), 0))
			return nil
		case rast.VarClass:
			g.emit(rirepInst(rvm.OpSetCV, valueReg, int32(g.symbols.Intern(t.Name)), 0))
			return nil
		case rast.VarGlobal:
			g.emit(rirepInst(rvm.OpSetGlobal, valueReg, int32(g.symbols.Intern(t.Name)), 0))
			return nil
		case rast.VarConstant, rast.VarColon3:
			g.emit(rirepInst(rvm.OpSetConst, valueReg, int32(g.symbols.Intern(t.Name)), 0))
			return nil
		case rast.VarColon2:
			scope, err := g.compileExpr(t.Scope)
			if err != nil {
				return err
			}
			g.emit(rirepInst(rvm.OpSetMConst, valueReg, scope, int32(g.symbols.Intern(t.Name))))
			g.free(scope)
			return nil
		}
	case *rast.CallNode:
		return g.compileAttrStore(t, valueReg)
	}
	return errAt(target, "invalid assignment target")
}

// compileAttrStore handles `recv.attr = v` (Name has no trailing `=`;
// codegen appends it) and `recv[idx] = v` (Name == "[]", rewritten to
// "[]=" with idx and v as its two arguments), the two CallNode shapes
// the parser produces for an assignable attribute/index target.
func (g *gen) compileAttrStore(t *rast.CallNode, valueReg int32) error {
	recv, err := g.compileExpr(t.Recv)
	if err != nil {
		return err
	}
	g.free(recv + 1)

	name := t.Name + "="
	if t.Name == "[]" {
		name = "[]="
	}

	for _, a := range t.Args {
		if _, err := g.compileIntoSlot(a); err != nil {
			return err
		}
	}
	arg := g.alloc()
	g.emit(rirepInst(rvm.OpMove, arg, valueReg, 0))
	argc := int32(len(t.Args)) + 1
	g.emit(rirepInst(rvm.OpSend, recv, g.symIdx(name), argc))
	g.free(recv + 1)
	return nil
}

// compileLoad is compileStore's read-side counterpart, used by
// OpAsgn's `lhs OP= rhs` read-modify-write lowering. It always forces
// the loaded value into a freshly owned register (compileIntoSlot),
// since a bare local-variable read would otherwise hand back the
// local's own, possibly non-adjacent register, breaking the
// contiguous-operand layout the following SEND needs.
func (g *gen) compileLoad(target rast.Node) (int32, error) {
	return g.compileIntoSlot(target)
}

func (g *gen) VisitAsgn(n *rast.AsgnNode) error {
	val, err := g.compileExpr(n.Value)
	if err != nil {
		return err
	}
	if err := g.compileStore(n.Target, val); err != nil {
		return err
	}
	g.settle(val)
	return nil
}

// VisitMAsgn lowers `a, b, *c = rhs`. The rhs is not coerced to an
// Array (this VM's opcode set has no coercion opcode), so it is used as
// evaluated. Targets before the splat (every target, when there is no
// splat) are read with AREF; targets after the splat are filled by one
// APOST from the rhs's trailing elements.
func (g *gen) VisitMAsgn(n *rast.MAsgnNode) error {
	rhs, err := g.compileExpr(n.Value)
	if err != nil {
		return err
	}
	g.free(rhs + 1)

	splatIdx := -1
	for i, t := range n.Targets {
		if _, ok := t.(*rast.SplatNode); ok {
			splatIdx = i
			break
		}
	}

	if splatIdx < 0 {
		for i, t := range n.Targets {
			item := g.alloc()
			g.emit(rirepInst(rvm.OpARef, item, rhs, int32(i)))
			if err := g.compileStore(t, item); err != nil {
				return err
			}
			g.free(item)
		}
		g.settle(rhs)
		return nil
	}

	for i := 0; i < splatIdx; i++ {
		item := g.alloc()
		g.emit(rirepInst(rvm.OpARef, item, rhs, int32(i)))
		if err := g.compileStore(n.Targets[i], item); err != nil {
			return err
		}
		g.free(item)
	}
	after := n.Targets[splatIdx+1:]
	if len(after) > 0 {
		base := g.alloc()
		g.free(base + int32(len(after)))
		g.emit(rirepInst(rvm.OpAPost, rhs, int32(len(after)), base))
		for i, t := range after {
			if err := g.compileStore(t, base+int32(i)); err != nil {
				return err
			}
		}
	}
	if sp, ok := n.Targets[splatIdx].(*rast.SplatNode); ok && sp.Value != nil {
		rest := g.alloc()
		g.emit(rirepInst(rvm.OpArray, rest, 0, 0))
		g.emit(rirepInst(rvm.OpAryCat, rest, rhs, 0))
		if err := g.compileStore(sp.Value, rest); err != nil {
			return err
		}
		g.free(rest)
	}
	g.settle(rhs)
	return nil
}

// VisitOpAsgn lowers `lhs OP= rhs` to a read, a binary SEND of Op, and
// a store. `||=`/`&&=` never reach here — this parser produces those as
// a plain AsgnNode whose Value is an OrNode/AndNode re-reading the
// same target, which VisitAsgn and VisitOr/VisitAnd already handle
// with correct short-circuiting, so an empty Op here is a parser bug,
// not a case codegen needs to special-case.
func (g *gen) VisitOpAsgn(n *rast.OpAsgnNode) error {
	if n.Op == "" {
		return errAt(n, "op-assign with no operator")
	}
	cur, err := g.compileLoad(n.Target)
	if err != nil {
		return err
	}
	g.free(cur + 1)
	if err := g.compileInto(cur+1, n.Value); err != nil {
		return err
	}
	g.emit(rirepInst(rvm.OpSend, cur, g.symIdx(n.Op), 1))
	g.free(cur + 1)
	if err := g.compileStore(n.Target, cur); err != nil {
		return err
	}
	g.settle(cur)
	return nil
}

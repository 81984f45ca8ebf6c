package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rvm"
)

// classNameOf extracts the single symbol name OCLASS/CLASS/MODULE
// take as their B operand. A Colon2 chain (`Outer::Inner`) collapses
// to its last segment, opening/reopening directly under the current
// lexical scope rather than threading through Outer explicitly — this
// VM's class opcodes carry no operand for an explicit outer scope
// besides the frame's own TargetClass (DESIGN.md).
func classNameOf(n rast.Node) (string, error) {
	v, ok := n.(*rast.VarNode)
	if !ok {
		return "", &CodegenError{Message: "class/module name is not a constant reference", Pos: n.Pos()}
	}
	return v.Name, nil
}

func (g *gen) compileMethodBody(params []rast.Param, body []rast.Node) (int32, error) {
	child := newGen(g.symbols, g)
	child.params = paramSpecOf(child, params)
	child.emit(rirepInst(rvm.OpEnter, 0, 0, 0))
	if err := compileParamDefaults(child, params); err != nil {
		return 0, err
	}
	bodyDest := child.alloc()
	if err := child.compileBody(body, bodyDest); err != nil {
		return 0, err
	}
	child.emit(rirepInst(rvm.OpReturn, bodyDest, int32(rvm.ReturnReturn), 0))
	return g.addKid(child.finish()), nil
}

func (g *gen) VisitDef(n *rast.DefNode) error {
	kidIdx, err := g.compileMethodBody(n.Params, n.Body)
	if err != nil {
		return err
	}
	proc := g.alloc()
	g.emit(rirepInst(rvm.OpLambda, proc, kidIdx, 0))
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpMethod, dest, g.symIdx(n.Name), proc))
	g.free(proc)
	g.settle(dest)
	return nil
}

// VisitSDef lowers `def recv.name`/`def self.name` by opening recv's
// singleton class and defining the method there, the same SCLASS
// opcode `class << recv ... end` uses.
func (g *gen) VisitSDef(n *rast.SDefNode) error {
	recv, err := g.compileExpr(n.Recv)
	if err != nil {
		return err
	}
	sclass := g.alloc()
	g.emit(rirepInst(rvm.OpSClass, sclass, recv, 0))
	g.free(recv)

	kidIdx, err := g.compileMethodBody(n.Params, n.Body)
	if err != nil {
		return err
	}
	proc := g.alloc()
	g.emit(rirepInst(rvm.OpLambda, proc, kidIdx, 0))
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpMethod, dest, g.symIdx(n.Name), proc))
	g.free(sclass)
	g.settle(dest)
	return nil
}

func (g *gen) compileScopeBody(dest int32, body []rast.Node) error {
	child := newGen(g.symbols, g)
	bodyDest := child.alloc()
	if err := child.compileBody(body, bodyDest); err != nil {
		return err
	}
	child.emit(rirepInst(rvm.OpReturn, bodyDest, int32(rvm.ReturnNormal), 0))
	kidIdx := g.addKid(child.finish())
	g.emit(rirepInst(rvm.OpExec, dest, kidIdx, 0))
	return nil
}

func (g *gen) VisitClass(n *rast.ClassNode) error {
	name, err := classNameOf(n.Name)
	if err != nil {
		return err
	}
	dest := g.alloc()
	if n.Super != nil {
		superReg, err := g.compileExpr(n.Super)
		if err != nil {
			return err
		}
		g.emit(rirepInst(rvm.OpClass, dest, g.symIdx(name), superReg))
		g.free(dest + 1)
	} else {
		g.emit(rirepInst(rvm.OpOClass, dest, g.symIdx(name), 0))
	}
	if err := g.compileScopeBody(dest, n.Body); err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

func (g *gen) VisitModule(n *rast.ModuleNode) error {
	name, err := classNameOf(n.Name)
	if err != nil {
		return err
	}
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpModule, dest, g.symIdx(name), 0))
	if err := g.compileScopeBody(dest, n.Body); err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

func (g *gen) VisitSClass(n *rast.SClassNode) error {
	recv, err := g.compileExpr(n.Recv)
	if err != nil {
		return err
	}
	g.free(recv)
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpSClass, dest, recv, 0))
	if err := g.compileScopeBody(dest, n.Body); err != nil {
		return err
	}
	g.settle(dest)
	return nil
}

// VisitAlias/VisitUndef have no dedicated opcode (spec.md's set names
// a fixed opcode list with no ALIAS/UNDEF entry); both lower to a
// method-table-manipulating send on the current scope class, the same
// trick Ruby itself exposes as `Module#alias_method`/`#undef_method`.
func (g *gen) VisitAlias(n *rast.AliasNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpTClass, dest, 0, 0))
	newSym := g.alloc()
	g.emit(rirepInst(rvm.OpLoadSym, newSym, int32(g.symbols.Intern(n.NewName)), 0))
	oldSym := g.alloc()
	g.emit(rirepInst(rvm.OpLoadSym, oldSym, int32(g.symbols.Intern(n.OldName)), 0))
	g.emit(rirepInst(rvm.OpSend, dest, g.symIdx("alias_method"), 2))
	g.settle(dest)
	return nil
}

func (g *gen) VisitUndef(n *rast.UndefNode) error {
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpTClass, dest, 0, 0))
	for _, name := range n.Names {
		arg := g.alloc()
		g.emit(rirepInst(rvm.OpLoadSym, arg, int32(g.symbols.Intern(name)), 0))
		g.emit(rirepInst(rvm.OpSend, dest, g.symIdx("undef_method"), 1))
		g.free(dest + 1)
	}
	g.settle(dest)
	return nil
}

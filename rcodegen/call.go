package rcodegen

import (
	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rvm"
)

// compileArgs lowers a call's argument list starting at the current
// sp, returning the argc operand to encode and whether it represents
// a bundled (splat) argv (spec.md §4.4 "splat-call convention"). The
// first argument's register is always g.sp on entry: callers that need
// a receiver slot before it must alloc that first.
func (g *gen) compileArgs(args []rast.Node) (int32, bool, error) {
	if hasSplat(args) {
		dest := g.alloc()
		if err := g.compileSplatArrayInto(dest, args); err != nil {
			return 0, false, err
		}
		g.settle(dest)
		return 1, true, nil
	}
	for _, a := range args {
		if _, err := g.compileIntoSlot(a); err != nil {
			return 0, false, err
		}
	}
	return int32(len(args)), false, nil
}

func argcOperand(argc int32, bundled bool) int32 {
	if bundled {
		return rvm.SendArgcBundled
	}
	return argc
}

// compileBlockArg lowers a call's attached block (a do...end/{...} or
// a &proc reference) into the register immediately following the
// call's arguments, where SENDB expects to find it.
func (g *gen) compileBlockArg(n rast.Node) error {
	_, err := g.compileIntoSlot(n)
	return err
}

func (g *gen) VisitCall(n *rast.CallNode) error {
	if n.Recv == nil && n.Block == nil {
		base := g.sp
		argc, bundled, err := g.compileArgs(n.Args)
		if err != nil {
			return err
		}
		if len(n.Args) == 0 {
			base = g.alloc()
		}
		g.emit(rirepInst(rvm.OpFSend, base, g.symIdx(n.Name), argcOperand(argc, bundled)))
		g.settle(base)
		return nil
	}

	var recvReg int32
	if n.Recv == nil {
		recvReg = g.alloc()
		g.emit(rirepInst(rvm.OpLoadSelf, recvReg, 0, 0))
	} else {
		r, err := g.compileExpr(n.Recv)
		if err != nil {
			return err
		}
		recvReg = r
	}
	g.free(recvReg + 1)

	argc, bundled, err := g.compileArgs(n.Args)
	if err != nil {
		return err
	}

	op := byte(rvm.OpSend)
	if n.Block != nil {
		op = rvm.OpSendB
		if err := g.compileBlockArg(n.Block); err != nil {
			return err
		}
	}
	g.emit(rirepInst(op, recvReg, g.symIdx(n.Name), argcOperand(argc, bundled)))
	g.settle(recvReg)
	return nil
}

// VisitSuper lowers both `super(args)` and bare `super`; the latter
// compiles to ZSUPER, which uses only its A operand (the result) and
// reconstructs the caller's own argument list from the active call
// frame (spec.md §4.2 "super", rvm execZSuper).
func (g *gen) VisitSuper(n *rast.SuperNode) error {
	dest := g.alloc()
	if n.Implicit {
		g.emit(rirepInst(rvm.OpZSuper, dest, 0, 0))
		g.settle(dest)
		return nil
	}
	g.free(dest)
	argc, bundled, err := g.compileArgs(n.Args)
	if err != nil {
		return err
	}
	g.emit(rirepInst(rvm.OpSuper, dest, 0, argcOperand(argc, bundled)))
	g.settle(dest)
	return nil
}

// VisitYield lowers `yield(args)` to a BLKPUSH of the frame's block
// proc followed by a CALL, there being no single "invoke the current
// block" opcode of its own.
func (g *gen) VisitYield(n *rast.YieldNode) error {
	proc := g.alloc()
	g.emit(rirepInst(rvm.OpBlkPush, proc, 0, 0))
	argc, _, err := g.compileArgs(n.Args)
	if err != nil {
		return err
	}
	g.emit(rirepInst(rvm.OpCall, proc, argc, 0))
	g.settle(proc)
	return nil
}

// VisitBlockArg lowers `&expr` in argument position: the value is
// passed through as-is (the VM calls a Proc directly; there is no
// separate to_proc coercion opcode).
func (g *gen) VisitBlockArg(n *rast.BlockArgNode) error {
	r, err := g.compileExpr(n.Value)
	if err != nil {
		return err
	}
	g.settle(r)
	return nil
}

func (g *gen) VisitScope(n *rast.ScopeNode) error {
	return g.compileBody(n.Body, g.alloc())
}

func (g *gen) VisitBlock(n *rast.BlockNode) error {
	return g.compileClosure(n.Params, n.Body, false)
}

func (g *gen) VisitLambda(n *rast.LambdaNode) error {
	return g.compileClosure(n.Params, n.Body, true)
}

// compileClosure builds a child IREP for a block or lambda body and
// emits LAMBDA to materialize it as a Proc in the current scope
// (spec.md §4.4 "Closures"). isLambda is not used: a block and a
// lambda compile to the same code, an explicit `return` inside either
// emits ReturnReturn, and LAMBDA creates both Procs with IsLambda false.
func (g *gen) compileClosure(params []rast.Param, body []rast.Node, isLambda bool) error {
	_ = isLambda
	child := newGen(g.symbols, g)
	child.params = paramSpecOf(child, params)

	child.emit(rirepInst(rvm.OpEnter, 0, 0, 0))
	if err := compileParamDefaults(child, params); err != nil {
		return err
	}
	bodyDest := child.alloc()
	if err := child.compileBody(body, bodyDest); err != nil {
		return err
	}
	child.emit(rirepInst(rvm.OpReturn, bodyDest, int32(rvm.ReturnNormal), 0))

	kidIdx := g.addKid(child.finish())
	dest := g.alloc()
	g.emit(rirepInst(rvm.OpLambda, dest, kidIdx, 0))
	g.settle(dest)
	return nil
}

// paramSpecOf declares each parameter as a local of child in
// declaration order and builds the packed spec ENTER's prologue reads
// to reshape the caller's argv (spec.md §6's req/opt/rest/post/key/
// kdict/block fields).
func paramSpecOf(child *gen, params []rast.Param) rirep.ParamSpec {
	var spec rirep.ParamSpec
	for _, p := range params {
		switch p.Kind {
		case rast.ParamRequired:
			child.declareLocal(p.Name)
			spec.Req++
		case rast.ParamOptional:
			child.declareLocal(p.Name)
			spec.Opt++
		case rast.ParamSplat:
			if p.Name != "" {
				child.declareLocal(p.Name)
			}
			spec.Rest = true
		case rast.ParamKeyword:
			child.declareLocal(p.Name)
			spec.Key++
		case rast.ParamKeywordSplat:
			if p.Name != "" {
				child.declareLocal(p.Name)
			}
			spec.KDict = true
		case rast.ParamBlock:
			if p.Name != "" {
				child.declareLocal(p.Name)
			}
			spec.Block = true
		}
	}
	return spec
}

// compileParamDefaults emits, for each optional/keyword parameter with
// a default expression, "if the register reshapeArgs left falsey
// (unset), evaluate the default". Conflating an explicit `false`/`nil`
// argument with an omitted one is a known simplification (DESIGN.md):
// this VM's reshaping prologue has no separate "was this arg supplied"
// bitmap to test instead.
func compileParamDefaults(child *gen, params []rast.Param) error {
	for _, p := range params {
		if (p.Kind != rast.ParamOptional && p.Kind != rast.ParamKeyword) || p.Default == nil {
			continue
		}
		reg, _, ok := child.lookupLocal(p.Name)
		if !ok {
			continue
		}
		skipAt := child.emit(rirepInst(rvm.OpJmpIf, reg, 0, 0))
		if err := child.compileInto(reg, p.Default); err != nil {
			return err
		}
		skip := child.label()
		child.markTarget(skip)
		child.patchJmp(skipAt, skip)
	}
	return nil
}

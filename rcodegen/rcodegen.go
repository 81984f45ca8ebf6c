// Package rcodegen lowers an rast AST into an rirep.IREP tree
// (spec.md §4.4): a visitor walks the tree once, emitting fixed-width
// instructions into the current scope's instruction vector, pooling
// literals, assigning register indices, and recursing into a fresh
// scope for every construct that introduces one (def, sdef, class
// body, module body, sclass body, block, lambda). Grounded on the
// teacher's grammar_compiler.go: a single `compiler`/`scope` struct
// implementing rast.Visitor, an `emit` helper appending instructions,
// and a backpatch pass for forward jumps.
package rcodegen

import (
	"fmt"

	"github.com/clarete/rembed/rast"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvm"
)

// CodegenError is the one exported sentinel for every lowering failure
// (an unassignable target, a jump out of scope, a register overflow),
// matching the teacher's single-struct-per-kind error style.
type CodegenError struct {
	Message string
	Pos     rast.Pos
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("codegen: %s (line %d)", e.Message, e.Pos.Line)
}

// Generate lowers a top-level script body (the nodes produced by
// parsing a whole file) into its IREP, using symbols to intern every
// method/constant/variable name the program references.
func Generate(symbols *rsym.Table, body []rast.Node) (*rirep.IREP, error) {
	g := newGen(symbols, nil)
	if err := g.compileBody(body, g.resultReg()); err != nil {
		return nil, err
	}
	g.emit(rirep.Inst{Op: rvm.OpStop})
	return g.finish(), nil
}

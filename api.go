package rembed

import (
	"os"

	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rcodegen"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rparser"
	"github.com/clarete/rembed/rvalue"
)

// Eval compiles and runs src as a top-level script, the embedding
// boundary's one required operation (spec.md §6). It mirrors the
// teacher's GrammarFromBytes: parse, then hand the result to the next
// stage, except here that next stage is rcodegen → rvm instead of a
// grammar transformation pass.
func (in *Interp) Eval(src string) (rvalue.Value, error) {
	p := rparser.New(src, "(eval)")
	prog, errs := p.ParseProgram()
	if err := wrapParseErrors(errs); err != nil {
		return rvalue.Nil, err
	}

	irep, err := rcodegen.Generate(in.symbols, prog.Body)
	if err != nil {
		return rvalue.Nil, err
	}

	proc, err := rbuiltin.NewIREPProc(in.heap, in.Proc, irep, nil, in.Object, false)
	if err != nil {
		return rvalue.Nil, err
	}

	main, err := in.mainObject()
	if err != nil {
		return rvalue.Nil, err
	}

	return in.vm.Call(proc, rvalue.Ref(main), nil, rvalue.Nil, rvalue.Nil)
}

// EvalFile reads path and runs it through Eval, the file-backed
// counterpart to the teacher's GrammarFromFile.
func (in *Interp) EvalFile(path string) (rvalue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rvalue.Nil, err
	}
	return in.Eval(string(data))
}

// mainObject lazily creates and caches the top-level `main` object a
// script's self is bound to, the same single shared receiver every
// real Ruby top-level statement runs against.
func (in *Interp) mainObject() (*robject.Instance, error) {
	if in.main != nil {
		return in.main, nil
	}
	inst, err := robject.NewInstance(in.heap, in.Object)
	if err != nil {
		return nil, err
	}
	in.main = inst
	return in.main, nil
}

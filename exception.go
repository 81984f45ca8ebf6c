package rembed

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// bootstrapExceptions builds the minimal Exception/RuntimeError
// hierarchy spec.md §4.2's rescue/raise protocol and §8 scenario 4
// need: a class with a `message` accessor, and a Kernel#raise that
// wraps a bare String argument in a RuntimeError the way Ruby's own
// `raise "text"` shorthand does.
func bootstrapExceptions(heap *rheap.Heap, symbols *rsym.Table, object, procClass, stringClass *robject.Class) (exception, runtimeError *robject.Class, err error) {
	exception, err = robject.NewClass(heap, "Exception", object, robject.TTClass)
	if err != nil {
		return nil, nil, err
	}
	runtimeError, err = robject.NewClass(heap, "RuntimeError", exception, robject.TTClass)
	if err != nil {
		return nil, nil, err
	}

	messageSym := symbols.Intern("message")
	message, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		ref, _ := recv.Heap()
		inst := ref.(*robject.Instance)
		v, _ := inst.GetIVar(messageSym)
		return v, nil
	})
	if err != nil {
		return nil, nil, err
	}
	exception.DefineMethod(messageSym, rvalue.Ref(message))

	raise, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		exc, err := buildRaisedValue(heap, stringClass, runtimeError, messageSym, args)
		if err != nil {
			return rvalue.Nil, err
		}
		return rvalue.Nil, ctx.Raise(exc)
	})
	if err != nil {
		return nil, nil, err
	}
	object.DefineMethod(symbols.Intern("raise"), rvalue.Ref(raise))

	return exception, runtimeError, nil
}

// buildRaisedValue implements raise's argument-shape rules: no args
// re-raises a generic RuntimeError with an empty message, a String
// argument becomes a RuntimeError carrying that message, and anything
// already an Exception instance is raised as-is.
func buildRaisedValue(heap *rheap.Heap, stringClass, runtimeError *robject.Class, messageSym rsym.ID, args []rvalue.Value) (rvalue.Value, error) {
	if len(args) == 1 {
		if ref, ok := args[0].Heap(); ok {
			if _, ok := ref.(*robject.Instance); ok {
				return args[0], nil
			}
			if s, ok := ref.(*rbuiltin.String); ok {
				inst, err := robject.NewInstance(heap, runtimeError)
				if err != nil {
					return rvalue.Nil, err
				}
				msg, err := rbuiltin.NewString(heap, stringClass, s.Content())
				if err != nil {
					return rvalue.Nil, err
				}
				inst.SetIVar(messageSym, rvalue.Ref(msg))
				return rvalue.Ref(inst), nil
			}
		}
	}
	inst, err := robject.NewInstance(heap, runtimeError)
	if err != nil {
		return rvalue.Nil, err
	}
	return rvalue.Ref(inst), nil
}

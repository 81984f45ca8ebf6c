package rembed

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// bootstrapKernel installs `puts`/`print` on Object the same way
// user `def` would (a native Proc in the method table), matching
// spec.md §1's Kernel surface and §8 scenario 1 (`puts` writing a
// trailing newline).
func bootstrapKernel(heap *rheap.Heap, symbols *rsym.Table, object, procClass *robject.Class) error {
	puts, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		return rbuiltin.Puts(ctx, args, rbuiltin.DefaultInspect)
	})
	if err != nil {
		return err
	}
	object.DefineMethod(symbols.Intern("puts"), rvalue.Ref(puts))

	print, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		return rbuiltin.Print(ctx, args, rbuiltin.DefaultInspect)
	})
	if err != nil {
		return err
	}
	object.DefineMethod(symbols.Intern("print"), rvalue.Ref(print))

	return nil
}

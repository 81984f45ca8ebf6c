package rembed

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// bootstrapInteger installs the handful of Integer methods spec.md §8's
// end-to-end scenarios exercise beyond the VM's own arithmetic fast
// paths, the same native-Proc-in-the-method-table shape bootstrapKernel
// uses for puts/print.
func bootstrapInteger(heap *rheap.Heap, symbols *rsym.Table, integer, procClass *robject.Class) error {
	times, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		n := recv.Int()
		for i := int64(0); i < n; i++ {
			if _, err := ctx.CallBlock(block, []rvalue.Value{rvalue.Int(i)}); err != nil {
				return rvalue.Nil, err
			}
		}
		return recv, nil
	})
	if err != nil {
		return err
	}
	integer.DefineMethod(symbols.Intern("times"), rvalue.Ref(times))
	return nil
}

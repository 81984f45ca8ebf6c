package rembed

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// bootstrapArray installs `<<`, the one Array method spec.md §8's
// end-to-end scenarios call that ARYPUSH doesn't already cover (ARYPUSH
// only fires for array-literal construction, never for a user-written
// `<<` send).
func bootstrapArray(heap *rheap.Heap, symbols *rsym.Table, array, procClass *robject.Class) error {
	push, err := rbuiltin.NewNativeProc(heap, procClass, func(ctx rbuiltin.Context, recv rvalue.Value, args []rvalue.Value, block rvalue.Value) (rvalue.Value, error) {
		ref, _ := recv.Heap()
		arr := ref.(*rbuiltin.Array)
		arr.Push(ctx.Heap(), args[0])
		return recv, nil
	})
	if err != nil {
		return err
	}
	array.DefineMethod(symbols.Intern("<<"), rvalue.Ref(push))
	return nil
}

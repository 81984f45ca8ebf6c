package rvm

import (
	"github.com/clarete/rembed/rbuiltin"
	"github.com/clarete/rembed/rirep"
	"github.com/clarete/rembed/robject"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// CallInfo is one call frame, carrying exactly the fields spec.md
// §4.5 lists: "mid, proc, stackidx, argc, target_class, saved pc, acc,
// nregs, ridx, eidx, optional env".
type CallInfo struct {
	Mid         rsym.ID
	Proc        *rbuiltin.Proc
	StackIdx    int
	Argc        int32 // -1 encodes "bundled into one array"
	TargetClass *robject.Class
	PC          int
	// Acc is the destination slot in the caller's frame for the
	// return value; negative encodes "return to host".
	Acc   int32
	NRegs int
	RIdx  int // rescue-stack depth at entry
	EIdx  int // ensure-stack depth at entry
	Env   *rbuiltin.Env

	// Block is the block argument passed to this call, independent of
	// whether the callee's ParamSpec also binds it into a named local;
	// BLKPUSH reads this directly so `&block`-forwarding works even
	// when the callee never names its block parameter.
	Block rvalue.Value

	IREP *rirep.IREP
}

// Package rirep defines IREP, the bytecode module spec.md §3 and §4.4
// describe: a fixed-width instruction array, a constant pool, a
// symbol id array, a child-IREP array, register/local counts, and
// optional line info. IREP is shared by the code generator (which
// builds one), the VM (which executes one), and the image loader
// (which decodes one from bytes) without any of those three importing
// each other.
package rirep

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rsym"
)

// Op is the one-byte opcode; the full set is enumerated in
// rvm/opcodes.go (rirep only needs to know an instruction is an
// opcode plus A/B/C operands, not what each opcode means).
type Op = byte

// Inst is a single instruction with spec.md §4.5's op/A/B/C fields
// kept as separate values rather than packed into one `(op:7, A:9,
// B:9, C:7)` word; nothing in this module packs it, and the image codec
// (rirep/image.go) writes Op, A, B and C as separate fields.
type Inst struct {
	Op   Op
	A, B int32
	C    int32
}

// ConstKind tags an entry in the constant pool.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstFloat
	ConstString
)

type Const struct {
	Kind ConstKind
	I    int64
	F    float64
	S    string
}

// PoolIndex is the operand width the VM and codegen agree to use when
// addressing the constant pool (`LOADL`'s Bx field).
type PoolIndex = int32

// IREP is the unit of compilation and loading. It is refcounted
// independently of the GC (spec.md §3 "IREPs are refcounted
// independently of the GC"): a Proc holds one reference, released
// when the Proc is finalized; the code generator itself holds the
// initial reference for the top-level IREP until the embedding
// boundary takes over.
type IREP struct {
	NLocals int
	NRegs   int

	Code  []Inst
	Pool  []Const
	Syms  []rsym.ID
	Kids  []*IREP

	// Params is the argument spec spec.md §6 packs bit-exact into
	// OP_ENTER's Ax operand on the wire (`req:5 opt:5 rest:1 post:5
	// key:5 kdict:1 block:1`); this in-memory IREP keeps the same
	// fields unpacked since nothing here marshals Inst into one
	// physical machine word (see rirep/image.go, which writes Inst's
	// A/B/C separately too).
	Params ParamSpec

	// Lines maps instruction index to source line, populated only
	// when the codegen was asked to keep debug info (spec.md §6's
	// optional LINE section).
	Lines []int32
	File  string

	// MaterializedPool caches the heap String objects LOADL
	// allocates for this IREP's string constants the first time each
	// is loaded, so repeated execution of the same literal (inside a
	// loop) does not re-allocate it every iteration. The VM populates
	// this lazily; it is also this IREP's GC root contribution (see
	// IREPRoots below).
	MaterializedPool []rheap.GCObject

	refcount int
}

// ParamSpec is the bit-exact argument spec of spec.md §6: `[req:5]
// [opt:5][rest:1][post:5][key:5][kdict:1][block:1]`.
type ParamSpec struct {
	Req, Opt, Post, Key int32
	Rest, KDict, Block  bool
}

// Pack encodes the spec into the 23-bit field the wire format reserves
// for it; Req/Opt/Post/Key are masked to their low 5 bits (0..31), the
// format's field widths, so larger counts wrap rather than saturate.
func (s ParamSpec) Pack() uint32 {
	v := uint32(s.Req&0x1f) |
		uint32(s.Opt&0x1f)<<5 |
		uint32(s.Post&0x1f)<<11 |
		uint32(s.Key&0x1f)<<16
	if s.Rest {
		v |= 1 << 10
	}
	if s.KDict {
		v |= 1 << 21
	}
	if s.Block {
		v |= 1 << 22
	}
	return v
}

func UnpackParamSpec(v uint32) ParamSpec {
	return ParamSpec{
		Req:   int32(v & 0x1f),
		Opt:   int32((v >> 5) & 0x1f),
		Rest:  v&(1<<10) != 0,
		Post:  int32((v >> 11) & 0x1f),
		Key:   int32((v >> 16) & 0x1f),
		KDict: v&(1<<21) != 0,
		Block: v&(1<<22) != 0,
	}
}

func New() *IREP { return &IREP{refcount: 1} }

// Retain increments the refcount; taken by every Proc that captures
// this IREP (including child IREPs referenced from a parent's Kids,
// which count as one retain each so a parent can be released before
// its children finish executing in an active call chain).
func (r *IREP) Retain() { r.refcount++ }

// Release decrements the refcount; at zero the IREP (and, transitively,
// any child IREP this was the last referrer of) is dropped.
func (r *IREP) Release() {
	r.refcount--
	if r.refcount <= 0 {
		for _, k := range r.Kids {
			k.Release()
		}
	}
}

func (r *IREP) Refcount() int { return r.refcount }

// IREPRoots implements rheap.IREPRoot: the constant pool's string
// constants, once materialized as heap Strings, must stay reachable
// for as long as this IREP is loaded even though no call frame is
// currently executing it (spec.md §4.1 "for each IREP, the constant
// pool" is explicitly listed among root-mark's scan targets).
func (r *IREP) IREPRoots(visit func(rheap.GCObject)) {
	for _, o := range r.MaterializedPool {
		if o != nil {
			visit(o)
		}
	}
	for _, k := range r.Kids {
		k.IREPRoots(visit)
	}
}

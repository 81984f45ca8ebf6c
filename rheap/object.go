package rheap

// Kind tags every heap object with the shape its class gives it,
// mirroring spec.md §3's heap object kinds.
type Kind uint8

const (
	KindObject Kind = iota
	KindClass
	KindModule
	KindIClass
	KindSClass
	KindProc
	KindEnv
	KindArray
	KindHash
	KindString
	KindRange
	KindException
	KindData
	KindFiber
)

func (k Kind) String() string {
	names := [...]string{
		"object", "class", "module", "iclass", "sclass",
		"proc", "env", "array", "hash", "string", "range",
		"exception", "data", "fiber",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Color is the tri-color mark used by the incremental collector.
// White has two sub-colors that alternate between cycles so that
// objects allocated mid-sweep are never mistaken for garbage of the
// cycle in progress (spec.md §4.1 "Colors").
type Color uint8

const (
	ColorWhiteA Color = iota
	ColorWhiteB
	ColorGray
	ColorBlack
)

func (c Color) IsWhite() bool { return c == ColorWhiteA || c == ColorWhiteB }

// Flag bits live alongside color in the header's flag word.
type Flag uint16

const (
	FlagFrozen   Flag = 1 << iota // object rejects further mutation
	FlagOld                       // generational: survived a sweep, skipped by minor cycles
	FlagVarGray                   // linked into the "variable gray" retraversal list
	FlagFinalize                  // type-specific free has already run (defensive against double-sweep)
)

// Header is embedded by every concrete heap object. It carries
// exactly the bookkeeping spec.md §3 requires: a color, a flag word,
// and a pointer to the owning class.
type Header struct {
	kind  Kind
	color Color
	flags Flag
	class GCObject

	// next links cells within a page's occupied/free chains; it is
	// heap-internal and never exposed outside this package.
	next GCObject
}

func (h *Header) Kind() Kind     { return h.kind }
func (h *Header) Color() Color   { return h.color }
func (h *Header) Class() GCObject { return h.class }
func (h *Header) SetClass(c GCObject) { h.class = c }

func (h *Header) HasFlag(f Flag) bool  { return h.flags&f != 0 }
func (h *Header) SetFlag(f Flag)       { h.flags |= f }
func (h *Header) ClearFlag(f Flag)     { h.flags &^= f }

// GCObject is implemented by every heap-allocated value. Header()
// gives the collector access to color/flags/class; TraceChildren lets
// the collector discover references to other heap objects without
// knowing the concrete Go type (the collector is generic across
// object/class/array/hash/proc/... the same way spec.md's mark phase
// is generic across heap object kinds).
type GCObject interface {
	Header() *Header
	TraceChildren(visit func(GCObject))
	// Finalize releases any non-GC-managed resource held by the
	// object (shared-backing refcounts, open host handles). It
	// runs exactly once, at sweep time, for objects still white.
	Finalize()
}

// NewHeader initializes a Header in the allocation color the owning
// Heap is currently using; callers obtain the color from Heap.Alloc,
// never by reading AllocColor directly, so the invariant "objects
// allocated during sweep are safe from this cycle" holds without the
// object type needing to know about cycles at all.
func newHeader(kind Kind, class GCObject, color Color) Header {
	return Header{kind: kind, color: color, class: class}
}

package rbuiltin

import (
	"fmt"
	"strings"

	"github.com/clarete/rembed/rheap"
)

// stringBacking is the refcounted backing a shared String windows
// into, mirroring Array's arrayBacking.
type stringBacking struct {
	data     []byte
	refcount int
}

type stringKind uint8

const (
	stringOwned stringKind = iota
	stringShared
	stringStatic // points into foreign memory; never freed by this collector
)

// String is spec.md §3's String heap kind: owned, shared (refcounted),
// or static (host-owned memory, read-only, outlives the GC).
type String struct {
	rheap.Header

	kind   stringKind
	owned  []byte
	shared *stringBacking
	static string
}

func NewString(heap *rheap.Heap, class rheap.GCObject, s string) (*String, error) {
	str := &String{kind: stringOwned, owned: []byte(s)}
	if _, err := heap.Alloc(str, rheap.KindString, class); err != nil {
		return nil, err
	}
	return str, nil
}

// NewStaticString wraps foreign memory (e.g. a literal baked into an
// IREP's constant pool) without copying; it is never mutated and
// never freed.
func NewStaticString(heap *rheap.Heap, class rheap.GCObject, s string) (*String, error) {
	str := &String{kind: stringStatic, static: s}
	if _, err := heap.Alloc(str, rheap.KindString, class); err != nil {
		return nil, err
	}
	return str, nil
}

func (s *String) Content() string {
	switch s.kind {
	case stringStatic:
		return s.static
	case stringShared:
		return string(s.shared.data)
	default:
		return string(s.owned)
	}
}

// Share produces a refcounted alias of s's bytes (used by `dup` and
// by Hash key duplication before this function itself de-shares the
// *source*, so inserting a String key never aliases a caller's
// in-flight mutable buffer, per spec.md §3 "string keys are
// duplicated on insert to prevent aliasing").
func (s *String) Share(heap *rheap.Heap, class rheap.GCObject) (*String, error) {
	bk := s.ensureBacking()
	bk.refcount++
	out := &String{kind: stringShared, shared: bk}
	if _, err := heap.Alloc(out, rheap.KindString, class); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *String) ensureBacking() *stringBacking {
	if s.kind != stringShared {
		bk := &stringBacking{data: []byte(s.Content()), refcount: 1}
		s.kind, s.shared = stringShared, bk
	}
	return s.shared
}

// mutate returns a private, owned byte slice writers can mutate in
// place, de-sharing first (copy-on-write).
func (s *String) mutate() []byte {
	if s.kind == stringOwned {
		return s.owned
	}
	cp := []byte(s.Content())
	s.dropShared()
	s.kind, s.owned = stringOwned, cp
	return s.owned
}

func (s *String) dropShared() {
	if s.kind != stringShared {
		return
	}
	s.shared.refcount--
	if s.shared.refcount == 0 {
		s.shared.data = nil
	}
	s.shared = nil
}

func (s *String) Append(other string) {
	s.owned = append(s.mutate(), other...)
}

// Concat implements `+`: allocates a new String rather than mutating
// either operand (spec.md §4.5 "Two strings on ADD: concatenate (new
// string)").
func Concat(heap *rheap.Heap, class rheap.GCObject, a, b *String) (*String, error) {
	return NewString(heap, class, a.Content()+b.Content())
}

// Repeat implements `String#*`; n < 0 raises ArgumentError per
// spec.md §8's boundary behaviors.
func Repeat(heap *rheap.Heap, class rheap.GCObject, s *String, n int64) (*String, error) {
	if n < 0 {
		return nil, &ArgumentError{Message: fmt.Sprintf("negative argument %d", n)}
	}
	return NewString(heap, class, strings.Repeat(s.Content(), int(n)))
}

func (s *String) TraceChildren(func(rheap.GCObject)) {}
func (s *String) Finalize()                          { s.dropShared() }

// ArgumentError is spec.md §7/§8's ArgumentError kind: a runtime
// exception raised with the offending method name where known.
type ArgumentError struct {
	Message string
	Method  string
}

func (e *ArgumentError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s: %s", e.Method, e.Message)
	}
	return e.Message
}

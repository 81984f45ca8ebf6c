package rbuiltin

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rvalue"
)

// hkey is the map key rbuiltin.Hash actually indexes by. Go map keys
// must be comparable; rvalue.Value already is (it is tag+uint64+an
// interface over a pointer type), except that two distinct String
// objects with the same content must hash equal (spec.md §3 "equality
// uses the language's eql? on keys"), which plain Value identity
// comparison would get wrong. hkey normalizes that one case by
// keying on content instead of identity whenever the value is a
// String.
type hkey struct {
	v       rvalue.Value
	strKey  string
	isStr   bool
}

func computeKey(v rvalue.Value) hkey {
	if ref, ok := v.Heap(); ok {
		if s, ok := ref.(*String); ok {
			return hkey{strKey: s.Content(), isStr: true}
		}
	}
	return hkey{v: v}
}

// Hash is spec.md §3's Hash heap kind. Keys are stored alongside
// values (not just the hkey) so iteration and `each` can hand back
// the original Value.
type Hash struct {
	rheap.Header
	entries map[hkey]kv
	order   []hkey // insertion order, for a stable `each`
}

type kv struct {
	key, value rvalue.Value
}

func NewHash(heap *rheap.Heap, class rheap.GCObject) (*Hash, error) {
	h := &Hash{entries: map[hkey]kv{}}
	if _, err := heap.Alloc(h, rheap.KindHash, class); err != nil {
		return nil, err
	}
	return h, nil
}

// Set inserts or updates key => value. A String key is duplicated
// (shared, refcounted) on insert per spec.md §3, so later mutation of
// the caller's original string object never changes the lookup key.
func (h *Hash) Set(heap *rheap.Heap, class rheap.GCObject, key, value rvalue.Value) error {
	if ref, ok := key.Heap(); ok {
		if s, ok := ref.(*String); ok {
			dup, err := s.Share(heap, class)
			if err != nil {
				return err
			}
			key = rvalue.Ref(dup)
		}
	}
	k := computeKey(key)
	if _, existed := h.entries[k]; !existed {
		h.order = append(h.order, k)
	}
	h.entries[k] = kv{key: key, value: value}
	heap.ObjectWriteBarrier(h)
	return nil
}

func (h *Hash) Get(key rvalue.Value) (rvalue.Value, bool) {
	e, ok := h.entries[computeKey(key)]
	if !ok {
		return rvalue.Nil, false
	}
	return e.value, true
}

func (h *Hash) Delete(key rvalue.Value) (rvalue.Value, bool) {
	k := computeKey(key)
	e, ok := h.entries[k]
	if !ok {
		return rvalue.Nil, false
	}
	delete(h.entries, k)
	for i, o := range h.order {
		if o == k {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return e.value, true
}

func (h *Hash) Len() int { return len(h.entries) }

// Each visits entries in insertion order, matching the teacher's own
// preference for deterministic iteration over query results
// (query_pipeline.go walks slices, never unordered maps, for the same
// reproducibility reason).
func (h *Hash) Each(f func(key, value rvalue.Value)) {
	for _, k := range h.order {
		e := h.entries[k]
		f(e.key, e.value)
	}
}

func (h *Hash) TraceChildren(visit func(rheap.GCObject)) {
	for _, k := range h.order {
		e := h.entries[k]
		if ref, ok := e.key.Heap(); ok {
			visit(ref)
		}
		if ref, ok := e.value.Heap(); ok {
			visit(ref)
		}
	}
}

func (h *Hash) Finalize() {}

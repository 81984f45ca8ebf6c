// Package robject implements spec.md §4.2's object, class and
// constant model: instance-variable tables, the class/module/
// singleton/I-class graph, method tables, and constant lookup.
package robject

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// ClassKind distinguishes the handful of shapes a Class node in the
// super-chain can take; only `tt == module` changes lookup semantics
// (a module never appears directly in the chain, only wrapped in an
// IClass at inclusion time).
type ClassKind uint8

const (
	TTClass ClassKind = iota
	TTModule
	TTIClass
	TTSClass
)

// Class is spec.md §3's Class heap object: a method table, a
// superclass pointer, and an instance-variable table doubling as the
// constant/class-variable table (robject.Class itself stores all
// three namespaces flat; the parser/codegen distinguishes `@@cvar`,
// `CONST` and `@ivar` spellings and emits the matching opcode, so this
// package does not need to parse identifier text).
type Class struct {
	rheap.Header

	Name  string
	Super *Class
	tt    ClassKind

	mt    map[rsym.ID]rvalue.Value // method name -> Proc value
	ivars map[rsym.ID]rvalue.Value // constants, class vars, instance vars

	// InstanceKind is the rheap.Kind this class's `new` produces,
	// e.g. KindObject for a plain user class, KindArray for a
	// (hypothetical) subclass of the builtin Array, etc.
	InstanceKind rheap.Kind

	// Wrapped is set only for an IClass: the module it wraps.
	Wrapped *Class

	// Outer is the lexically enclosing class/module at the point
	// this class/module was opened, used by constant lookup's
	// "lexical outer chain" walk.
	Outer *Class

	// Attached is set only for an SClass: the single object this
	// singleton class was inserted for.
	Attached rheap.GCObject
}

func NewClass(heap *rheap.Heap, name string, super *Class, kind ClassKind) (*Class, error) {
	c := &Class{Name: name, Super: super, tt: kind, mt: map[rsym.ID]rvalue.Value{}, ivars: map[rsym.ID]rvalue.Value{}}
	var superObj rheap.GCObject
	if super != nil {
		superObj = super
	}
	// A class is itself heap-allocated under the builtin Class/Module
	// metaclass; bootstrap interpreters pass that class as superObj's
	// sibling via NewClass's caller, so this constructor only needs a
	// generic heap object for its own Header.Class slot.
	_, err := heap.Alloc(c, classKindFor(kind), superObj)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func classKindFor(kind ClassKind) rheap.Kind {
	switch kind {
	case TTModule:
		return rheap.KindModule
	case TTIClass:
		return rheap.KindIClass
	case TTSClass:
		return rheap.KindSClass
	default:
		return rheap.KindClass
	}
}

func (c *Class) IsModule() bool { return c.tt == TTModule }

// TraceChildren discovers every heap reference reachable from this
// class: its superclass chain link, wrapped module, outer lexical
// scope, method table values, and constant/ivar table values.
func (c *Class) TraceChildren(visit func(rheap.GCObject)) {
	if c.Super != nil {
		visit(c.Super)
	}
	if c.Wrapped != nil {
		visit(c.Wrapped)
	}
	if c.Outer != nil {
		visit(c.Outer)
	}
	if c.Attached != nil {
		visit(c.Attached)
	}
	for _, v := range c.mt {
		if ref, ok := v.Heap(); ok {
			visit(ref)
		}
	}
	for _, v := range c.ivars {
		if ref, ok := v.Heap(); ok {
			visit(ref)
		}
	}
}

func (c *Class) Finalize() {}

// DefineMethod installs proc under name in this class's method
// table. Callers must run the heap's field write barrier themselves
// (robject does not carry a *rheap.Heap reference per call so that
// bootstrapping the root classes, which happens before any heap
// exists in some embeddings, does not require one); rvm and rbuiltin
// wrap this with the barrier call.
func (c *Class) DefineMethod(name rsym.ID, proc rvalue.Value) {
	c.mt[name] = proc
}

func (c *Class) UndefMethod(name rsym.ID) { delete(c.mt, name) }

func (c *Class) OwnMethod(name rsym.ID) (rvalue.Value, bool) {
	v, ok := c.mt[name]
	return v, ok
}

func (c *Class) SetIVar(name rsym.ID, v rvalue.Value) { c.ivars[name] = v }

func (c *Class) GetIVar(name rsym.ID) (rvalue.Value, bool) {
	v, ok := c.ivars[name]
	return v, ok
}

func (c *Class) DeleteIVar(name rsym.ID) { delete(c.ivars, name) }

// IncludeModule splices an IClass wrapping mod between c and c's
// current superclass, per spec.md §4.2 "Including a module M into
// class C splices an I-class ... between C and C's current super."
func (c *Class) IncludeModule(heap *rheap.Heap, mod *Class) (*Class, error) {
	ic := &Class{Name: mod.Name, tt: TTIClass, Wrapped: mod, Super: c.Super, mt: map[rsym.ID]rvalue.Value{}, ivars: map[rsym.ID]rvalue.Value{}}
	if _, err := heap.Alloc(ic, rheap.KindIClass, c); err != nil {
		return nil, err
	}
	c.Super = ic
	return ic, nil
}

package robject

import (
	"github.com/clarete/rembed/rheap"
	"github.com/clarete/rembed/rsym"
	"github.com/clarete/rembed/rvalue"
)

// Instance is spec.md §3's "object-with-ivars" heap kind: an optional
// instance-variable table, looked up through the object's class
// (possibly a singleton class inserted ahead of its nominal class).
type Instance struct {
	rheap.Header
	ivars map[rsym.ID]rvalue.Value
}

func NewInstance(heap *rheap.Heap, class *Class) (*Instance, error) {
	o := &Instance{}
	if _, err := heap.Alloc(o, rheap.KindObject, class); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Instance) TraceChildren(visit func(rheap.GCObject)) {
	for _, v := range o.ivars {
		if ref, ok := v.Heap(); ok {
			visit(ref)
		}
	}
}

func (o *Instance) Finalize() {}

// SetIVar inserts or updates an instance variable, creating the
// backing map lazily (spec.md §4.2 "An object carries an optional
// pointer to a hash"). The caller (robject's users: rvm's SETIV
// opcode, native `instance_variable_set`) must run the field write
// barrier against o after this call when v is a heap reference.
func (o *Instance) SetIVar(name rsym.ID, v rvalue.Value) {
	if o.ivars == nil {
		o.ivars = map[rsym.ID]rvalue.Value{}
	}
	o.ivars[name] = v
}

func (o *Instance) GetIVar(name rsym.ID) (rvalue.Value, bool) {
	if o.ivars == nil {
		return rvalue.Nil, false
	}
	v, ok := o.ivars[name]
	return v, ok
}

func (o *Instance) DeleteIVar(name rsym.ID) {
	if o.ivars != nil {
		delete(o.ivars, name)
	}
}

func (o *Instance) EachIVar(f func(rsym.ID, rvalue.Value)) {
	for k, v := range o.ivars {
		f(k, v)
	}
}

// CopyIVars is used by the builtin `dup`/`clone` native methods.
func (o *Instance) CopyIVars() map[rsym.ID]rvalue.Value {
	cp := make(map[rsym.ID]rvalue.Value, len(o.ivars))
	for k, v := range o.ivars {
		cp[k] = v
	}
	return cp
}

// SingletonClass returns the class inserted ahead of obj's current
// class for per-instance method definitions (`def obj.m` or
// `class << obj`), creating it on first use, per spec.md §4.2.
func SingletonClass(heap *rheap.Heap, obj rheap.GCObject) (*Class, error) {
	cur, _ := obj.Header().Class().(*Class)
	if cur != nil && cur.tt == TTSClass && cur.Attached == obj {
		return cur, nil
	}
	sc := &Class{Name: "#<Class:singleton>", tt: TTSClass, Super: cur, Attached: obj, mt: map[rsym.ID]rvalue.Value{}, ivars: map[rsym.ID]rvalue.Value{}}
	if _, err := heap.Alloc(sc, rheap.KindSClass, cur); err != nil {
		return nil, err
	}
	obj.Header().SetClass(sc)
	return sc, nil
}

// ClassOf resolves the class used for method dispatch: the object's
// own header class for heap references, or a supplied resolver for
// immediates (rvm owns that resolver since it is the component that
// bootstraps Integer/Float/Symbol/NilClass/TrueClass/FalseClass).
func ClassOf(v rvalue.Value, immediateClassOf rvalue.ClassResolver) *Class {
	if ref, ok := v.Heap(); ok {
		c, _ := ref.Header().Class().(*Class)
		return c
	}
	obj := immediateClassOf(v)
	c, _ := obj.(*Class)
	return c
}

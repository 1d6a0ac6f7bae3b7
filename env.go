package jsonnet

import (
	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// Environment is a lexical binding frame: an identifier-to-thunk map
// chained to an enclosing frame, plus whatever self/super binding is in
// effect for the object field body (if any) this environment was built
// for. New frames inherit their parent's self/super unless withSelf
// overrides it, so a `local` nested inside a field body still sees the
// right self.
type Environment struct {
	heap.Base
	parent *Environment
	vars   map[ast.Identifier]*Thunk

	self       objectValue // nil outside any object field body
	superDepth int         // leaf index `super` resolves relative to, within self
}

func newEnvironment(h *heap.Heap, parent *Environment) *Environment {
	env := &Environment{parent: parent, vars: make(map[ast.Identifier]*Thunk)}
	if parent != nil {
		env.self = parent.self
		env.superDepth = parent.superDepth
	}
	return heap.Alloc(h, env)
}

func (e *Environment) Mark(h *heap.Heap) {
	if e.parent != nil {
		h.MarkFrom(e.parent)
	}
	for _, t := range e.vars {
		h.MarkFrom(t)
	}
	if e.self != nil {
		h.MarkFrom(e.self)
	}
}

func (e *Environment) bind(id ast.Identifier, t *Thunk) {
	e.vars[id] = t
}

func (e *Environment) lookup(id ast.Identifier) (*Thunk, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.vars[id]; ok {
			return t, true
		}
	}
	return nil, false
}

// withSelf returns a child environment whose self/super is overridden,
// used when entering a field body: self always denotes the full
// (possibly extended) object the field was looked up through, and
// superDepth is the position of the defining leaf plus one.
func (e *Environment) withSelf(h *heap.Heap, self objectValue, superDepth int) *Environment {
	child := newEnvironment(h, e)
	child.self = self
	child.superDepth = superDepth
	return child
}

package jsonnet

import (
	"sort"

	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// objectValue is the object-inheritance algebra. Three Go types realize
// four conceptual variants: Simple and Extended are direct translations;
// Comprehension is its own type; the fourth, Super-frame, is never
// materialized as a heap value at all (see the note below findField) --
// it only ever exists as the (self, superDepth) pair an Environment
// carries while evaluating a field body, because this implementation
// picked the later of jsonnet's two historical surface forms for `super`:
// `super` can only appear as the target of `.field`/`[e]`, so it is
// consumed immediately by the index operation and never needs a
// standalone, storable value.
type objectValue interface {
	heap.Entity
	Value

	// leaves returns this object's linearization, most-derived (the
	// right-hand side of the most recent `+`) first -- the order
	// field lookup searches in.
	leaves() []objectValue

	// assertions is the per-object memo ensureAsserts uses. Every
	// concrete object value carries its own assertionState (embedded),
	// so asserts are checked once per *composed* object: the same base
	// leaf mixed into two different `+` results is re-checked for each,
	// with self bound to that result.
	assertions() *assertionState

	// ownField looks up a field defined directly on this leaf (not
	// inherited through `+`). fenv is the environment to evaluate body
	// in, already including whatever bindings (e.g. a comprehension's
	// loop variable) this leaf contributes; it does not yet have
	// self/super applied -- the caller does that via Environment.withSelf.
	ownField(name string) (body ast.Node, hide ast.ObjectFieldHide, fenv *Environment, ok bool)

	ownFieldNames() []string
}

// assertionState memoizes the outcome of checking an object's asserts.
// It lives on the object the user actually indexes into (simple,
// extended, or comprehension), never shared between two compositions.
type assertionState struct {
	checked bool
	err     error
}

func (s *assertionState) assertions() *assertionState { return s }

// --- simple object ---------------------------------------------------------

type simpleObjectField struct {
	hide ast.ObjectFieldHide
	body ast.Node
}

// simpleObject is one `{ ... }` literal: a set of fields and asserts
// sharing a captured lexical environment (locals visible at the object's
// source location, not including self/super -- those are threaded in at
// lookup time based on whatever root object the search started from).
type simpleObject struct {
	heap.Base
	assertionState
	env     *Environment
	fields  map[string]simpleObjectField
	asserts []ast.Node
}

func newSimpleObject(h *heap.Heap, env *Environment) *simpleObject {
	return heap.Alloc(h, &simpleObject{env: env, fields: make(map[string]simpleObjectField)})
}

func (o *simpleObject) typename() string      { return "object" }
func (o *simpleObject) leaves() []objectValue { return []objectValue{o} }
func (o *simpleObject) Mark(h *heap.Heap) {
	if o.env != nil {
		h.MarkFrom(o.env)
	}
}
func (o *simpleObject) ownFieldNames() []string {
	names := make([]string, 0, len(o.fields))
	for n := range o.fields {
		names = append(names, n)
	}
	return names
}
func (o *simpleObject) ownField(name string) (ast.Node, ast.ObjectFieldHide, *Environment, bool) {
	f, ok := o.fields[name]
	if !ok {
		return nil, 0, nil, false
	}
	return f.body, f.hide, o.env, true
}
// --- extended object ---------------------------------------------------------

// extendedObject is the result of `left + right`: right's fields take
// priority over left's.
type extendedObject struct {
	heap.Base
	assertionState
	left, right objectValue
}

func makeValueExtendedObject(h *heap.Heap, left, right objectValue) *extendedObject {
	return heap.Alloc(h, &extendedObject{left: left, right: right})
}

func (o *extendedObject) typename() string { return "object" }
func (o *extendedObject) Mark(h *heap.Heap) {
	h.MarkFrom(o.left)
	h.MarkFrom(o.right)
}
func (o *extendedObject) leaves() []objectValue {
	leaves := make([]objectValue, 0)
	leaves = append(leaves, o.right.leaves()...)
	leaves = append(leaves, o.left.leaves()...)
	return leaves
}

// extendedObject is never itself a "leaf": it only ever appears as the
// root passed to findField, so ownField/ownFieldNames are unreachable.
// They're still implemented (delegating to the merged leaf set) so
// *extendedObject satisfies objectValue without a type switch at every
// call site.
func (o *extendedObject) ownFieldNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, l := range o.leaves() {
		for _, n := range l.ownFieldNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}
func (o *extendedObject) ownField(name string) (ast.Node, ast.ObjectFieldHide, *Environment, bool) {
	body, hide, env, _, ok := findField(o, name, 0)
	return body, hide, env, ok
}

// --- comprehension object ---------------------------------------------------

// comprehensionObject is `{ [nameExpr]: bodyExpr for x in arr }`. The
// array is forced and each element's field name is computed eagerly
// (field names can never be lazy), but the per-field value stays a
// thunk: the bound identifier for field `name` is held in compValues,
// and bodyNode is only evaluated when that field is actually read.
type comprehensionObject struct {
	heap.Base
	assertionState
	h          *heap.Heap
	env        *Environment
	boundID    ast.Identifier
	bodyNode   ast.Node
	hide       ast.ObjectFieldHide
	compValues map[string]*Thunk
}

func (o *comprehensionObject) typename() string      { return "object" }
func (o *comprehensionObject) leaves() []objectValue { return []objectValue{o} }
func (o *comprehensionObject) Mark(h *heap.Heap) {
	if o.env != nil {
		h.MarkFrom(o.env)
	}
	for _, t := range o.compValues {
		h.MarkFrom(t)
	}
}
func (o *comprehensionObject) ownFieldNames() []string {
	names := make([]string, 0, len(o.compValues))
	for n := range o.compValues {
		names = append(names, n)
	}
	return names
}
func (o *comprehensionObject) ownField(name string) (ast.Node, ast.ObjectFieldHide, *Environment, bool) {
	t, ok := o.compValues[name]
	if !ok {
		return nil, 0, nil, false
	}
	fenv := newEnvironment(o.h, o.env)
	fenv.bind(o.boundID, t)
	return o.bodyNode, o.hide, fenv, true
}
// nativeObject builds an object value directly from already-computed
// thunks, for builtins that synthesize object values (mergePatch, prune)
// rather than evaluating an object literal. It reuses comprehensionObject
// machinery: the body is just a reference to the loop variable itself, so
// indexing field "f" binds boundID to fields["f"] and evaluates Var(boundID),
// which is exactly that thunk.
func nativeObject(h *heap.Heap, fields map[string]*Thunk) objectValue {
	return heap.Alloc(h, &comprehensionObject{
		h:          h,
		boundID:    "$nativeValue",
		bodyNode:   &ast.Var{Id: "$nativeValue"},
		hide:       ast.ObjectFieldVisible,
		compValues: fields,
	})
}

// --- field lookup ------------------------------------------------------------

// findField searches root's leaves, starting at position offset (0 for
// `self.f`/`obj.f`, leafIndex+1 for `super.f` evaluated from the leaf at
// leafIndex), returning the first leaf that defines name along with its
// index in root.leaves() -- the caller binds that index+1 as the
// superDepth for evaluating body, so a further `super` inside it resolves
// relative to where this field was actually defined, not relative to root.
func findField(root objectValue, name string, offset int) (body ast.Node, hide ast.ObjectFieldHide, env *Environment, leafIndex int, ok bool) {
	leaves := root.leaves()
	for i := offset; i < len(leaves); i++ {
		if body, hide, env, ok := leaves[i].ownField(name); ok {
			return body, hide, env, i, true
		}
	}
	return nil, 0, nil, 0, false
}

func fieldExists(root objectValue, name string, offset int) bool {
	_, _, _, _, ok := findField(root, name, offset)
	return ok
}

// effectiveHide folds a field's hide annotations across every leaf that
// defines it, base (least derived) to most derived: `::` forces hidden,
// `:::` forces
// visible, and `:` (Inherit) keeps whatever the base already decided,
// defaulting to visible if this is the field's only definition.
func effectiveHide(root objectValue, name string) (ast.ObjectFieldHide, bool) {
	leaves := root.leaves()
	hide := ast.ObjectFieldVisible
	found := false
	for i := len(leaves) - 1; i >= 0; i-- {
		if _, h, _, ok := leaves[i].ownField(name); ok {
			found = true
			switch h {
			case ast.ObjectFieldHidden:
				hide = ast.ObjectFieldHidden
			case ast.ObjectFieldVisible:
				hide = ast.ObjectFieldVisible
			case ast.ObjectFieldInherit:
				// keep hide as folded so far
			}
		}
	}
	return hide, found
}

// ensureAsserts runs every leaf's asserts with self bound to root (the
// full merged object, however it got constructed) and super bound
// relative to that leaf's position -- the same self/super threading rule
// ordinary field lookup uses. The outcome is memoized on root itself, so
// asserts run once per composed object: a base leaf mixed into two
// different `+` results is checked again for each result, since its
// asserts can observe fields the other side overrides. The checked flag
// is set before evaluating so an assert that reads self through field
// lookup does not re-enter itself.
func (i *interpreter) ensureAsserts(root objectValue) error {
	st := root.assertions()
	if st.checked {
		return st.err
	}
	st.checked = true
	for idx, leaf := range root.leaves() {
		so, ok := leaf.(*simpleObject)
		if !ok {
			continue
		}
		fieldEnv := so.env.withSelf(i.heap, root, idx+1)
		for _, a := range so.asserts {
			if _, err := i.eval(fieldEnv, a); err != nil {
				st.err = err
				return err
			}
		}
	}
	return nil
}

// objectFieldNames returns every distinct field name defined anywhere in
// root's leaves, sorted alphabetically.
func objectFieldNames(root objectValue) []string {
	seen := map[string]bool{}
	var names []string
	for _, l := range root.leaves() {
		for _, n := range l.ownFieldNames() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

func visibleFieldNames(root objectValue) []string {
	all := objectFieldNames(root)
	vis := make([]string, 0, len(all))
	for _, n := range all {
		if h, _ := effectiveHide(root, n); h != ast.ObjectFieldHidden {
			vis = append(vis, n)
		}
	}
	return vis
}

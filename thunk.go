package jsonnet

import (
	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// Thunk is a single-fill memoized suspension: at most one of
// (node, env) is ever evaluated, and the result (or error) is cached for
// every subsequent force. inProgress detects a thunk being forced again
// while its own evaluation is still running, e.g. the cycle in
// `local a = b, b = a; a` (a direct `local x = x` is rejected statically).
type Thunk struct {
	heap.Base
	name ast.Identifier // best-effort name for stack traces, may be ""

	env  *Environment
	node ast.Node

	filled bool
	value  Value
	err    error

	inProgress bool

	// native, when set, is evaluated instead of (env, node) -- used by
	// builtins that construct lazy elements with no corresponding AST
	// (makeArray, map, filterMap). nativeRoots lists whatever heap
	// entities the closure captures, so the collector can still see them;
	// a Go closure is otherwise invisible to Heap.MarkFrom.
	native      func(i *interpreter) (Value, error)
	nativeRoots []heap.Entity
}

func newThunk(h *heap.Heap, name ast.Identifier, env *Environment, node ast.Node) *Thunk {
	return heap.Alloc(h, &Thunk{name: name, env: env, node: node})
}

// newNativeThunk wraps a Go closure as a lazy, memoized thunk. roots must
// list every heap entity the closure captures (e.g. the callback function
// and any element thunk it applies it to).
func newNativeThunk(h *heap.Heap, native func(i *interpreter) (Value, error), roots ...heap.Entity) *Thunk {
	return heap.Alloc(h, &Thunk{native: native, nativeRoots: roots})
}

// readyThunk wraps an already-computed value: used for loop variables
// bound by builtins (makeArray, map, ...) and other places that already
// hold a Value and just need something thunk-shaped to store it in.
func readyThunk(h *heap.Heap, v Value) *Thunk {
	return heap.Alloc(h, &Thunk{filled: true, value: v})
}

func (t *Thunk) Mark(h *heap.Heap) {
	if t.env != nil {
		h.MarkFrom(t.env)
	}
	for _, r := range t.nativeRoots {
		if r != nil {
			h.MarkFrom(r)
		}
	}
	if t.filled {
		markValue(h, t.value)
	}
}

/*
Copyright 2017 Google Inc. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package jsonnet

import (
	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// Value is anything a Jsonnet expression evaluates to. null, booleans and
// numbers are small enough that they are not heap entities; strings,
// arrays, objects, and closures are (see markValue). Builtins are not.
type Value interface {
	typename() string
}

func markValue(h *heap.Heap, v Value) {
	if e, ok := v.(heap.Entity); ok {
		h.MarkFrom(e)
	}
}

// --- null ------------------------------------------------------------

type valueNull struct{}

func (v *valueNull) typename() string { return "null" }

var nullValue = &valueNull{}

// --- boolean -----------------------------------------------------------

type valueBoolean struct{ value bool }

func (v *valueBoolean) typename() string   { return "boolean" }
func (v *valueBoolean) not() *valueBoolean { return makeValueBoolean(!v.value) }

var (
	trueValue  = &valueBoolean{true}
	falseValue = &valueBoolean{false}
)

func makeValueBoolean(b bool) *valueBoolean {
	if b {
		return trueValue
	}
	return falseValue
}

// --- number ------------------------------------------------------------

type valueNumber struct{ value float64 }

func (v *valueNumber) typename() string { return "number" }
func makeValueNumber(f float64) *valueNumber {
	return &valueNumber{value: f}
}

// --- string --------------------------------------------------------------

// valueString is a codepoint-indexed string. It is represented as either a
// flat rune slice or a tree of two concatenated strings, so that repeated
// `+` concatenation (a common pattern for building up templated output)
// stays cheap; the tree is flattened on first read that actually needs
// the runes (length, indexing, manifestation).
type valueString struct {
	heap.Base
	flat        []rune
	left, right *valueString
}

func (v *valueString) typename() string { return "string" }

func (v *valueString) Mark(h *heap.Heap) {
	if v.left != nil {
		h.MarkFrom(v.left)
	}
	if v.right != nil {
		h.MarkFrom(v.right)
	}
}

func makeValueString(s string) *valueString {
	return &valueString{flat: []rune(s)}
}

func makeValueStringRunes(r []rune) *valueString {
	return &valueString{flat: r}
}

func concatStrings(a, b *valueString) *valueString {
	if a.left == nil && a.right == nil && len(a.flat) == 0 {
		return b
	}
	if b.left == nil && b.right == nil && len(b.flat) == 0 {
		return a
	}
	return &valueString{left: a, right: b}
}

// flatten collapses the concatenation tree into a single rune slice,
// caching the result in place so repeated reads are O(1).
func (v *valueString) flatten() []rune {
	if v.left == nil && v.right == nil {
		return v.flat
	}
	var buf []rune
	var walk func(n *valueString)
	walk = func(n *valueString) {
		if n.left == nil && n.right == nil {
			buf = append(buf, n.flat...)
			return
		}
		walk(n.left)
		walk(n.right)
	}
	walk(v)
	v.flat = buf
	v.left, v.right = nil, nil
	return v.flat
}

func (v *valueString) length() int { return len(v.flatten()) }

func (v *valueString) goString() string { return string(v.flatten()) }

func stringEqual(a, b *valueString) bool {
	af, bf := a.flatten(), b.flatten()
	if len(af) != len(bf) {
		return false
	}
	for i := range af {
		if af[i] != bf[i] {
			return false
		}
	}
	return true
}

func stringLessThan(a, b *valueString) bool {
	af, bf := a.flatten(), b.flatten()
	for i := 0; i < len(af) && i < len(bf); i++ {
		if af[i] != bf[i] {
			return af[i] < bf[i]
		}
	}
	return len(af) < len(bf)
}

// --- array ---------------------------------------------------------------

// valueArray holds its elements as thunks: arrays are as lazy as any other
// Jsonnet value, so `[expensive(), 1, 2][1]` never evaluates element 0.
type valueArray struct {
	heap.Base
	elements []*Thunk
}

func (v *valueArray) typename() string { return "array" }

func (v *valueArray) Mark(h *heap.Heap) {
	for _, t := range v.elements {
		h.MarkFrom(t)
	}
}

func makeValueArray(elems []*Thunk) *valueArray {
	return &valueArray{elements: elems}
}

func concatArrays(a, b *valueArray) *valueArray {
	elems := make([]*Thunk, 0, len(a.elements)+len(b.elements))
	elems = append(elems, a.elements...)
	elems = append(elems, b.elements...)
	return makeValueArray(elems)
}

// --- function --------------------------------------------------------------

// Function is satisfied by both closures (user-defined functions, heap
// entities that close over an Environment) and builtins (host-implemented
// primitives with no captured state).
type Function interface {
	Value
	Parameters() ast.Identifiers
	NumRequired() int
}

type closure struct {
	heap.Base
	env    *Environment
	params ast.Parameters
	body   ast.Node
}

func (f *closure) typename() string { return "function" }
func (f *closure) Mark(h *heap.Heap) {
	h.MarkFrom(f.env)
}
func (f *closure) Parameters() ast.Identifiers {
	ids := make(ast.Identifiers, 0, len(f.params.Required)+len(f.params.Optional))
	ids = append(ids, f.params.Required...)
	for _, p := range f.params.Optional {
		ids = append(ids, p.Name)
	}
	return ids
}
func (f *closure) NumRequired() int { return len(f.params.Required) }

// builtin wraps a primitive implemented in Go. Builtins never capture a
// mutable graph so they are not registered with the heap.
type builtin struct {
	name   ast.Identifier
	params ast.Identifiers
	fn     func(i *interpreter, trace traceElement, args []*Thunk) (Value, error)
}

func (f *builtin) typename() string            { return "function" }
func (f *builtin) Parameters() ast.Identifiers { return f.params }
func (f *builtin) NumRequired() int            { return len(f.params) }

// --- object ---------------------------------------------------------------
// see object.go for the object algebra.

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

// The std object is not parsed from a std.jsonnet source
// string -- every member is a builtin, exposed to user code only through
// hidden DesugaredObjectField bodies of `&ast.BuiltinFunction{Name: ...}`,
// resolved by eval.go's `case *ast.BuiltinFunction` dispatch. Builtins
// implemented directly in Jsonnet in the reference implementation (map,
// filterMap, foldl, range, ...) are instead implemented here in Go, one
// function per builtin, registered in a table.
package jsonnet

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// builtinArgs forces every top-level call argument in order: a builtin
// always sees fully
// forced arguments, even though the thunks it hands back out (array
// elements passed through filter/map) stay lazy.
func (i *interpreter) builtinArgs(args []*Thunk, loc ast.LocationRange) ([]Value, error) {
	if err := i.stack.push(frameBuiltinForceThunks, traceElement{loc: loc, name: "builtin"}); err != nil {
		return nil, err
	}
	defer i.stack.pop()
	vals := make([]Value, len(args))
	for idx, t := range args {
		v, err := i.force(t, loc, "")
		if err != nil {
			return nil, err
		}
		vals[idx] = v
	}
	return vals, nil
}

// applyFunc calls fn with argThunks bound positionally to its own
// parameter names -- the same mechanism evalApply uses for a user call
// site, reused so builtins taking callbacks (map, filter, sort, foldl,
// ...) go through the ordinary call-stack/argument-binding machinery.
func (i *interpreter) applyFunc(fn Function, loc ast.LocationRange, argThunks ...*Thunk) (Value, error) {
	params := fn.Parameters()
	if len(argThunks) > len(params) {
		return nil, i.runtimeErrorf(loc, "callback expects at most %d argument(s)", len(params))
	}
	bound := make(map[ast.Identifier]*Thunk, len(argThunks))
	for idx, t := range argThunks {
		bound[params[idx]] = t
	}
	if err := i.stack.push(frameCall, traceElement{loc: loc, name: "callback"}); err != nil {
		return nil, err
	}
	defer i.stack.pop()
	return i.callFunction(fn, bound, loc)
}

func asNumber(i *interpreter, v Value, loc ast.LocationRange, what string) (float64, error) {
	n, ok := v.(*valueNumber)
	if !ok {
		return 0, i.runtimeErrorf(loc, "%s must be a number, got %s", what, v.typename())
	}
	return n.value, nil
}

func asString(i *interpreter, v Value, loc ast.LocationRange, what string) (*valueString, error) {
	s, ok := v.(*valueString)
	if !ok {
		return nil, i.runtimeErrorf(loc, "%s must be a string, got %s", what, v.typename())
	}
	return s, nil
}

func asArray(i *interpreter, v Value, loc ast.LocationRange, what string) (*valueArray, error) {
	a, ok := v.(*valueArray)
	if !ok {
		return nil, i.runtimeErrorf(loc, "%s must be an array, got %s", what, v.typename())
	}
	return a, nil
}

func asFunc(i *interpreter, v Value, loc ast.LocationRange, what string) (Function, error) {
	f, ok := v.(Function)
	if !ok {
		return nil, i.runtimeErrorf(loc, "%s must be a function, got %s", what, v.typename())
	}
	return f, nil
}

func asObject(i *interpreter, v Value, loc ast.LocationRange, what string) (objectValue, error) {
	o, ok := v.(objectValue)
	if !ok {
		return nil, i.runtimeErrorf(loc, "%s must be an object, got %s", what, v.typename())
	}
	return o, nil
}

func asBool(i *interpreter, v Value, loc ast.LocationRange, what string) (bool, error) {
	b, ok := v.(*valueBoolean)
	if !ok {
		return false, i.runtimeErrorf(loc, "%s must be a boolean, got %s", what, v.typename())
	}
	return b.value, nil
}

// --- math -------------------------------------------------------------

func mathUnary(name ast.Identifier, f func(float64) float64) *builtin {
	return &builtin{name: name, params: ast.Identifiers{"x"}, fn: func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		x, err := asNumber(i, vs[0], tr.loc, "x")
		if err != nil {
			return nil, err
		}
		return i.checkedNumber(f(x), tr.loc)
	}}
}

func biPow(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	x, err := asNumber(i, vs[0], tr.loc, "x")
	if err != nil {
		return nil, err
	}
	n, err := asNumber(i, vs[1], tr.loc, "n")
	if err != nil {
		return nil, err
	}
	return i.checkedNumber(math.Pow(x, n), tr.loc)
}

func biModulo(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	x, err := asNumber(i, vs[0], tr.loc, "a")
	if err != nil {
		return nil, err
	}
	y, err := asNumber(i, vs[1], tr.loc, "b")
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, i.runtimeError(tr.loc, "Division by zero.")
	}
	return i.checkedNumber(math.Mod(x, y), tr.loc)
}

func biMantissa(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	x, err := asNumber(i, vs[0], tr.loc, "x")
	if err != nil {
		return nil, err
	}
	frac, _ := math.Frexp(x)
	return makeValueNumber(frac), nil
}

func biExponent(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	x, err := asNumber(i, vs[0], tr.loc, "x")
	if err != nil {
		return nil, err
	}
	_, exp := math.Frexp(x)
	return makeValueNumber(float64(exp)), nil
}

// --- type introspection -------------------------------------------------

func biType(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	return makeValueString(vs[0].typename()), nil
}

func biLength(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	switch v := vs[0].(type) {
	case *valueString:
		return makeValueNumber(float64(v.length())), nil
	case *valueArray:
		return makeValueNumber(float64(len(v.elements))), nil
	case objectValue:
		return makeValueNumber(float64(len(visibleFieldNames(v)))), nil
	case Function:
		return makeValueNumber(float64(len(v.Parameters()))), nil
	default:
		return nil, i.runtimeErrorf(tr.loc, "length requires a string, array, object, or function, got %s", v.typename())
	}
}

func isTypeBuiltin(name ast.Identifier, want string) *builtin {
	return &builtin{name: name, params: ast.Identifiers{"x"}, fn: func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		return makeValueBoolean(vs[0].typename() == want), nil
	}}
}

// --- array/object helpers the desugarer depends on ---------------------

// biFlatMap backs both `for`-clause array comprehensions and the
// array-before-merge step of object comprehensions (desugar.go wraps
// whichever is appropriate in `$flatMap(fn, arr)`). Applying fn to a
// scalar element appends it; applying it to an array splices the array's
// own elements in -- the two desugared shapes distinguish themselves by
// what fn itself returns (a single-field object for the object case).
func biFlatMap(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[0], tr.loc, "$flatMap function")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "$flatMap array")
	if err != nil {
		return nil, err
	}
	var out []*Thunk
	for _, elemThunk := range arr.elements {
		rv, err := i.applyFunc(fn, tr.loc, elemThunk)
		if err != nil {
			return nil, err
		}
		switch r := rv.(type) {
		case *valueArray:
			out = append(out, r.elements...)
		default:
			out = append(out, readyThunk(i.heap, rv))
		}
	}
	return makeValueArray(out), nil
}

// biObjectFlatMerge implements the final merge step of a multi-clause
// object comprehension: desugar.go produces an array of one-field
// DesugaredObjects (one per loop iteration surviving its `if` clauses,
// already lazy via biFlatMap above) and this folds them into one object
// via `+`, later iterations' fields winning over earlier ones -- the same
// priority rule ordinary `+` on objects uses.
func biObjectFlatMerge(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[0], tr.loc, "$objectFlatMerge array")
	if err != nil {
		return nil, err
	}
	var acc objectValue = newSimpleObject(i.heap, nil)
	first := true
	for _, elemThunk := range arr.elements {
		ev, err := i.force(elemThunk, tr.loc, "")
		if err != nil {
			return nil, err
		}
		obj, err := asObject(i, ev, tr.loc, "object comprehension body")
		if err != nil {
			return nil, err
		}
		if first {
			acc = obj
			first = false
			continue
		}
		acc = makeValueExtendedObject(i.heap, acc, obj)
	}
	return acc, nil
}

func biMakeArray(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	szF, err := asNumber(i, vs[0], tr.loc, "sz")
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[1], tr.loc, "func")
	if err != nil {
		return nil, err
	}
	sz := int(szF)
	if sz < 0 {
		return nil, i.runtimeError(tr.loc, "makeArray size must be non-negative")
	}
	var fnRoots []heap.Entity
	if e, ok := fn.(heap.Entity); ok {
		fnRoots = append(fnRoots, e)
	}
	elems := make([]*Thunk, sz)
	for idx := 0; idx < sz; idx++ {
		idx := idx
		elems[idx] = newNativeThunk(i.heap, func(ii *interpreter) (Value, error) {
			return ii.applyFunc(fn, tr.loc, readyThunk(ii.heap, makeValueNumber(float64(idx))))
		}, fnRoots...)
	}
	return makeValueArray(elems), nil
}

func biFilter(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[0], tr.loc, "func")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	var kept []*Thunk
	for _, elemThunk := range arr.elements {
		keepV, err := i.applyFunc(fn, tr.loc, elemThunk)
		if err != nil {
			return nil, err
		}
		keep, err := asBool(i, keepV, tr.loc, "filter function result")
		if err != nil {
			return nil, err
		}
		if keep {
			kept = append(kept, elemThunk)
		}
	}
	return makeValueArray(kept), nil
}

func biMap(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[0], tr.loc, "func")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	var fnRoots []heap.Entity
	if e, ok := fn.(heap.Entity); ok {
		fnRoots = append(fnRoots, e)
	}
	out := make([]*Thunk, len(arr.elements))
	for idx, elemThunk := range arr.elements {
		elemThunk := elemThunk
		roots := make([]heap.Entity, len(fnRoots), len(fnRoots)+1)
		copy(roots, fnRoots)
		roots = append(roots, elemThunk)
		out[idx] = newNativeThunk(i.heap, func(ii *interpreter) (Value, error) {
			return ii.applyFunc(fn, tr.loc, elemThunk)
		}, roots...)
	}
	return makeValueArray(out), nil
}

func biFilterMap(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	filterFn, err := asFunc(i, vs[0], tr.loc, "filter_func")
	if err != nil {
		return nil, err
	}
	mapFn, err := asFunc(i, vs[1], tr.loc, "map_func")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[2], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	var out []*Thunk
	for _, elemThunk := range arr.elements {
		keepV, err := i.applyFunc(filterFn, tr.loc, elemThunk)
		if err != nil {
			return nil, err
		}
		keep, err := asBool(i, keepV, tr.loc, "filterMap filter result")
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		elemThunk := elemThunk
		var roots []heap.Entity
		if e, ok := mapFn.(heap.Entity); ok {
			roots = append(roots, e)
		}
		roots = append(roots, elemThunk)
		out = append(out, newNativeThunk(i.heap, func(ii *interpreter) (Value, error) {
			return ii.applyFunc(mapFn, tr.loc, elemThunk)
		}, roots...))
	}
	return makeValueArray(out), nil
}

func biFoldl(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[0], tr.loc, "func")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	acc := readyThunk(i.heap, vs[2])
	for _, elemThunk := range arr.elements {
		v, err := i.applyFunc(fn, tr.loc, acc, elemThunk)
		if err != nil {
			return nil, err
		}
		acc = readyThunk(i.heap, v)
	}
	return acc.value, nil
}

func biFoldr(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fn, err := asFunc(i, vs[0], tr.loc, "func")
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	acc := readyThunk(i.heap, vs[2])
	for idx := len(arr.elements) - 1; idx >= 0; idx-- {
		v, err := i.applyFunc(fn, tr.loc, arr.elements[idx], acc)
		if err != nil {
			return nil, err
		}
		acc = readyThunk(i.heap, v)
	}
	return acc.value, nil
}

func biRange(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	fromF, err := asNumber(i, vs[0], tr.loc, "from")
	if err != nil {
		return nil, err
	}
	toF, err := asNumber(i, vs[1], tr.loc, "to")
	if err != nil {
		return nil, err
	}
	from, to := int(fromF), int(toF)
	if to < from {
		return makeValueArray(nil), nil
	}
	elems := make([]*Thunk, 0, to-from+1)
	for n := from; n <= to; n++ {
		elems = append(elems, readyThunk(i.heap, makeValueNumber(float64(n))))
	}
	return makeValueArray(elems), nil
}

func biRepeat(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	countF, err := asNumber(i, vs[1], tr.loc, "count")
	if err != nil {
		return nil, err
	}
	count := int(countF)
	if count < 0 {
		return nil, i.runtimeError(tr.loc, "repeat count must be non-negative")
	}
	switch v := vs[0].(type) {
	case *valueArray:
		out := make([]*Thunk, 0, len(v.elements)*count)
		for n := 0; n < count; n++ {
			out = append(out, v.elements...)
		}
		return makeValueArray(out), nil
	case *valueString:
		var sb []rune
		r := v.flatten()
		for n := 0; n < count; n++ {
			sb = append(sb, r...)
		}
		return makeValueStringRunes(sb), nil
	default:
		return nil, i.runtimeErrorf(tr.loc, "repeat requires an array or string, got %s", v.typename())
	}
}

func biReverse(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[0], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	out := make([]*Thunk, len(arr.elements))
	for idx, t := range arr.elements {
		out[len(out)-1-idx] = t
	}
	return makeValueArray(out), nil
}

// valueLess orders two Jsonnet values of the same comparable type (number
// or string), the ordering std.sort's default key function relies on.
func (i *interpreter) valueLess(a, b Value, loc ast.LocationRange) (bool, error) {
	switch l := a.(type) {
	case *valueNumber:
		r, ok := b.(*valueNumber)
		if !ok {
			return false, i.runtimeErrorf(loc, "cannot compare number and %s", b.typename())
		}
		return l.value < r.value, nil
	case *valueString:
		r, ok := b.(*valueString)
		if !ok {
			return false, i.runtimeErrorf(loc, "cannot compare string and %s", b.typename())
		}
		return stringLessThan(l, r), nil
	default:
		return false, i.runtimeErrorf(loc, "sort requires numbers or strings, got %s", a.typename())
	}
}

func biSort(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[0], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	keyFn, hasKeyFn := vs[1].(Function)
	vals := make([]Value, len(arr.elements))
	for idx, t := range arr.elements {
		v, err := i.force(t, tr.loc, "")
		if err != nil {
			return nil, err
		}
		vals[idx] = v
	}
	keys := vals
	if hasKeyFn {
		keys = make([]Value, len(vals))
		for idx, v := range vals {
			kv, err := i.applyFunc(keyFn, tr.loc, readyThunk(i.heap, v))
			if err != nil {
				return nil, err
			}
			keys[idx] = kv
		}
	}
	order := make([]int, len(vals))
	for idx := range order {
		order[idx] = idx
	}
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		less, err := i.valueLess(keys[order[a]], keys[order[b]], tr.loc)
		if err != nil {
			sortErr = err
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]*Thunk, len(vals))
	for idx, pos := range order {
		out[idx] = readyThunk(i.heap, vals[pos])
	}
	return makeValueArray(out), nil
}

func biUniq(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[0], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	keyFn, hasKeyFn := vs[1].(Function)
	var out []*Thunk
	var prevKey Value
	for _, t := range arr.elements {
		v, err := i.force(t, tr.loc, "")
		if err != nil {
			return nil, err
		}
		key := v
		if hasKeyFn {
			kv, err := i.applyFunc(keyFn, tr.loc, readyThunk(i.heap, v))
			if err != nil {
				return nil, err
			}
			key = kv
		}
		if prevKey != nil {
			eq, err := i.valuesEqual(prevKey, key, tr.loc)
			if err != nil {
				return nil, err
			}
			if eq {
				continue
			}
		}
		out = append(out, t)
		prevKey = key
	}
	return makeValueArray(out), nil
}

func biJoin(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[1], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	switch sep := vs[0].(type) {
	case *valueString:
		var out []rune
		first := true
		for _, t := range arr.elements {
			v, err := i.force(t, tr.loc, "")
			if err != nil {
				return nil, err
			}
			if _, isNull := v.(*valueNull); isNull {
				continue
			}
			s, err := asString(i, v, tr.loc, "join element")
			if err != nil {
				return nil, err
			}
			if !first {
				out = append(out, sep.flatten()...)
			}
			out = append(out, s.flatten()...)
			first = false
		}
		return makeValueStringRunes(out), nil
	case *valueArray:
		var out []*Thunk
		first := true
		for _, t := range arr.elements {
			v, err := i.force(t, tr.loc, "")
			if err != nil {
				return nil, err
			}
			if _, isNull := v.(*valueNull); isNull {
				continue
			}
			inner, err := asArray(i, v, tr.loc, "join element")
			if err != nil {
				return nil, err
			}
			if !first {
				out = append(out, sep.elements...)
			}
			out = append(out, inner.elements...)
			first = false
		}
		return makeValueArray(out), nil
	default:
		return nil, i.runtimeErrorf(tr.loc, "join separator must be a string or array, got %s", sep.typename())
	}
}

// --- object helpers ------------------------------------------------------

func visibleFieldExists(root objectValue, name string) bool {
	h, found := effectiveHide(root, name)
	return found && h != ast.ObjectFieldHidden
}

func biObjectHas(withHidden bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		obj, err := asObject(i, vs[0], tr.loc, "o")
		if err != nil {
			return nil, err
		}
		name, err := asString(i, vs[1], tr.loc, "f")
		if err != nil {
			return nil, err
		}
		if withHidden {
			return makeValueBoolean(fieldExists(obj, name.goString(), 0)), nil
		}
		return makeValueBoolean(visibleFieldExists(obj, name.goString())), nil
	}
}

func biObjectFields(withHidden bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		obj, err := asObject(i, vs[0], tr.loc, "o")
		if err != nil {
			return nil, err
		}
		var names []string
		if withHidden {
			names = objectFieldNames(obj)
		} else {
			names = visibleFieldNames(obj)
		}
		elems := make([]*Thunk, len(names))
		for idx, n := range names {
			elems[idx] = readyThunk(i.heap, makeValueString(n))
		}
		return makeValueArray(elems), nil
	}
}

func biGet(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	obj, err := asObject(i, vs[0], tr.loc, "o")
	if err != nil {
		return nil, err
	}
	name, err := asString(i, vs[1], tr.loc, "f")
	if err != nil {
		return nil, err
	}
	includeHidden, err := asBool(i, vs[3], tr.loc, "includeHidden")
	if err != nil {
		return nil, err
	}
	exists := fieldExists(obj, name.goString(), 0)
	if exists && !includeHidden && !visibleFieldExists(obj, name.goString()) {
		exists = false
	}
	if !exists {
		return vs[2], nil
	}
	return i.indexObject(obj, name.goString(), tr.loc)
}

// --- codepoint/char ------------------------------------------------------

func biCodepoint(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	runes := s.flatten()
	if len(runes) != 1 {
		return nil, i.runtimeError(tr.loc, "codepoint requires a single-character string")
	}
	return makeValueNumber(float64(runes[0])), nil
}

func biChar(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	n, err := asNumber(i, vs[0], tr.loc, "n")
	if err != nil {
		return nil, err
	}
	r := rune(n)
	if !utf8.ValidRune(r) {
		return nil, i.runtimeErrorf(tr.loc, "Invalid codepoint %d", int(n))
	}
	return makeValueStringRunes([]rune{r}), nil
}

// --- string helpers --------------------------------------------------------

func biSubstr(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	fromF, err := asNumber(i, vs[1], tr.loc, "from")
	if err != nil {
		return nil, err
	}
	lenF, err := asNumber(i, vs[2], tr.loc, "len")
	if err != nil {
		return nil, err
	}
	runes := s.flatten()
	from := int(fromF)
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	end := from + int(lenF)
	if end > len(runes) {
		end = len(runes)
	}
	if end < from {
		end = from
	}
	out := make([]rune, end-from)
	copy(out, runes[from:end])
	return makeValueStringRunes(out), nil
}

func biStringHas(prefix bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		a, err := asString(i, vs[0], tr.loc, "a")
		if err != nil {
			return nil, err
		}
		b, err := asString(i, vs[1], tr.loc, "b")
		if err != nil {
			return nil, err
		}
		ar, br := a.flatten(), b.flatten()
		if len(br) > len(ar) {
			return makeValueBoolean(false), nil
		}
		var slice []rune
		if prefix {
			slice = ar[:len(br)]
		} else {
			slice = ar[len(ar)-len(br):]
		}
		if len(slice) != len(br) {
			return makeValueBoolean(false), nil
		}
		for idx := range slice {
			if slice[idx] != br[idx] {
				return makeValueBoolean(false), nil
			}
		}
		return makeValueBoolean(true), nil
	}
}

func biSplit(limit bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		s, err := asString(i, vs[0], tr.loc, "str")
		if err != nil {
			return nil, err
		}
		c, err := asString(i, vs[1], tr.loc, "c")
		if err != nil {
			return nil, err
		}
		maxSplits := -1
		if limit {
			mF, err := asNumber(i, vs[2], tr.loc, "maxsplits")
			if err != nil {
				return nil, err
			}
			maxSplits = int(mF)
		}
		parts := splitRunes(s.flatten(), c.flatten(), maxSplits)
		elems := make([]*Thunk, len(parts))
		for idx, p := range parts {
			elems[idx] = readyThunk(i.heap, makeValueStringRunes(p))
		}
		return makeValueArray(elems), nil
	}
}

func splitRunes(s, sep []rune, maxSplits int) [][]rune {
	if len(sep) == 0 {
		return [][]rune{s}
	}
	var out [][]rune
	start := 0
	for i := 0; i+len(sep) <= len(s); {
		if maxSplits >= 0 && len(out) >= maxSplits {
			break
		}
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			out = append(out, s[start:i])
			i += len(sep)
			start = i
			continue
		}
		i++
	}
	out = append(out, s[start:])
	return out
}

func biStrReplace(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	from, err := asString(i, vs[1], tr.loc, "from")
	if err != nil {
		return nil, err
	}
	to, err := asString(i, vs[2], tr.loc, "to")
	if err != nil {
		return nil, err
	}
	fromR := from.flatten()
	if len(fromR) == 0 {
		return s, nil
	}
	src := s.flatten()
	toR := to.flatten()
	var out []rune
	for i2 := 0; i2 < len(src); {
		if i2+len(fromR) <= len(src) && runesEqual(src[i2:i2+len(fromR)], fromR) {
			out = append(out, toR...)
			i2 += len(fromR)
			continue
		}
		out = append(out, src[i2])
		i2++
	}
	return makeValueStringRunes(out), nil
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func asciiCaseBuiltin(upper bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		s, err := asString(i, vs[0], tr.loc, "str")
		if err != nil {
			return nil, err
		}
		runes := append([]rune(nil), s.flatten()...)
		for idx, r := range runes {
			if upper && r >= 'a' && r <= 'z' {
				runes[idx] = r - ('a' - 'A')
			} else if !upper && r >= 'A' && r <= 'Z' {
				runes[idx] = r + ('a' - 'A')
			}
		}
		return makeValueStringRunes(runes), nil
	}
}

func biStringChars(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	runes := s.flatten()
	elems := make([]*Thunk, len(runes))
	for idx, r := range runes {
		elems[idx] = readyThunk(i.heap, makeValueStringRunes([]rune{r}))
	}
	return makeValueArray(elems), nil
}

func biMd5(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := asString(i, vs[0], tr.loc, "s")
	if err != nil {
		return nil, err
	}
	sum := md5.Sum([]byte(s.goString()))
	return makeValueString(hex.EncodeToString(sum[:])), nil
}

// --- numeric reductions ----------------------------------------------------

func biAbs(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	x, err := asNumber(i, vs[0], tr.loc, "n")
	if err != nil {
		return nil, err
	}
	return makeValueNumber(math.Abs(x)), nil
}

func minMaxBuiltin(wantMax bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		a, err := asNumber(i, vs[0], tr.loc, "a")
		if err != nil {
			return nil, err
		}
		b, err := asNumber(i, vs[1], tr.loc, "b")
		if err != nil {
			return nil, err
		}
		if wantMax {
			return makeValueNumber(math.Max(a, b)), nil
		}
		return makeValueNumber(math.Min(a, b)), nil
	}
}

// --- equality/assertions ---------------------------------------------------

func biPrimitiveEquals(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	if _, ok := vs[0].(Function); ok {
		return nil, i.runtimeError(tr.loc, "Cannot test equality of functions")
	}
	if _, ok := vs[1].(Function); ok {
		return nil, i.runtimeError(tr.loc, "Cannot test equality of functions")
	}
	if vs[0].typename() != vs[1].typename() {
		return makeValueBoolean(false), nil
	}
	switch a := vs[0].(type) {
	case *valueNull:
		return makeValueBoolean(true), nil
	case *valueBoolean:
		return makeValueBoolean(a.value == vs[1].(*valueBoolean).value), nil
	case *valueNumber:
		return makeValueBoolean(a.value == vs[1].(*valueNumber).value), nil
	case *valueString:
		return makeValueBoolean(stringEqual(a, vs[1].(*valueString))), nil
	default:
		return nil, i.runtimeErrorf(tr.loc, "primitiveEquals operates on primitive types, got %s", a.typename())
	}
}

func biEquals(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	eq, err := i.valuesEqual(vs[0], vs[1], tr.loc)
	if err != nil {
		return nil, err
	}
	return makeValueBoolean(eq), nil
}

// --- manifestation -----------------------------------------------------

func biToString(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	s, err := i.valueToString(vs[0], tr.loc)
	if err != nil {
		return nil, err
	}
	return makeValueString(s), nil
}

func biManifestJSON(withIndent bool) func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	return func(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
		vs, err := i.builtinArgs(args, tr.loc)
		if err != nil {
			return nil, err
		}
		indent := manifestIndentStep
		if withIndent {
			s, err := asString(i, vs[1], tr.loc, "indent")
			if err != nil {
				return nil, err
			}
			indent = s.goString()
		}
		var buf bytes.Buffer
		if err := i.manifestJSONIndent(vs[0], "", indent, &buf); err != nil {
			return nil, err
		}
		return makeValueString(buf.String()), nil
	}
}

// biTrace writes msg to stderr and returns rest unchanged. The side
// effect is debug-only and does not affect the returned value.
func biTrace(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	msg, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	i.traceOut(tr.loc, msg.goString())
	return vs[1], nil
}

// --- extVar --------------------------------------------------------------

func biExtVar(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	name, err := asString(i, vs[0], tr.loc, "x")
	if err != nil {
		return nil, err
	}
	v, ok := i.extVars[ast.Identifier(name.goString())]
	if !ok {
		return nil, i.runtimeErrorf(tr.loc, "Undefined external variable: %s", name.goString())
	}
	return v, nil
}

// --- merge/prune -----------------------------------------------------------

// biMergePatch implements RFC 7386 JSON Merge Patch: a patch object recursively overlays target, dropping
// keys whose patch value is null; a non-object patch replaces target
// wholesale. Works on a fully-forced Go-native copy, which is adequate
// for the config-merging use case this builtin targets.
func biMergePatch(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	merged, err := i.mergePatch(vs[0], vs[1], tr.loc)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

func (i *interpreter) mergePatch(target, patch Value, loc ast.LocationRange) (Value, error) {
	patchObj, ok := patch.(objectValue)
	if !ok {
		return patch, nil
	}
	baseFields := map[string]*Thunk{}
	if targetObj, ok := target.(objectValue); ok {
		for _, name := range visibleFieldNames(targetObj) {
			v, err := i.indexObject(targetObj, name, loc)
			if err != nil {
				return nil, err
			}
			baseFields[name] = readyThunk(i.heap, v)
		}
	}
	for _, name := range visibleFieldNames(patchObj) {
		pv, err := i.indexObject(patchObj, name, loc)
		if err != nil {
			return nil, err
		}
		if _, isNull := pv.(*valueNull); isNull {
			delete(baseFields, name)
			continue
		}
		var base Value
		if bt, ok := baseFields[name]; ok {
			base = bt.value
		}
		mv, err := i.mergePatch(base, pv, loc)
		if err != nil {
			return nil, err
		}
		baseFields[name] = readyThunk(i.heap, mv)
	}
	return nativeObject(i.heap, baseFields), nil
}

// biPrune recursively drops null values and empty arrays/objects (the
// supplemented std.prune), a common post-processing step for generated
// configuration trees.
func biPrune(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	pruned, err := i.prune(vs[0], tr.loc)
	if err != nil {
		return nil, err
	}
	return pruned, nil
}

func (i *interpreter) prune(v Value, loc ast.LocationRange) (Value, error) {
	switch val := v.(type) {
	case *valueNull:
		return val, nil
	case *valueArray:
		var out []*Thunk
		for _, t := range val.elements {
			ev, err := i.force(t, loc, "")
			if err != nil {
				return nil, err
			}
			if isEmptyAfterPrune(ev) {
				continue
			}
			pv, err := i.prune(ev, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, readyThunk(i.heap, pv))
		}
		return makeValueArray(out), nil
	case objectValue:
		fields := map[string]*Thunk{}
		for _, name := range visibleFieldNames(val) {
			ev, err := i.indexObject(val, name, loc)
			if err != nil {
				return nil, err
			}
			if isEmptyAfterPrune(ev) {
				continue
			}
			pv, err := i.prune(ev, loc)
			if err != nil {
				return nil, err
			}
			fields[name] = readyThunk(i.heap, pv)
		}
		return nativeObject(i.heap, fields), nil
	default:
		return v, nil
	}
}

func isEmptyAfterPrune(v Value) bool {
	switch val := v.(type) {
	case *valueNull:
		return true
	case *valueArray:
		return len(val.elements) == 0
	case objectValue:
		return len(visibleFieldNames(val)) == 0
	default:
		return false
	}
}

// --- format ------------------------------------------------------------

// biFormat is the Go entry point for `std.format(str, vals)`; the `%`
// binary operator (operators.go's applyBinary, BopPercent case) calls
// straight into formatString so `"x = %d" % 3` and
// `std.format("x = %d", 3)` share one implementation.
func biFormat(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	str, err := asString(i, vs[0], tr.loc, "str")
	if err != nil {
		return nil, err
	}
	return i.formatString(str, vs[1], tr.loc)
}

// formatString implements Python-`%`-style string formatting: each `%`
// directive in format consumes one value from vals (a positional array,
// a single bare value treated as a one-element array, or an object whose
// fields are consumed by `%(name)verb` directives).
func (i *interpreter) formatString(format *valueString, vals Value, loc ast.LocationRange) (Value, error) {
	runes := format.flatten()

	var positional []Value
	var named objectValue
	if obj, ok := vals.(objectValue); ok {
		named = obj
	} else if arr, ok := vals.(*valueArray); ok {
		positional = make([]Value, len(arr.elements))
		for idx, t := range arr.elements {
			v, err := i.force(t, loc, "")
			if err != nil {
				return nil, err
			}
			positional[idx] = v
		}
	} else {
		positional = []Value{vals}
	}
	next := 0
	takeNext := func() (Value, error) {
		if next >= len(positional) {
			return nil, i.runtimeError(loc, "Not enough values to format: "+strconv.Itoa(len(positional))+" given")
		}
		v := positional[next]
		next++
		return v, nil
	}

	var out bytes.Buffer
	n := len(runes)
	for idx := 0; idx < n; idx++ {
		r := runes[idx]
		if r != '%' {
			out.WriteRune(r)
			continue
		}
		idx++
		if idx >= n {
			return nil, i.runtimeError(loc, "Truncated format code")
		}
		if runes[idx] == '%' {
			out.WriteByte('%')
			continue
		}

		var fieldName string
		if runes[idx] == '(' {
			end := idx + 1
			for end < n && runes[end] != ')' {
				end++
			}
			if end >= n {
				return nil, i.runtimeError(loc, "Truncated format code")
			}
			fieldName = string(runes[idx+1 : end])
			idx = end + 1
		}

		flagStart := idx
		for idx < n && strings.ContainsRune("-+ 0#", runes[idx]) {
			idx++
		}
		flags := string(runes[flagStart:idx])

		widthStart := idx
		for idx < n && runes[idx] >= '0' && runes[idx] <= '9' {
			idx++
		}
		width := string(runes[widthStart:idx])

		precision := ""
		hasPrecision := false
		if idx < n && runes[idx] == '.' {
			hasPrecision = true
			idx++
			precStart := idx
			for idx < n && runes[idx] >= '0' && runes[idx] <= '9' {
				idx++
			}
			precision = string(runes[precStart:idx])
		}
		if idx >= n {
			return nil, i.runtimeError(loc, "Truncated format code")
		}
		verb := runes[idx]

		var v Value
		var err error
		if fieldName != "" {
			if named == nil {
				return nil, i.runtimeError(loc, "Format requires an object for its values when field names are used")
			}
			v, err = i.indexObject(named, fieldName, loc)
		} else {
			v, err = takeNext()
		}
		if err != nil {
			return nil, err
		}

		spec := "%" + flags + width
		if hasPrecision {
			spec += "." + precision
		}
		piece, err := i.formatOne(spec, verb, v, loc)
		if err != nil {
			return nil, err
		}
		out.WriteString(piece)
	}
	return makeValueString(out.String()), nil
}

// formatOne renders a single already-parsed `%<flags><width>[.<prec>]<verb>`
// directive against one forced value, reusing Go's fmt verbs for the
// numeric/string formatting machinery itself.
func (i *interpreter) formatOne(spec string, verb rune, v Value, loc ast.LocationRange) (string, error) {
	switch verb {
	case 'd', 'i', 'u':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"d", int64(n)), nil
	case 'o':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"o", int64(n)), nil
	case 'x':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"x", int64(n)), nil
	case 'X':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"X", int64(n)), nil
	case 'e', 'E':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+string(verb), n), nil
	case 'f', 'F':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"f", n), nil
	case 'g', 'G':
		n, err := asNumber(i, v, loc, "format value")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+string(verb), n), nil
	case 'c':
		switch vv := v.(type) {
		case *valueNumber:
			return fmt.Sprintf(spec+"c", rune(int64(vv.value))), nil
		case *valueString:
			return vv.goString(), nil
		default:
			return "", i.runtimeErrorf(loc, "Format required number or single character string, got %s", v.typename())
		}
	case 's':
		s, err := i.valueToString(v, loc)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(spec+"s", s), nil
	default:
		return "", i.runtimeErrorf(loc, "Unknown format code: %c", verb)
	}
}

// --- flatten ---------------------------------------------------------------

func biFlattenArrays(i *interpreter, tr traceElement, args []*Thunk) (Value, error) {
	vs, err := i.builtinArgs(args, tr.loc)
	if err != nil {
		return nil, err
	}
	arr, err := asArray(i, vs[0], tr.loc, "arr")
	if err != nil {
		return nil, err
	}
	var out []*Thunk
	for _, t := range arr.elements {
		ev, err := i.force(t, tr.loc, "")
		if err != nil {
			return nil, err
		}
		inner, err := asArray(i, ev, tr.loc, "flattenArrays element")
		if err != nil {
			return nil, err
		}
		out = append(out, inner.elements...)
	}
	return makeValueArray(out), nil
}

// builtinTable is every host-implemented primitive the evaluator can
// dispatch an *ast.BuiltinFunction to, keyed by the stable name desugar.go
// and std.go's std object both reference.
var builtinTable map[string]*builtin

func init() {
	builtinTable = map[string]*builtin{
		"makeArray":        {name: "makeArray", params: ast.Identifiers{"sz", "func"}, fn: biMakeArray},
		"pow":              {name: "pow", params: ast.Identifiers{"x", "n"}, fn: biPow},
		"floor":            mathUnary("floor", math.Floor),
		"ceil":             mathUnary("ceil", math.Ceil),
		"sqrt":             mathUnary("sqrt", math.Sqrt),
		"sin":              mathUnary("sin", math.Sin),
		"cos":              mathUnary("cos", math.Cos),
		"tan":              mathUnary("tan", math.Tan),
		"asin":             mathUnary("asin", math.Asin),
		"acos":             mathUnary("acos", math.Acos),
		"atan":             mathUnary("atan", math.Atan),
		"log":              mathUnary("log", math.Log),
		"exp":              mathUnary("exp", math.Exp),
		"mantissa":         {name: "mantissa", params: ast.Identifiers{"x"}, fn: biMantissa},
		"exponent":         {name: "exponent", params: ast.Identifiers{"x"}, fn: biExponent},
		"modulo":           {name: "modulo", params: ast.Identifiers{"a", "b"}, fn: biModulo},
		"abs":              {name: "abs", params: ast.Identifiers{"n"}, fn: biAbs},
		"max":              {name: "max", params: ast.Identifiers{"a", "b"}, fn: minMaxBuiltin(true)},
		"min":              {name: "min", params: ast.Identifiers{"a", "b"}, fn: minMaxBuiltin(false)},
		"type":             {name: "type", params: ast.Identifiers{"x"}, fn: biType},
		"length":           {name: "length", params: ast.Identifiers{"x"}, fn: biLength},
		"isString":         isTypeBuiltin("isString", "string"),
		"isNumber":         isTypeBuiltin("isNumber", "number"),
		"isBoolean":        isTypeBuiltin("isBoolean", "boolean"),
		"isArray":          isTypeBuiltin("isArray", "array"),
		"isObject":         isTypeBuiltin("isObject", "object"),
		"isFunction":       isTypeBuiltin("isFunction", "function"),
		"filter":           {name: "filter", params: ast.Identifiers{"func", "arr"}, fn: biFilter},
		"map":              {name: "map", params: ast.Identifiers{"func", "arr"}, fn: biMap},
		"filterMap":        {name: "filterMap", params: ast.Identifiers{"filter_func", "map_func", "arr"}, fn: biFilterMap},
		"foldl":            {name: "foldl", params: ast.Identifiers{"func", "arr", "init"}, fn: biFoldl},
		"foldr":            {name: "foldr", params: ast.Identifiers{"func", "arr", "init"}, fn: biFoldr},
		"range":            {name: "range", params: ast.Identifiers{"from", "to"}, fn: biRange},
		"repeat":           {name: "repeat", params: ast.Identifiers{"what", "count"}, fn: biRepeat},
		"reverse":          {name: "reverse", params: ast.Identifiers{"arr"}, fn: biReverse},
		"sort":             {name: "sort", params: ast.Identifiers{"arr", "keyF"}, fn: biSort},
		"uniq":             {name: "uniq", params: ast.Identifiers{"arr", "keyF"}, fn: biUniq},
		"join":             {name: "join", params: ast.Identifiers{"sep", "arr"}, fn: biJoin},
		"flattenArrays":    {name: "flattenArrays", params: ast.Identifiers{"arr"}, fn: biFlattenArrays},
		"objectHas":        {name: "objectHas", params: ast.Identifiers{"o", "f"}, fn: biObjectHas(false)},
		"objectHasAll":     {name: "objectHasAll", params: ast.Identifiers{"o", "f"}, fn: biObjectHas(true)},
		"objectFields":     {name: "objectFields", params: ast.Identifiers{"o"}, fn: biObjectFields(false)},
		"objectFieldsAll":  {name: "objectFieldsAll", params: ast.Identifiers{"o"}, fn: biObjectFields(true)},
		"get":              {name: "get", params: ast.Identifiers{"o", "f", "default", "includeHidden"}, fn: biGet},
		"codepoint":        {name: "codepoint", params: ast.Identifiers{"str"}, fn: biCodepoint},
		"char":             {name: "char", params: ast.Identifiers{"n"}, fn: biChar},
		"substr":           {name: "substr", params: ast.Identifiers{"str", "from", "len"}, fn: biSubstr},
		"startsWith":       {name: "startsWith", params: ast.Identifiers{"a", "b"}, fn: biStringHas(true)},
		"endsWith":         {name: "endsWith", params: ast.Identifiers{"a", "b"}, fn: biStringHas(false)},
		"split":            {name: "split", params: ast.Identifiers{"str", "c"}, fn: biSplit(false)},
		"splitLimit":       {name: "splitLimit", params: ast.Identifiers{"str", "c", "maxsplits"}, fn: biSplit(true)},
		"strReplace":       {name: "strReplace", params: ast.Identifiers{"str", "from", "to"}, fn: biStrReplace},
		"asciiUpper":       {name: "asciiUpper", params: ast.Identifiers{"str"}, fn: asciiCaseBuiltin(true)},
		"asciiLower":       {name: "asciiLower", params: ast.Identifiers{"str"}, fn: asciiCaseBuiltin(false)},
		"stringChars":      {name: "stringChars", params: ast.Identifiers{"str"}, fn: biStringChars},
		"md5":              {name: "md5", params: ast.Identifiers{"s"}, fn: biMd5},
		"primitiveEquals":  {name: "primitiveEquals", params: ast.Identifiers{"x", "y"}, fn: biPrimitiveEquals},
		"equals":           {name: "equals", params: ast.Identifiers{"x", "y"}, fn: biEquals},
		"toString":         {name: "toString", params: ast.Identifiers{"a"}, fn: biToString},
		"manifestJson":     {name: "manifestJson", params: ast.Identifiers{"value"}, fn: biManifestJSON(false)},
		"manifestJsonEx":   {name: "manifestJsonEx", params: ast.Identifiers{"value", "indent"}, fn: biManifestJSON(true)},
		"trace":            {name: "trace", params: ast.Identifiers{"str", "rest"}, fn: biTrace},
		"extVar":           {name: "extVar", params: ast.Identifiers{"x"}, fn: biExtVar},
		"mergePatch":       {name: "mergePatch", params: ast.Identifiers{"target", "patch"}, fn: biMergePatch},
		"prune":            {name: "prune", params: ast.Identifiers{"a"}, fn: biPrune},
		"format":           {name: "format", params: ast.Identifiers{"str", "vals"}, fn: biFormat},
		"$flatMap":         {name: "$flatMap", params: ast.Identifiers{"func", "arr"}, fn: biFlatMap},
		"$objectFlatMerge": {name: "$objectFlatMerge", params: ast.Identifiers{"arr"}, fn: biObjectFlatMerge},
	}
}

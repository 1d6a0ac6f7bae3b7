/*
Copyright 2016 Google Inc. All rights reserved.

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

package ast

import "fmt"

// Location is a single point in a source file, used for diagnostics.
type Location struct {
	Line   int
	Column int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

func (l Location) IsSet() bool {
	return l.Line != 0
}

// LocationRange is the span of a node or token in a source file. Immutable
// once constructed; attached to every AST node and carried into stack
// frames for error reporting.
type LocationRange struct {
	FileName string
	Begin    Location
	End      Location
}

func (lr LocationRange) IsSet() bool {
	return lr.Begin.IsSet()
}

func (lr LocationRange) String() string {
	if !lr.Begin.IsSet() {
		return "<unknown>"
	}
	filename := lr.FileName
	if filename == "" {
		filename = "<input>"
	}
	if lr.Begin.Line == lr.End.Line {
		return fmt.Sprintf("%s:%d:%d-%d", filename, lr.Begin.Line, lr.Begin.Column, lr.End.Column)
	}
	return fmt.Sprintf("%s:%s-%s", filename, lr.Begin.String(), lr.End.String())
}

func MakeLocationRange(fileName string, begin, end Location) LocationRange {
	return LocationRange{FileName: fileName, Begin: begin, End: end}
}

// MakeLocationRangeMessage builds a LocationRange with no real position,
// used when an error needs to be attached to a synthetic frame (e.g.
// "During evaluation").
func MakeLocationRangeMessage(msg string) LocationRange {
	return LocationRange{FileName: msg}
}

// IdentifierSet is a small set of identifiers, used by static analysis to
// track which variables are bound and which are free.
type IdentifierSet struct {
	m map[Identifier]struct{}
}

func NewIdentifierSet(idents ...Identifier) IdentifierSet {
	s := IdentifierSet{m: make(map[Identifier]struct{}, len(idents))}
	for _, id := range idents {
		s.m[id] = struct{}{}
	}
	return s
}

func (s IdentifierSet) Contains(id Identifier) bool {
	_, ok := s.m[id]
	return ok
}

func (s *IdentifierSet) Add(id Identifier) {
	if s.m == nil {
		s.m = make(map[Identifier]struct{})
	}
	s.m[id] = struct{}{}
}

func (s *IdentifierSet) Remove(id Identifier) {
	delete(s.m, id)
}

func (s IdentifierSet) Clone() IdentifierSet {
	clone := make(map[Identifier]struct{}, len(s.m))
	for k := range s.m {
		clone[k] = struct{}{}
	}
	return IdentifierSet{m: clone}
}

func (s *IdentifierSet) Append(idents Identifiers) {
	for _, id := range idents {
		s.Add(id)
	}
}

// ToOrderedSlice returns the set's members sorted, so that two equal sets
// always produce the same free-variable annotation.
func (s IdentifierSet) ToOrderedSlice() Identifiers {
	result := make(Identifiers, 0, len(s.m))
	for id := range s.m {
		result = append(result, id)
	}
	// Simple insertion sort: identifier lists are small (a handful of free
	// variables per node) so this avoids importing sort for a one-liner.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j-1] > result[j]; j-- {
			result[j-1], result[j] = result[j], result[j-1]
		}
	}
	return result
}

// BuiltinFunction is a reference to a primitive function implemented by the
// host, identified by a stable name the evaluator looks up in its builtin
// table. It appears as the body of a hidden field of the `std` object and
// as the call target inside std's wrapper closures (see std.go), and as
// the call target of the $flatMap/$objectFlatMerge calls the desugarer
// builds for comprehensions; user programs cannot write one directly.
type BuiltinFunction struct {
	NodeBase
	Name   string
	Params Identifiers
}

func (n *BuiltinFunction) Type() ASTType {
	return AST_BUILTIN_FUNCTION
}

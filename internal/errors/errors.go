// Package errors defines the interpreter's two error taxonomies:
// StaticError (raised by the lexer/parser/desugarer/static analyzer, always
// carrying a source location) and the runtime trace types consumed by the
// evaluator's error reporting.
package errors

import (
	"fmt"
	"strings"

	"github.com/google/jsonnet-sub000/ast"
)

// StaticError represents an error found before evaluation begins:
// unterminated literal, unknown escape, malformed number, duplicate
// parameter, duplicate local, unbound variable, self/super outside an
// object, computed imports.
type StaticError struct {
	Loc ast.LocationRange
	Msg string
}

func (e *StaticError) Error() string {
	loc := "<unknown>"
	if e.Loc.IsSet() {
		loc = e.Loc.String()
	}
	return fmt.Sprintf("STATIC ERROR: %s: %s", loc, e.Msg)
}

func MakeStaticError(msg string, loc ast.LocationRange) *StaticError {
	return &StaticError{Loc: loc, Msg: msg}
}

// TraceFrame is one line of a runtime stack trace: a location plus the best
// available name for the thing executing there (closure parameter name,
// thunk identifier, or "anonymous").
type TraceFrame struct {
	Loc  ast.LocationRange
	Name string
}

// RuntimeError is raised by the evaluator: type mismatches, field lookup
// failures, division by zero, stack overflow, explicit `error` expressions,
// and so on. It always carries a best-effort stack trace, elided to
// maxTrace frames.
type RuntimeError struct {
	Msg        string
	StackTrace []TraceFrame
	MaxTrace   int
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString("RUNTIME ERROR: ")
	b.WriteString(e.Msg)
	max := e.MaxTrace
	if max <= 0 {
		max = len(e.StackTrace)
	}
	frames := e.StackTrace
	if len(frames) > max && max > 0 {
		head := max/2 + max%2
		tail := max / 2
		elided := make([]TraceFrame, 0, max+1)
		elided = append(elided, frames[:head]...)
		elided = append(elided, TraceFrame{Name: "..."})
		elided = append(elided, frames[len(frames)-tail:]...)
		frames = elided
	}
	for _, f := range frames {
		b.WriteString("\n\t")
		if f.Name == "..." {
			b.WriteString("...")
			continue
		}
		b.WriteString(f.Loc.String())
		b.WriteString("\t")
		name := f.Name
		if name == "" {
			name = "anonymous"
		}
		b.WriteString(name)
	}
	b.WriteString("\n")
	return b.String()
}

func MakeRuntimeError(msg string, stack []TraceFrame, maxTrace int) *RuntimeError {
	return &RuntimeError{Msg: msg, StackTrace: stack, MaxTrace: maxTrace}
}

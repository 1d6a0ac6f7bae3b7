package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/google/jsonnet-sub000/ast"
)

func frame(line int, name string) TraceFrame {
	return TraceFrame{
		Loc: ast.MakeLocationRange("prog.jsonnet",
			ast.Location{Line: line, Column: 1},
			ast.Location{Line: line, Column: 5}),
		Name: name,
	}
}

func TestStaticErrorFormat(t *testing.T) {
	err := MakeStaticError("Unknown variable: y",
		ast.MakeLocationRange("prog.jsonnet", ast.Location{Line: 3, Column: 7}, ast.Location{Line: 3, Column: 8}))
	assert.Equal(t, "STATIC ERROR: prog.jsonnet:3:7-8: Unknown variable: y", err.Error())
}

func TestStaticErrorWithoutLocation(t *testing.T) {
	err := MakeStaticError("boom", ast.LocationRange{})
	assert.Contains(t, err.Error(), "STATIC ERROR: <unknown>: boom")
}

func TestRuntimeErrorFormat(t *testing.T) {
	err := MakeRuntimeError("Division by zero.",
		[]TraceFrame{frame(2, "divide"), frame(9, "")}, 20)
	msg := err.Error()
	assert.True(t, strings.HasPrefix(msg, "RUNTIME ERROR: Division by zero.\n"))
	assert.Contains(t, msg, "\tprog.jsonnet:2:1-5\tdivide")
	assert.Contains(t, msg, "\tprog.jsonnet:9:1-5\tanonymous")
	assert.True(t, strings.HasSuffix(msg, "\n"))
}

func TestRuntimeErrorTraceElision(t *testing.T) {
	frames := make([]TraceFrame, 30)
	for i := range frames {
		frames[i] = frame(i+1, "f")
	}
	err := MakeRuntimeError("deep", frames, 6)
	msg := err.Error()

	assert.Contains(t, msg, "\t...")
	lines := strings.Split(strings.TrimSuffix(msg, "\n"), "\n")
	// Banner + 6 kept frames + the ellipsis line.
	assert.Len(t, lines, 8)
	// Most recent frames first, oldest last, middle elided.
	assert.Contains(t, lines[1], "prog.jsonnet:1:")
	assert.Contains(t, lines[len(lines)-1], "prog.jsonnet:30:")
}

func TestRuntimeErrorShortTraceNotElided(t *testing.T) {
	err := MakeRuntimeError("shallow", []TraceFrame{frame(1, "a"), frame(2, "b")}, 20)
	assert.NotContains(t, err.Error(), "...")
}

package jsonnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, snippet string) string {
	t.Helper()
	vm := MakeVM()
	out, err := vm.EvaluateAnonymousSnippet("<test>", snippet)
	require.NoError(t, err)
	return out
}

func TestEvaluateAnonymousSnippet_Literals(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"number", "1 + 2", "3\n"},
		{"string concat", `"a" + "b"`, "\"ab\"\n"},
		{"bool", "1 < 2", "true\n"},
		{"null", "null", "null\n"},
		{"array", "[1, 2, 3]", "[\n   1,\n   2,\n   3\n]\n"},
		{"empty object", "{}", "{ }\n"},
		{"empty array", "[]", "[ ]\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestEvaluateAnonymousSnippet_ObjectInheritance(t *testing.T) {
	snippet := `
local Base = { greeting: "hello", full: self.greeting + " " + self.name };
local Derived = Base + { name: "world" };
Derived.full
`
	assert.Equal(t, "\"hello world\"\n", eval(t, snippet))
}

func TestEvaluateAnonymousSnippet_Super(t *testing.T) {
	snippet := `
local Base = { value: 1 };
local Derived = Base + { value: super.value + 1 };
Derived.value
`
	assert.Equal(t, "2\n", eval(t, snippet))
}

func TestEvaluateAnonymousSnippet_HiddenFields(t *testing.T) {
	snippet := `{ visible: 1, hidden:: 2 }`
	assert.Equal(t, "{\n   \"visible\": 1\n}\n", eval(t, snippet))
}

func TestEvaluateAnonymousSnippet_Laziness(t *testing.T) {
	// The unused field's error must never fire.
	snippet := `{ ok: 1, bad: error "boom" }.ok`
	assert.Equal(t, "1\n", eval(t, snippet))
}

func TestEvaluateAnonymousSnippet_ObjectComprehension(t *testing.T) {
	snippet := `{ [x]: x + x for x in ["a", "b"] }`
	assert.Equal(t, "{\n   \"a\": \"aa\",\n   \"b\": \"bb\"\n}\n", eval(t, snippet))
}

func TestEvaluateAnonymousSnippet_Std(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"map", "std.map(function(x) x * 2, [1, 2, 3])", "[\n   2,\n   4,\n   6\n]\n"},
		{"filter", "std.filter(function(x) x > 1, [1, 2, 3])", "[\n   2,\n   3\n]\n"},
		{"foldl", "std.foldl(function(acc, x) acc + x, [1, 2, 3], 0)", "6\n"},
		{"sort default", "std.sort([3, 1, 2])", "[\n   1,\n   2,\n   3\n]\n"},
		{"sort keyF", `std.sort(["bb", "a", "ccc"], function(x) std.length(x))`, "[\n   \"a\",\n   \"bb\",\n   \"ccc\"\n]\n"},
		{"uniq", "std.uniq([1, 1, 2, 2, 3])", "[\n   1,\n   2,\n   3\n]\n"},
		{"get with default", `std.get({a: 1}, "b", "missing")`, "\"missing\"\n"},
		{"length string", `std.length("hello")`, "5\n"},
		{"join", `std.join(", ", ["a", "b", "c"])`, "\"a, b, c\"\n"},
		{"range", "std.range(1, 3)", "[\n   1,\n   2,\n   3\n]\n"},
		{"mergePatch", `std.mergePatch({a: 1, b: 2}, {b: null, c: 3})`, "{\n   \"a\": 1,\n   \"c\": 3\n}\n"},
		{"format positional", `std.format("%s is %d", ["x", 3])`, "\"x is 3\"\n"},
		{"format percent operator", `"%d-%d" % [1, 2]`, "\"1-2\"\n"},
		{"format named", `"%(name)s" % { name: "world" }`, "\"world\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestEvaluateAnonymousSnippet_RuntimeErrors(t *testing.T) {
	vm := MakeVM()
	_, err := vm.EvaluateAnonymousSnippet("<test>", `{ a: 1 }.b`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Field does not exist")
}

func TestEvaluateAnonymousSnippet_StaticErrors(t *testing.T) {
	vm := MakeVM()
	_, err := vm.EvaluateAnonymousSnippet("<test>", `undefinedVariable`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown variable")
}

func TestExtVar(t *testing.T) {
	vm := MakeVM()
	vm.ExtVar("name", "world")
	out, err := vm.EvaluateAnonymousSnippet("<test>", `"hello " + std.extVar("name")`)
	require.NoError(t, err)
	assert.Equal(t, "\"hello world\"\n", out)
}

func TestTLAVar(t *testing.T) {
	vm := MakeVM()
	vm.TLAVar("x", "42")
	out, err := vm.EvaluateAnonymousSnippet("<test>", `function(x) x + " received"`)
	require.NoError(t, err)
	assert.Equal(t, "\"42 received\"\n", out)
}

func TestEvaluateAnonymousSnippetMulti(t *testing.T) {
	vm := MakeVM()
	out, err := vm.EvaluateAnonymousSnippetMulti("<test>", `{ "a.json": { x: 1 }, "b.json": { y: 2 } }`)
	require.NoError(t, err)
	assert.Equal(t, "{\n   \"x\": 1\n}\n", out["a.json"])
	assert.Equal(t, "{\n   \"y\": 2\n}\n", out["b.json"])
}

func TestEvaluateAnonymousSnippetStream(t *testing.T) {
	vm := MakeVM()
	out, err := vm.EvaluateAnonymousSnippetStream("<test>", `[{ x: 1 }, { x: 2 }]`)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "{\n   \"x\": 1\n}", out[0])
	assert.Equal(t, "{\n   \"x\": 2\n}", out[1])
}

func TestStringOutput(t *testing.T) {
	vm := MakeVM()
	vm.StringOutput = true
	out, err := vm.EvaluateAnonymousSnippet("<test>", `"a raw string"`)
	require.NoError(t, err)
	assert.Equal(t, "a raw string\n", out)
}

// stubImporter lets import-related behavior be tested without touching
// the filesystem.
type stubImporter struct {
	files map[string]string
}

func (s *stubImporter) Import(importedFrom, path string) (string, string, error) {
	contents, ok := s.files[path]
	if !ok {
		return "", "", assert.AnError
	}
	return contents, path, nil
}

func TestImport(t *testing.T) {
	vm := MakeVM()
	vm.SetImporter(&stubImporter{files: map[string]string{
		"lib.jsonnet": `{ greeting: "hi" }`,
	}})
	out, err := vm.EvaluateAnonymousSnippet("<test>", `(import "lib.jsonnet").greeting`)
	require.NoError(t, err)
	assert.Equal(t, "\"hi\"\n", out)
}

func TestImportCachedAcrossUses(t *testing.T) {
	vm := MakeVM()
	imp := &stubImporter{files: map[string]string{
		"lib.jsonnet": `{ x: 1 }`,
	}}
	vm.SetImporter(imp)
	out, err := vm.EvaluateAnonymousSnippet("<test>", `
local a = import "lib.jsonnet";
local b = import "lib.jsonnet";
a.x + b.x
`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

package jsonnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeAndLength(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"type null", `std.type(null)`, "\"null\"\n"},
		{"type boolean", `std.type(true)`, "\"boolean\"\n"},
		{"type number", `std.type(1.5)`, "\"number\"\n"},
		{"type string", `std.type("s")`, "\"string\"\n"},
		{"type array", `std.type([])`, "\"array\"\n"},
		{"type object", `std.type({})`, "\"object\"\n"},
		{"type function", `std.type(function(x) x)`, "\"function\"\n"},
		{"length codepoints", `std.length("héllo")`, "5\n"},
		{"length array", `std.length([1, 2, 3])`, "3\n"},
		{"length counts visible fields only", `std.length({a: 1, b:: 2})`, "1\n"},
		{"length function params", `std.length(function(a, b) a)`, "2\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestLengthRejectsNumbers(t *testing.T) {
	assert.Contains(t, evalErr(t, `std.length(3)`), "length requires")
}

func TestMathBuiltins(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"pow", `std.pow(2, 10)`, "1024\n"},
		{"floor", `std.floor(2.9)`, "2\n"},
		{"ceil", `std.ceil(2.1)`, "3\n"},
		{"sqrt", `std.sqrt(81)`, "9\n"},
		{"abs", `std.abs(-4)`, "4\n"},
		{"max", `std.max(2, 5)`, "5\n"},
		{"min", `std.min(2, 5)`, "2\n"},
		{"exponent", `std.exponent(8)`, "4\n"},
		{"mantissa", `std.mantissa(8)`, "0.5\n"},
		{"modulo", `std.modulo(7, 3)`, "1\n"},
		{"cos of zero", `std.cos(0)`, "1\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestCharAndCodepoint(t *testing.T) {
	assert.Equal(t, "\"a\"\n", eval(t, `std.char(97)`))
	assert.Equal(t, "97\n", eval(t, `std.codepoint("a")`))
	assert.Equal(t, "8364\n", eval(t, `std.codepoint("€")`))
	assert.Equal(t, "\"€\"\n", eval(t, `std.char(8364)`))
	assert.Contains(t, evalErr(t, `std.char(1114112)`), "Invalid codepoint")
	assert.Contains(t, evalErr(t, `std.codepoint("ab")`), "single-character")
	assert.Contains(t, evalErr(t, `std.codepoint("")`), "single-character")
}

func TestMakeArrayIsLazy(t *testing.T) {
	assert.Equal(t, "0\n", eval(t, `std.makeArray(3, function(i) if i == 2 then error "late" else i)[0]`))
	assert.Contains(t, evalErr(t, `std.makeArray(3, function(i) if i == 2 then error "late" else i)[2]`), "late")
}

func TestMapIsLazy(t *testing.T) {
	assert.Equal(t, "2\n", eval(t, `std.map(function(x) x * 2, [1, error "boom"])[0]`))
}

func TestArrayBuiltins(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"reverse", `std.reverse([1, 2, 3])`, "[\n   3,\n   2,\n   1\n]\n"},
		{"repeat array", `std.repeat([1], 3)`, "[\n   1,\n   1,\n   1\n]\n"},
		{"repeat string", `std.repeat("ab", 2)`, "\"abab\"\n"},
		{"flattenArrays", `std.flattenArrays([[1, 2], [3]])`, "[\n   1,\n   2,\n   3\n]\n"},
		{"foldr", `std.foldr(function(x, acc) acc + x, ["a", "b", "c"], "")`, "\"cba\"\n"},
		{"range empty", `std.range(3, 1)`, "[ ]\n"},
		{"filterMap", `std.filterMap(function(x) x > 1, function(x) x * 10, [1, 2, 3])`, "[\n   20,\n   30\n]\n"},
		{"uniq with keyF", `std.uniq(["a", "A"], function(x) std.asciiLower(x))`, "[\n   \"a\"\n]\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestStringBuiltins(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"substr", `std.substr("hello", 1, 3)`, "\"ell\"\n"},
		{"split", `std.split("a,b,c", ",")`, "[\n   \"a\",\n   \"b\",\n   \"c\"\n]\n"},
		{"splitLimit", `std.splitLimit("a,b,c", ",", 1)`, "[\n   \"a\",\n   \"b,c\"\n]\n"},
		{"strReplace", `std.strReplace("hello", "l", "L")`, "\"heLLo\"\n"},
		{"asciiUpper", `std.asciiUpper("aBc")`, "\"ABC\"\n"},
		{"asciiLower", `std.asciiLower("aBc")`, "\"abc\"\n"},
		{"stringChars", `std.stringChars("ab")`, "[\n   \"a\",\n   \"b\"\n]\n"},
		{"startsWith", `std.startsWith("hello", "he")`, "true\n"},
		{"endsWith", `std.endsWith("hello", "lo")`, "true\n"},
		{"md5 empty", `std.md5("")`, "\"d41d8cd98f00b204e9800998ecf8427e\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestObjectBuiltins(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"objectHas skips hidden", `std.objectHas({a: 1, b:: 2}, "b")`, "false\n"},
		{"objectHasAll sees hidden", `std.objectHasAll({a: 1, b:: 2}, "b")`, "true\n"},
		{"objectFields sorted", `std.objectFields({b: 1, a: 2})`, "[\n   \"a\",\n   \"b\"\n]\n"},
		{"objectFields skips hidden", `std.objectFields({a: 1, b:: 2})`, "[\n   \"a\"\n]\n"},
		{"objectFieldsAll", `std.objectFieldsAll({a: 1, b:: 2})`, "[\n   \"a\",\n   \"b\"\n]\n"},
		{"fields across extension", `std.objectFields({a: 1} + {b: 2})`, "[\n   \"a\",\n   \"b\"\n]\n"},
		{"get present", `std.get({a: 1}, "a")`, "1\n"},
		{"get hidden excluded", `std.get({a:: 1}, "a", "fallback", false)`, "\"fallback\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestPrune(t *testing.T) {
	assert.Equal(t, "{\n   \"c\": 1\n}\n", eval(t, `std.prune({a: null, b: {}, c: 1})`))
	assert.Equal(t, "[\n   1\n]\n", eval(t, `std.prune([null, 1, []])`))
}

func TestToStringAndManifest(t *testing.T) {
	assert.Equal(t, "\"42\"\n", eval(t, `std.toString(42)`))
	assert.Equal(t, "\"str\"\n", eval(t, `std.toString("str")`))
	assert.Equal(t, "true\n", eval(t, `std.manifestJson({a: 1}) == "{\n   \"a\": 1\n}"`))
	assert.Equal(t, "true\n", eval(t, `std.manifestJsonEx({a: 1}, "  ") == "{\n  \"a\": 1\n}"`))
}

func TestEqualsBuiltin(t *testing.T) {
	assert.Equal(t, "true\n", eval(t, `std.equals([1, {a: 2}], [1, {a: 2}])`))
	assert.Equal(t, "false\n", eval(t, `std.equals(1, "1")`))
	assert.Equal(t, "true\n", eval(t, `std.primitiveEquals(2, 2)`))
}

func TestExtVarUndefined(t *testing.T) {
	assert.Contains(t, evalErr(t, `std.extVar("nope")`), "Undefined external variable: nope")
}

func TestExtCode(t *testing.T) {
	vm := MakeVM()
	vm.ExtCode("cfg", `{replicas: 2 + 1}`)
	out, err := vm.EvaluateAnonymousSnippet("<test>", `std.extVar("cfg").replicas`)
	assert.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestFormatDirectives(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"string and int", `std.format("%s=%d", ["a", 3])`, "\"a=3\"\n"},
		{"float precision", `"%.2f" % 3.14159`, "\"3.14\"\n"},
		{"percent escape", `"100%%" % []`, "\"100%\"\n"},
		{"width", `"%5d" % 42`, "\"   42\"\n"},
		{"named fields", `"%(host)s:%(port)d" % {host: "db", port: 5432}`, "\"db:5432\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestJoinVariants(t *testing.T) {
	assert.Equal(t, "\"a-b\"\n", eval(t, `std.join("-", ["a", "b"])`))
	assert.Equal(t, "[\n   1,\n   0,\n   2\n]\n", eval(t, `std.join([0], [[1], [2]])`))
}

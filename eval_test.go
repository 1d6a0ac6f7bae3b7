package jsonnet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempTraceFile(t *testing.T) (*os.File, error) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "trace.log"))
	if err == nil {
		t.Cleanup(func() { f.Close() })
	}
	return f, err
}

func countTraceLines(t *testing.T, f *os.File) int {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	return strings.Count(string(data), "TRACE:")
}

func evalErr(t *testing.T, snippet string) string {
	t.Helper()
	vm := MakeVM()
	_, err := vm.EvaluateAnonymousSnippet("<test>", snippet)
	require.Error(t, err)
	return err.Error()
}

func TestSelfReference(t *testing.T) {
	assert.Equal(t, "{\n   \"x\": 1,\n   \"y\": 2\n}\n", eval(t, `{x: 1, y: self.x + 1}`))
}

func TestSuperThroughExtension(t *testing.T) {
	assert.Equal(t, "{\n   \"a\": 2,\n   \"b\": 1\n}\n", eval(t, `{a: 1} + {a: 2, b: super.a}`))
}

func TestRecursiveFactorial(t *testing.T) {
	snippet := `local fact(n) = if n == 0 then 1 else n * fact(n - 1); fact(10)`
	assert.Equal(t, "3628800\n", eval(t, snippet))
}

func TestArrayComprehensionOverMakeArray(t *testing.T) {
	snippet := `[i * i for i in std.makeArray(5, function(i) i)]`
	assert.Equal(t, "[\n   0,\n   1,\n   4,\n   9,\n   16\n]\n", eval(t, snippet))
}

func TestObjectComprehensionKeyOrder(t *testing.T) {
	snippet := `{[k]: k for k in ["b", "a", "c"]}`
	assert.Equal(t, "{\n   \"a\": \"a\",\n   \"b\": \"b\",\n   \"c\": \"c\"\n}\n", eval(t, snippet))
}

func TestSelfReferentialLocalIsStatic(t *testing.T) {
	msg := evalErr(t, `local x = x; x`)
	assert.Contains(t, msg, "STATIC ERROR")
	assert.Contains(t, msg, "Unknown variable: x")
}

func TestSelfReferentialLocalGuardedByFunction(t *testing.T) {
	// Recursion through a function body is fine; only a strict
	// self-reference is rejected up front.
	assert.Equal(t, "120\n", eval(t, `local f = function(n) if n == 0 then 1 else n * f(n - 1); f(5)`))
}

func TestCyclicLocalsCaughtAtRuntime(t *testing.T) {
	// A strict cycle through two bindings is invisible to the per-binding
	// static check; the re-entrant force detects it instead.
	msg := evalErr(t, `local a = b, b = a; a`)
	assert.Contains(t, msg, "cyclic dependency")
}

func TestMutuallyRecursiveLocals(t *testing.T) {
	snippet := `
local even(n) = if n == 0 then true else odd(n - 1),
      odd(n) = if n == 0 then false else even(n - 1);
even(10)
`
	assert.Equal(t, "true\n", eval(t, snippet))
}

func TestDollarResolvesOutermost(t *testing.T) {
	assert.Equal(t, "{\n   \"a\": 1,\n   \"b\": {\n      \"c\": 1\n   }\n}\n",
		eval(t, `{a: 1, b: {c: $.a}}`))
}

func TestDollarInObjectComprehension(t *testing.T) {
	assert.Equal(t, "{\n   \"k\": 5\n}\n", eval(t, `{n:: 5} + {[k]: $.n for k in ["k"]}`))
}

func TestObjectLocalSeesSelf(t *testing.T) {
	snippet := `{local tag = self.name, name: "x", label: tag + "!"}`
	assert.Equal(t, "{\n   \"label\": \"x!\",\n   \"name\": \"x\"\n}\n", eval(t, snippet))
}

func TestObjectLocalSharedByFields(t *testing.T) {
	snippet := `{local base = 10, a: base + 1, b: base + 2}`
	assert.Equal(t, "{\n   \"a\": 11,\n   \"b\": 12\n}\n", eval(t, snippet))
}

func TestPlusSuperFieldMerge(t *testing.T) {
	snippet := `({a: {x: 1}} + {a+: {y: 2}}).a`
	assert.Equal(t, "{\n   \"x\": 1,\n   \"y\": 2\n}\n", eval(t, snippet))
}

func TestConditionalFieldOmitted(t *testing.T) {
	assert.Equal(t, "{\n   \"b\": 2\n}\n", eval(t, `{[if false then "a"]: 1, b: 2}`))
	assert.Equal(t, "{\n   \"a\": 1,\n   \"b\": 2\n}\n", eval(t, `{[if true then "a"]: 1, b: 2}`))
}

func TestObjectAssertPasses(t *testing.T) {
	assert.Equal(t, "{\n   \"x\": 1\n}\n", eval(t, `{assert self.x > 0 : "x must be positive", x: 1}`))
}

func TestObjectAssertFails(t *testing.T) {
	msg := evalErr(t, `{assert self.x > 0 : "bad x", x: -1}.x`)
	assert.Contains(t, msg, "RUNTIME ERROR: bad x")
}

func TestAssertsRecheckedPerComposition(t *testing.T) {
	// The base leaf's assert observes whatever x the composed object
	// supplies, so each `+` result is checked independently: the first
	// composition passing must not cache a pass for the second.
	msg := evalErr(t, `local base = {assert self.x == 1}; [(base {x: 1}).x, (base {x: 2}).x]`)
	assert.Contains(t, msg, "Object assertion failed")

	assert.Equal(t, "[\n   1,\n   1\n]\n",
		eval(t, `local base = {assert self.x == 1}; [(base {x: 1}).x, (base {x: 1, y: 2}).x]`))
}

func TestAssertsRunOncePerComposedObject(t *testing.T) {
	vm := MakeVM()
	f, err := tempTraceFile(t)
	require.NoError(t, err)
	vm.TraceOut = f
	out, err := vm.EvaluateAnonymousSnippet("<test>",
		`local o = {assert std.trace("checking", true), a: 1, b: 2}; o.a + o.b`)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
	assert.Equal(t, 1, countTraceLines(t, f))
}

func TestTopLevelAssert(t *testing.T) {
	assert.Equal(t, "3\n", eval(t, `assert 1 < 2; 3`))
	msg := evalErr(t, `assert 1 > 2 : "impossible"; 3`)
	assert.Contains(t, msg, "impossible")
}

func TestHideModeFolding(t *testing.T) {
	// Inherit keeps the base's hidden-ness; ::: forces visibility back.
	assert.Equal(t, "{ }\n", eval(t, `{a:: 1} + {a: 2}`))
	assert.Equal(t, "{\n   \"a\": 2\n}\n", eval(t, `{a:: 1} + {a::: 2}`))
	assert.Equal(t, "{ }\n", eval(t, `{a: 1} + {a:: 2}`))
}

func TestHiddenFieldStillIndexable(t *testing.T) {
	assert.Equal(t, "7\n", eval(t, `{a:: 7}.a`))
}

func TestInOperator(t *testing.T) {
	assert.Equal(t, "true\n", eval(t, `"a" in {a: 1}`))
	assert.Equal(t, "false\n", eval(t, `"b" in {a: 1}`))
}

func TestInSuper(t *testing.T) {
	assert.Equal(t, "{\n   \"a\": 1,\n   \"b\": true,\n   \"c\": false\n}\n",
		eval(t, `{a: 1} + {b: "a" in super, c: "b" in super}`))
}

func TestStringSlice(t *testing.T) {
	assert.Equal(t, "\"hello\"\n", eval(t, `"hello world"[0:5]`))
	assert.Equal(t, "\"el\"\n", eval(t, `"hello"[1:3]`))
}

func TestArraySliceWithStep(t *testing.T) {
	assert.Equal(t, "[\n   1,\n   3,\n   5\n]\n", eval(t, `[1, 2, 3, 4, 5, 6][0:6:2]`))
}

func TestStringIndex(t *testing.T) {
	assert.Equal(t, "\"b\"\n", eval(t, `"abc"[1]`))
}

func TestIndexOutOfBounds(t *testing.T) {
	assert.Contains(t, evalErr(t, `[1, 2, 3][3]`), "out of bounds")
	assert.Contains(t, evalErr(t, `[1, 2, 3][-1]`), "out of bounds")
	assert.Contains(t, evalErr(t, `"abc"[3]`), "out of bounds")
}

func TestStringCoercionOnPlus(t *testing.T) {
	assert.Equal(t, "\"n=1\"\n", eval(t, `"n=" + 1`))
	assert.Equal(t, "\"truth: true\"\n", eval(t, `"truth: " + true`))
	assert.Equal(t, "\"3 apples\"\n", eval(t, `3 + " apples"`))
}

func TestArithmeticErrors(t *testing.T) {
	assert.Contains(t, evalErr(t, `1 / 0`), "Division by zero")
	assert.Contains(t, evalErr(t, `7 % 0`), "Division by zero")
	assert.Contains(t, evalErr(t, `1e308 * 10`), "Overflow")
	assert.Contains(t, evalErr(t, `std.sqrt(-1)`), "Not a number")
}

func TestBitwiseAndShifts(t *testing.T) {
	assert.Equal(t, "1\n", eval(t, `5 & 3`))
	assert.Equal(t, "7\n", eval(t, `5 | 3`))
	assert.Equal(t, "6\n", eval(t, `5 ^ 3`))
	assert.Equal(t, "8\n", eval(t, `1 << 3`))
	assert.Equal(t, "2\n", eval(t, `9 >> 2`))
	assert.Equal(t, "-6\n", eval(t, `~5`))
}

func TestShiftByNegativeExponent(t *testing.T) {
	assert.Contains(t, evalErr(t, `1 << -1`), "Shift by negative exponent.")
	assert.Contains(t, evalErr(t, `8 >> -2`), "Shift by negative exponent.")
}

func TestBooleanOperators(t *testing.T) {
	assert.Equal(t, "false\n", eval(t, `!true`))
	// Short circuit: the right operand must never evaluate.
	assert.Equal(t, "false\n", eval(t, `false && error "unreachable"`))
	assert.Equal(t, "true\n", eval(t, `true || error "unreachable"`))
	assert.Contains(t, evalErr(t, `1 && true`), "boolean")
}

func TestEqualityIsSymmetric(t *testing.T) {
	pairs := []struct{ a, b string }{
		{`1`, `1`},
		{`1`, `2`},
		{`"ab"`, `"ab"`},
		{`[1, 2]`, `[1, 2]`},
		{`[1, 2]`, `[1, 3]`},
		{`{a: 1}`, `{a: 1}`},
		{`{a: 1}`, `{a: 2}`},
		{`{a: 1}`, `{a: 1, b:: 2}`},
		{`null`, `null`},
		{`1`, `"1"`},
	}
	for _, p := range pairs {
		fwd := eval(t, p.a+" == "+p.b)
		rev := eval(t, p.b+" == "+p.a)
		assert.Equal(t, fwd, rev, "%s == %s must be symmetric", p.a, p.b)
	}
}

func TestObjectEqualityIgnoresHiddenFields(t *testing.T) {
	assert.Equal(t, "true\n", eval(t, `{a: 1, b:: 9} == {a: 1}`))
}

func TestFunctionsNeverEqual(t *testing.T) {
	assert.Equal(t, "false\n", eval(t, `local f = function(x) x; f == f`))
}

func TestMaxStackExceeded(t *testing.T) {
	vm := MakeVM()
	vm.MaxStack = 50
	_, err := vm.EvaluateAnonymousSnippet("<test>", `local f(n) = if n == 0 then 0 else 1 + f(n - 1); f(500)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max stack frames exceeded")
}

func TestTailStrictRecursionRunsDeep(t *testing.T) {
	vm := MakeVM()
	vm.MaxStack = 50
	out, err := vm.EvaluateAnonymousSnippet("<test>",
		`local sum(n, acc) = if n == 0 then acc else sum(n - 1, acc + n) tailstrict; sum(1000, 0)`)
	require.NoError(t, err)
	assert.Equal(t, "500500\n", out)
}

func TestGarbageCollectionPreservesLiveValues(t *testing.T) {
	vm := MakeVM()
	vm.GCMinObjects = 50
	vm.GCGrowthTrigger = 1.2
	out, err := vm.EvaluateAnonymousSnippet("<test>",
		`std.foldl(function(a, b) a + b, std.range(1, 1000), 0)`)
	require.NoError(t, err)
	assert.Equal(t, "500500\n", out)
}

func TestDeterministicReEvaluation(t *testing.T) {
	snippet := `{
		config: {[k]: std.length(k) for k in ["zeta", "alpha", "mid"]},
		total: std.foldl(function(a, b) a + b, std.range(1, 10), 0),
	}`
	first := eval(t, snippet)
	second := eval(t, snippet)
	assert.Equal(t, first, second)
}

func TestThunkForcedOnce(t *testing.T) {
	// The trace side effect fires once even though x is referenced twice.
	vm := MakeVM()
	f, err := tempTraceFile(t)
	require.NoError(t, err)
	vm.TraceOut = f
	out, err := vm.EvaluateAnonymousSnippet("<test>", `local x = std.trace("forcing", 21); x + x`)
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
	assert.Equal(t, 1, countTraceLines(t, f))
}

func TestImportStr(t *testing.T) {
	vm := MakeVM()
	vm.SetImporter(&stubImporter{files: map[string]string{
		"data.txt": "raw contents\n",
	}})
	out, err := vm.EvaluateAnonymousSnippet("<test>", `importstr "data.txt"`)
	require.NoError(t, err)
	assert.Equal(t, "\"raw contents\\n\"\n", out)
}

func TestErrorExpression(t *testing.T) {
	msg := evalErr(t, `error "boom"`)
	assert.Contains(t, msg, "RUNTIME ERROR: boom")
}

func TestErrorCoercesNonStringMessage(t *testing.T) {
	msg := evalErr(t, `error {code: 3}`)
	assert.Contains(t, msg, `"code": 3`)
}

func TestDuplicateFieldName(t *testing.T) {
	assert.Contains(t, evalErr(t, `{a: 1, ["a"]: 2}`), "Duplicate field name")
	assert.Contains(t, evalErr(t, `{[k]: 1 for k in ["x", "x"]}`), "Duplicate field name")
}

func TestFieldDoesNotExistNamesField(t *testing.T) {
	assert.Contains(t, evalErr(t, `{a: 1}.missing`), "Field does not exist: missing")
}

func TestCallErrors(t *testing.T) {
	assert.Contains(t, evalErr(t, `local f(a) = a; f(1, 2)`), "Too many arguments")
	assert.Contains(t, evalErr(t, `local f(a, b) = a; f(1)`), "Missing argument: b")
	assert.Contains(t, evalErr(t, `local f(a) = a; f(b=1)`), "no parameter b")
	assert.Contains(t, evalErr(t, `(3)(1)`), "Only functions can be called")
}

func TestNamedAndDefaultArguments(t *testing.T) {
	assert.Equal(t, "7\n", eval(t, `local f(a, b=5) = a + b; f(2)`))
	assert.Equal(t, "3\n", eval(t, `local f(a, b=5) = a + b; f(2, b=1)`))
	assert.Equal(t, "\"xy\"\n", eval(t, `local f(a, b) = a + b; f(b="y", a="x")`))
	// A default may refer to an earlier parameter.
	assert.Equal(t, "4\n", eval(t, `local f(a, b=a + 1) = b + 1; f(2)`))
}

func TestStringOutputRequiresString(t *testing.T) {
	vm := MakeVM()
	vm.StringOutput = true
	_, err := vm.EvaluateAnonymousSnippet("<test>", `{a: 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected string result")
}

func TestComparisonOperators(t *testing.T) {
	assert.Equal(t, "true\n", eval(t, `"abc" < "abd"`))
	assert.Equal(t, "true\n", eval(t, `"ab" < "abc"`))
	assert.Equal(t, "false\n", eval(t, `2 <= 1`))
	assert.Contains(t, evalErr(t, `1 < "a"`), "Cannot compare")
	assert.Contains(t, evalErr(t, `true < false`), "Cannot compare")
}

package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/google/jsonnet-sub000/ast"
)

func mustTokenize(t *testing.T, src string) []token {
	t.Helper()
	toks, err := tokenize("<test>", src)
	require.NoError(t, err)
	return toks
}

func tokenTexts(toks []token) []string {
	var out []string
	for _, tok := range toks {
		if tok.kind == tokEOF {
			break
		}
		out = append(out, tok.text)
	}
	return out
}

func TestTokenizeSymbols(t *testing.T) {
	assert.Equal(t, []string{"a", ":::", "b"}, tokenTexts(mustTokenize(t, "a ::: b")))
	assert.Equal(t, []string{"a", "::", "b"}, tokenTexts(mustTokenize(t, "a :: b")))
	assert.Equal(t, []string{"<<", ">=", "!=", "&&"}, tokenTexts(mustTokenize(t, "<< >= != &&")))
}

func TestTokenizeComments(t *testing.T) {
	toks := mustTokenize(t, "1 // line\n# hash\n/* block\nstill */ 2")
	assert.Equal(t, []string{"1", "2"}, tokenTexts(toks))
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks := mustTokenize(t, `"a\n\tA"`)
	require.Len(t, toks, 2) // string + EOF
	assert.Equal(t, "a\n\tA", toks[0].text)
}

func TestTokenizeVerbatimString(t *testing.T) {
	toks := mustTokenize(t, `@"no \n escape ""quoted"""`)
	assert.Equal(t, `no \n escape "quoted"`, toks[0].text)
}

func TestTokenizeBlockString(t *testing.T) {
	src := "|||\n  line one\n  line two\n|||"
	toks := mustTokenize(t, src)
	assert.Equal(t, "line one\nline two", toks[0].text)
	assert.Equal(t, ast.StringBlock, toks[0].sKind)
}

func TestTokenizeErrors(t *testing.T) {
	cases := []struct {
		name, src, want string
	}{
		{"unterminated string", `"abc`, "unterminated string"},
		{"unknown escape", `"\q"`, "unknown escape"},
		{"unterminated block comment", "/* nope", "unterminated block comment"},
		{"stray character", "`", "unexpected character"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := tokenize("<test>", c.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func mustParse(t *testing.T, src string) ast.Node {
	t.Helper()
	node, err := Parse("<test>", src)
	require.NoError(t, err)
	return node
}

func mustDesugar(t *testing.T, src string) ast.Node {
	t.Helper()
	node := mustParse(t, src)
	require.NoError(t, Desugar(&node))
	return node
}

func TestParsePrecedence(t *testing.T) {
	node := mustParse(t, "1 + 2 * 3")
	plus, ok := node.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.BopPlus, plus.Op)
	mult, ok := plus.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.BopMult, mult.Op)
}

func TestParseUnaryBindsTighter(t *testing.T) {
	node := mustParse(t, "-1 + 2")
	plus, ok := node.(*ast.Binary)
	require.True(t, ok)
	_, ok = plus.Left.(*ast.Unary)
	assert.True(t, ok)
}

func TestParseTailStrictAfterParen(t *testing.T) {
	node := mustParse(t, "f(1) tailstrict")
	apply, ok := node.(*ast.Apply)
	require.True(t, ok)
	assert.True(t, apply.TailStrict)

	node = mustParse(t, "f(1)")
	apply = node.(*ast.Apply)
	assert.False(t, apply.TailStrict)
}

func TestParseNamedArguments(t *testing.T) {
	node := mustParse(t, "f(1, b=2)")
	apply := node.(*ast.Apply)
	require.Len(t, apply.Arguments.Positional, 1)
	require.Len(t, apply.Arguments.Named, 1)
	assert.Equal(t, ast.Identifier("b"), apply.Arguments.Named[0].Name)
}

func TestParseLocalFunctionSugar(t *testing.T) {
	node := mustParse(t, "local f(x) = x + 1; f(2)")
	local := node.(*ast.Local)
	require.Len(t, local.Binds, 1)
	require.NotNil(t, local.Binds[0].Fun)
	assert.Equal(t, ast.Identifiers{"x"}, local.Binds[0].Fun.Parameters.Required)
}

func TestParseSliceForms(t *testing.T) {
	_, isSlice := mustParse(t, "a[1:2]").(*ast.Slice)
	assert.True(t, isSlice)
	_, isSlice = mustParse(t, "a[1:2:3]").(*ast.Slice)
	assert.True(t, isSlice)
	_, isIndex := mustParse(t, "a[1]").(*ast.Index)
	assert.True(t, isIndex)
}

func TestParseErrors(t *testing.T) {
	cases := []struct{ name, src string }{
		{"dangling operator", "1 +"},
		{"unclosed paren", "(1"},
		{"bad object member", "{1: 2}"},
		{"super alone", "super"},
		{"missing then", "if true 1"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse("<test>", c.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "STATIC ERROR")
		})
	}
}

func TestDesugarApplyBrace(t *testing.T) {
	node := mustDesugar(t, "a {b: 1}")
	bin, ok := node.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, ast.BopPlus, bin.Op)
	_, ok = bin.Right.(*ast.DesugaredObject)
	assert.True(t, ok)
}

func TestDesugarFieldNameSugar(t *testing.T) {
	node := mustDesugar(t, "a.b")
	idx, ok := node.(*ast.Index)
	require.True(t, ok)
	assert.Nil(t, idx.Id)
	lit, ok := idx.Index.(*ast.LiteralString)
	require.True(t, ok)
	assert.Equal(t, "b", lit.Value)
}

func TestDesugarFillsElseBranch(t *testing.T) {
	node := mustDesugar(t, "if true then 1")
	cond := node.(*ast.Conditional)
	_, ok := cond.BranchFalse.(*ast.LiteralNull)
	assert.True(t, ok)
}

func TestDesugarArrayCompToFlatMap(t *testing.T) {
	node := mustDesugar(t, "[x for x in [1, 2]]")
	apply, ok := node.(*ast.Apply)
	require.True(t, ok)
	fn, ok := apply.Target.(*ast.BuiltinFunction)
	require.True(t, ok)
	assert.Equal(t, "$flatMap", fn.Name)
}

func TestDesugarMultiClauseObjectComp(t *testing.T) {
	node := mustDesugar(t, `{[a + b]: true for a in ["x"] for b in ["y"]}`)
	apply, ok := node.(*ast.Apply)
	require.True(t, ok)
	fn, ok := apply.Target.(*ast.BuiltinFunction)
	require.True(t, ok)
	assert.Equal(t, "$objectFlatMerge", fn.Name)
}

func TestDesugarObjectBindsDollarInFieldBodies(t *testing.T) {
	node := mustDesugar(t, "{a: 1}")
	obj, ok := node.(*ast.DesugaredObject)
	require.True(t, ok)
	require.Len(t, obj.Fields, 1)
	wrapper, ok := obj.Fields[0].Body.(*ast.Local)
	require.True(t, ok)
	require.Len(t, wrapper.Binds, 1)
	assert.Equal(t, ast.Identifier("$"), wrapper.Binds[0].Variable)
	_, ok = wrapper.Binds[0].Body.(*ast.Self)
	assert.True(t, ok)
}

func TestDesugarObjectLocalsStayInsideObject(t *testing.T) {
	node := mustDesugar(t, `{local n = self.a, a: 1, b: n}`)
	obj, ok := node.(*ast.DesugaredObject)
	require.True(t, ok, "object locals must not hoist a Local above the object")
	require.Len(t, obj.Fields, 2)
	for _, f := range obj.Fields {
		wrapper, ok := f.Body.(*ast.Local)
		require.True(t, ok)
		vars := map[ast.Identifier]bool{}
		for _, b := range wrapper.Binds {
			vars[b.Variable] = true
		}
		assert.True(t, vars["n"])
		assert.True(t, vars["$"])
	}
}

func TestDesugarObjectAssertBecomesConditional(t *testing.T) {
	node := mustDesugar(t, `{assert true : "msg", a: 1}`)
	obj := node.(*ast.DesugaredObject)
	require.Len(t, obj.Asserts, 1)
}

func TestDesugarDollarOutsideObjectIsError(t *testing.T) {
	node := mustParse(t, "$.a")
	err := Desugar(&node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No top-level object found")
}

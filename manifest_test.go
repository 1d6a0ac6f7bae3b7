package jsonnet

import (
	"os"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	code := m.Run()
	snaps.Clean(m)
	os.Exit(code)
}

func TestManifestSnapshot(t *testing.T) {
	snippet := `
local replicas(env) = if env == "prod" then 3 else 1;
{
   deployments: {
      [env]: {
         name: "app-" + env,
         replicas: replicas(env),
         labels: {env: env, tier: "web"},
      }
      for env in ["dev", "prod"]
   },
   ports: [80, 443],
   debug:: true,
}
`
	snaps.MatchSnapshot(t, eval(t, snippet))
}

func TestManifestStreamSnapshot(t *testing.T) {
	vm := MakeVM()
	docs, err := vm.EvaluateAnonymousSnippetStream("<test>",
		`[{kind: "a", n: i} for i in std.range(0, 2)]`)
	require.NoError(t, err)
	snaps.MatchSnapshot(t, docs)
}

func TestNumberFormatting(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"integer stays integral", `2`, "2\n"},
		{"float", `1.5`, "1.5\n"},
		{"division result", `1 / 3`, "0.3333333333333333\n"},
		{"negative zero point one", `-0.1`, "-0.1\n"},
		{"large integral switches to exponent", `1e21`, "1e+21\n"},
		{"integral float", `4.0`, "4\n"},
		{"small exponent literal", `2e-3`, "0.002\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestStringEscaping(t *testing.T) {
	cases := []struct {
		name, snippet, want string
	}{
		{"quotes", `"say \"hi\""`, "\"say \\\"hi\\\"\"\n"},
		{"backslash", `"a\\b"`, "\"a\\\\b\"\n"},
		{"newline and tab", "\"a\\nb\\tc\"", "\"a\\nb\\tc\"\n"},
		{"control char", `"\u0001"`, "\"\\u0001\"\n"},
		{"delete char", `"\u007f"`, "\"\\u007f\"\n"},
		{"unicode passes through", `"héllo"`, "\"héllo\"\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, eval(t, c.snippet))
		})
	}
}

func TestManifestKeysAlphabetical(t *testing.T) {
	assert.Equal(t, "{\n   \"a\": 3,\n   \"m\": 2,\n   \"z\": 1\n}\n", eval(t, `{z: 1, m: 2, a: 3}`))
}

func TestManifestKeysMatchObjectFields(t *testing.T) {
	// Manifested keys are exactly std.objectFields, in the same order.
	snippet := `
local o = {delta: 1, alpha: 2, mid: {inner: true}};
{manifested: o, fields: std.objectFields(o)}
`
	out := eval(t, snippet)
	assert.Contains(t, out, "\"alpha\"")
	assert.Equal(t,
		"{\n"+
			"   \"fields\": [\n      \"alpha\",\n      \"delta\",\n      \"mid\"\n   ],\n"+
			"   \"manifested\": {\n      \"alpha\": 2,\n      \"delta\": 1,\n      \"mid\": {\n         \"inner\": true\n      }\n   }\n"+
			"}\n",
		out)
}

func TestManifestRejectsFunctions(t *testing.T) {
	assert.Contains(t, evalErr(t, `{f: function(x) x}`), "manifest function")
}

func TestManifestMultiRequiresObject(t *testing.T) {
	vm := MakeVM()
	_, err := vm.EvaluateAnonymousSnippetMulti("<test>", `[1]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-level object")
}

func TestManifestStreamRequiresArray(t *testing.T) {
	vm := MakeVM()
	_, err := vm.EvaluateAnonymousSnippetStream("<test>", `{a: 1}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top-level array")
}

func TestManifestForcesAssertsBeforeFields(t *testing.T) {
	msg := evalErr(t, `{assert false : "checked first", a: error "field"}`)
	assert.Contains(t, msg, "checked first")
}

func TestNestedEmptyContainers(t *testing.T) {
	assert.Equal(t, "{\n   \"arr\": [ ],\n   \"obj\": { }\n}\n", eval(t, `{arr: [], obj: {}}`))
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestExecSnippetToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, runCLI(t, "-e", "1 + 2", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "3\n", string(data))
}

func TestEvaluateFileArgument(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "prog.jsonnet")
	require.NoError(t, os.WriteFile(src, []byte(`{a: 1, b: self.a + 1}`), 0o644))
	out := filepath.Join(dir, "out.json")
	require.NoError(t, runCLI(t, src, "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "{\n   \"a\": 1,\n   \"b\": 2\n}\n", string(data))
}

func TestExtVarFlags(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, runCLI(t,
		"-e", `std.extVar("who") + "/" + std.extVar("n")`,
		"-V", "who=world",
		"--code-var", "n=std.toString(1 + 1)",
		"-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\"world/2\"\n", string(data))
}

func TestJPathFlag(t *testing.T) {
	libDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "lib.libsonnet"), []byte(`{v: 7}`), 0o644))
	out := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, runCLI(t, "-e", `(import "lib.libsonnet").v`, "-J", libDir, "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "7\n", string(data))
}

func TestMultiMode(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "multi")
	manifest := filepath.Join(t.TempDir(), "manifest.txt")
	require.NoError(t, runCLI(t,
		"-e", `{"a.json": {x: 1}, "b.json": {y: 2}}`,
		"-m", outDir,
		"-o", manifest))

	a, err := os.ReadFile(filepath.Join(outDir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n   \"x\": 1\n}\n", string(a))
	b, err := os.ReadFile(filepath.Join(outDir, "b.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n   \"y\": 2\n}\n", string(b))

	listing, err := os.ReadFile(manifest)
	require.NoError(t, err)
	assert.Equal(t, outDir+"/a.json\n"+outDir+"/b.json\n", string(listing))
}

func TestStreamMode(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stream.yaml")
	require.NoError(t, runCLI(t, "-e", `[1, 2]`, "-y", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "---\n1\n---\n2\n...\n", string(data))
}

func TestStringOutputMode(t *testing.T) {
	out := filepath.Join(t.TempDir(), "raw.txt")
	require.NoError(t, runCLI(t, "-e", `"plain text"`, "-S", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "plain text\n", string(data))
}

func TestSelfCheckMatchingGolden(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden.json")
	require.NoError(t, os.WriteFile(golden, []byte("3\n"), 0o644))
	require.NoError(t, runCLI(t, "-e", "1 + 2", "--test", golden))
}

func TestFlagErrors(t *testing.T) {
	assert.Error(t, runCLI(t, "-e", "1", "-V", "missing-equals"))
	assert.Error(t, runCLI(t))                   // no program
	assert.Error(t, runCLI(t, "a.jsonnet", "b")) // two programs
}

func TestSplitKV(t *testing.T) {
	k, v, err := splitKV("a=b=c", "-V")
	require.NoError(t, err)
	assert.Equal(t, "a", k)
	assert.Equal(t, "b=c", v)

	_, _, err = splitKV("novalue", "-V")
	assert.Error(t, err)
}

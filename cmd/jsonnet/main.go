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

// Command jsonnet is the CLI driver: a thin
// shell around the jsonnet package's VM -- parsing flags, wiring an
// Importer and external variables, and rendering the result (or a
// diagnostic) to stdout/stderr.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	jsonnet "github.com/google/jsonnet-sub000"
	"github.com/google/jsonnet-sub000/internal/diagnostics"
)

// options holds every flag the CLI accepts.
type options struct {
	exec bool

	jpath []string

	extStr     []string // -V k=v
	extStrEnv  []string // -E name
	codeVar    []string // --code-var k=code
	codeEnv    []string // --code-env name
	codeFile   []string // --code-file k=path

	multiDir    string
	streamYAML  bool
	stringOut   bool
	maxStack    int
	maxTrace    int
	gcMin       int
	gcGrowth    float64
	outputFile  string
	testAgainst string // --test <golden-file>, exit 2 on mismatch
}

func newRootCmd() *cobra.Command {
	var o options

	cmd := &cobra.Command{
		Use:           "jsonnet [flags] <filename>",
		Short:         "Evaluate a Jsonnet program to JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &o, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&o.exec, "exec", "e", false, "treat the filename argument as a Jsonnet snippet")
	flags.StringArrayVarP(&o.jpath, "jpath", "J", nil, "prepend a directory to the import search path (right-most wins)")
	flags.StringArrayVarP(&o.extStr, "ext-str", "V", nil, "k=v: bind an external variable to a literal string")
	flags.StringArrayVarP(&o.extStrEnv, "ext-str-env", "E", nil, "name: bind an external variable to the string in $name")
	flags.StringArrayVar(&o.codeVar, "code-var", nil, "k=code: bind an external variable to evaluated Jsonnet code")
	flags.StringArrayVar(&o.codeEnv, "code-env", nil, "name: bind an external variable to the Jsonnet code in $name")
	flags.StringArrayVar(&o.codeFile, "code-file", nil, "k=path: bind an external variable to the Jsonnet code in a file")
	flags.StringVarP(&o.multiDir, "multi", "m", "", "write each top-level field to its own file under dir")
	flags.BoolVarP(&o.streamYAML, "yaml-stream", "y", false, "the top-level value is an array, rendered as a stream")
	flags.BoolVarP(&o.stringOut, "string", "S", false, "the top-level value must be a string, manifest raw")
	flags.IntVarP(&o.maxStack, "max-stack", "s", 0, "number of allowed call-stack frames (0 = default)")
	flags.IntVarP(&o.maxTrace, "max-trace", "t", 0, "max stack-trace lines printed before eliding (0 = default)")
	flags.IntVar(&o.gcMin, "gc-min-objects", 0, "minimum live heap objects before a GC cycle is considered (0 = default)")
	flags.Float64Var(&o.gcGrowth, "gc-growth-trigger", 0, "heap growth factor that triggers a GC cycle (0 = default)")
	flags.StringVarP(&o.outputFile, "output-file", "o", "", "write output to this file instead of stdout")
	flags.StringVar(&o.testAgainst, "test", "", "compare output against a golden file; exit 2 on mismatch")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(diagnostics.Stderr(), "ERROR: "+err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, o *options, args []string) error {
	vm := jsonnet.MakeVM()
	if o.maxStack > 0 {
		vm.MaxStack = o.maxStack
	}
	if o.maxTrace > 0 {
		vm.MaxTrace = o.maxTrace
	}
	if o.gcMin > 0 {
		vm.GCMinObjects = o.gcMin
	}
	if o.gcGrowth > 0 {
		vm.GCGrowthTrigger = o.gcGrowth
	}
	vm.StringOutput = o.stringOut
	// Each -J prepends, so the right-most directory is searched first.
	jpaths := make([]string, len(o.jpath))
	for k, p := range o.jpath {
		jpaths[len(o.jpath)-1-k] = p
	}
	vm.SetImporter(&jsonnet.FileImporter{JPaths: jpaths})

	if err := bindExtVars(vm, o); err != nil {
		return err
	}

	if len(args) == 0 {
		return fmt.Errorf("must give %s", want(o.exec))
	}
	if len(args) > 1 {
		return fmt.Errorf("only one %s is allowed", want(o.exec))
	}

	filename, snippet, err := readProgram(args[0], o.exec)
	if err != nil {
		return err
	}

	out, err := evaluate(vm, o, filename, snippet)
	if err != nil {
		diagnostics.PrintError(diagnostics.Stderr(), err)
		os.Exit(1)
	}

	if o.testAgainst != "" {
		return selfCheck(o.testAgainst, out)
	}
	return writeOutput(o, out)
}

func want(exec bool) string {
	if exec {
		return "code"
	}
	return "filename"
}

// readProgram resolves the single positional argument into (filename,
// source): `-` means stdin, `-e`/`--exec` means the argument itself is the
// program text, and "<cmdline>"/"<stdin>" are synthetic filenames used
// only in diagnostics.
func readProgram(arg string, exec bool) (filename, snippet string, err error) {
	if exec {
		return "<cmdline>", arg, nil
	}
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return "<stdin>", string(data), nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", "", fmt.Errorf("opening input file: %s: %w", arg, err)
	}
	return arg, string(data), nil
}

// bindExtVars wires the five ext-var flag families onto the VM.
func bindExtVars(vm *jsonnet.VM, o *options) error {
	for _, kv := range o.extStr {
		k, v, err := splitKV(kv, "-V")
		if err != nil {
			return err
		}
		vm.ExtVar(k, v)
	}
	for _, name := range o.extStrEnv {
		v, ok := os.LookupEnv(name)
		if !ok {
			return fmt.Errorf("-E %s: environment variable not set", name)
		}
		vm.ExtVar(name, v)
	}
	for _, kv := range o.codeVar {
		k, v, err := splitKV(kv, "--code-var")
		if err != nil {
			return err
		}
		vm.ExtCode(k, v)
	}
	for _, name := range o.codeEnv {
		v, ok := os.LookupEnv(name)
		if !ok {
			return fmt.Errorf("--code-env %s: environment variable not set", name)
		}
		vm.ExtCode(name, v)
	}
	for _, kv := range o.codeFile {
		k, path, err := splitKV(kv, "--code-file")
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("--code-file %s: %w", kv, err)
		}
		vm.ExtCode(k, string(data))
	}
	return nil
}

func splitKV(s, flag string) (string, string, error) {
	k, v, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return "", "", fmt.Errorf("%s argument must be in the form name=value, got %q", flag, s)
	}
	return k, v, nil
}

// evaluate dispatches to the VM's multi/stream/single-document entry
// point and flattens the result to one rendered string (or a set of
// named documents joined with a manifest header, matching the reference
// CLI's `-m` file-listing-on-stdout behavior).
func evaluate(vm *jsonnet.VM, o *options, filename, snippet string) (string, error) {
	switch {
	case o.multiDir != "":
		docs, err := vm.EvaluateAnonymousSnippetMulti(filename, snippet)
		if err != nil {
			return "", err
		}
		return writeMultiDocs(o.multiDir, docs)
	case o.streamYAML:
		docs, err := vm.EvaluateAnonymousSnippetStream(filename, snippet)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		for _, d := range docs {
			b.WriteString("---\n")
			b.WriteString(d)
			if !strings.HasSuffix(d, "\n") {
				b.WriteString("\n")
			}
		}
		if len(docs) > 0 {
			b.WriteString("...\n")
		}
		return b.String(), nil
	default:
		return vm.EvaluateAnonymousSnippet(filename, snippet)
	}
}

// writeMultiDocs writes each named document under dir and returns the
// newline-joined list of written filenames, which is what the reference
// CLI prints to stdout/the manifest file in multi mode.
func writeMultiDocs(dir string, docs map[string]string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, name := range jsonnet.SortedKeys(docs) {
		path := dir + "/" + name
		if err := os.WriteFile(path, []byte(docs[name]), 0o644); err != nil {
			return "", err
		}
		b.WriteString(path)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func writeOutput(o *options, out string) error {
	if o.outputFile == "" {
		_, err := io.WriteString(diagnostics.Stdout(), out)
		return err
	}
	return os.WriteFile(o.outputFile, []byte(out), 0o644)
}

// selfCheck compares freshly rendered output against a golden file and,
// on mismatch, prints a readable diff before exiting 2.
func selfCheck(goldenPath, out string) error {
	golden, err := os.ReadFile(goldenPath)
	if err != nil {
		return fmt.Errorf("reading golden file %s: %w", goldenPath, err)
	}
	if string(golden) == out {
		return nil
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(golden), out, false)
	fmt.Fprintln(diagnostics.Stderr(), "output differs from "+goldenPath+":")
	fmt.Fprintln(diagnostics.Stderr(), dmp.DiffPrettyText(diffs))
	os.Exit(2)
	return nil
}

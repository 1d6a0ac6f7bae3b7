package jsonnet

import (
	"bytes"
	"fmt"
	"os"
	"runtime/debug"
	"sort"

	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
	"github.com/google/jsonnet-sub000/internal/parser"
	"github.com/google/jsonnet-sub000/internal/staticcheck"
)

// Config mirrors the tunables the command line exposes: MaxStack bounds
// the explicit call stack, GCMinObjects and GCGrowthTrigger tune the
// mark-and-sweep collector, MaxTrace caps how many frames a runtime error
// prints, and StringOutput selects the `-S` raw-string rendering mode
// instead of JSON.
type Config struct {
	MaxStack        int
	GCMinObjects    int
	GCGrowthTrigger float64
	MaxTrace        int
	StringOutput    bool
}

func DefaultConfig() Config {
	return Config{
		MaxStack:        500,
		GCMinObjects:    1000,
		GCGrowthTrigger: 2.0,
		MaxTrace:        20,
	}
}

// extVal is one binding passed via -V/-E/--code-var/--code-env/--code-file:
// either a plain string or a snippet of Jsonnet code to
// evaluate, matching the reference CLI's ext-var/tla-var split.
type extVal struct {
	value  string
	isCode bool
}

// VM is the evaluation entry point: construct one, configure it with
// ExtVar/TLAVar/Importer, then call one of the Evaluate* methods. It is
// not safe for concurrent use. Each Evaluate* call builds its own heap,
// interpreter and import cache, and resolves the ext vars and TLAs
// afresh; only the VM's configuration (bindings, importer, Config) is
// shared across calls.
type VM struct {
	Config
	ext      map[ast.Identifier]extVal
	tla      map[ast.Identifier]extVal
	importer Importer
	TraceOut *os.File
}

func MakeVM() *VM {
	return &VM{
		Config:   DefaultConfig(),
		ext:      make(map[ast.Identifier]extVal),
		tla:      make(map[ast.Identifier]extVal),
		importer: &FileImporter{},
	}
}

func (vm *VM) ExtVar(key, val string) { vm.ext[ast.Identifier(key)] = extVal{value: val} }
func (vm *VM) ExtCode(key, code string) {
	vm.ext[ast.Identifier(key)] = extVal{value: code, isCode: true}
}
func (vm *VM) TLAVar(key, val string) { vm.tla[ast.Identifier(key)] = extVal{value: val} }
func (vm *VM) TLACode(key, code string) {
	vm.tla[ast.Identifier(key)] = extVal{value: code, isCode: true}
}

func (vm *VM) SetImporter(imp Importer) { vm.importer = imp }

// newInterpreter builds one fresh interpreter (heap, call stack, import
// cache, resolved ext vars) for a single Evaluate* call.
func (vm *VM) newInterpreter() (*interpreter, error) {
	h := heap.New(heap.Config{MinObjects: vm.GCMinObjects, GrowthTrigger: vm.GCGrowthTrigger})
	i := &interpreter{
		heap:        h,
		stack:       newCallStack(vm.MaxStack, vm.MaxTrace),
		imports:     newImportCache(vm.importer),
		extVars:     make(map[ast.Identifier]Value),
		tlaVars:     make(map[ast.Identifier]Value),
		config:      vm.Config,
		traceWriter: os.Stderr,
	}
	if vm.TraceOut != nil {
		i.traceWriter = vm.TraceOut
	}
	i.stdThunk = readyThunk(h, buildStdObject(h))
	for name, e := range vm.ext {
		v, err := i.resolveExtVal(name, e)
		if err != nil {
			return nil, err
		}
		i.extVars[name] = v
	}
	for name, e := range vm.tla {
		v, err := i.resolveExtVal(name, e)
		if err != nil {
			return nil, err
		}
		i.tlaVars[name] = v
	}
	return i, nil
}

// resolveExtVal turns a `-V key=val` or `--code-var key=expr` CLI binding
// into a Value: plain strings become Jsonnet strings directly, code
// bindings are parsed/desugared/analyzed/evaluated like any other
// snippet, rooted at the same std the main program sees.
func (i *interpreter) resolveExtVal(name ast.Identifier, e extVal) (Value, error) {
	if !e.isCode {
		return makeValueString(e.value), nil
	}
	node, err := i.parseAndDesugar("<"+string(name)+">", e.value)
	if err != nil {
		return nil, err
	}
	return i.eval(i.rootEnv(), node)
}

// parseAndDesugar runs the full front end on one file's source:
// lex+parse to the sugared AST, desugar to the core
// subset eval.go dispatches on, then statically analyze (free variables,
// unbound references, self/super placement) before any evaluation
// happens.
func (i *interpreter) parseAndDesugar(filename, src string) (ast.Node, error) {
	node, err := parser.Parse(filename, src)
	if err != nil {
		return nil, err
	}
	if err := parser.Desugar(&node); err != nil {
		return nil, err
	}
	if err := staticcheck.Analyze(node); err != nil {
		return nil, err
	}
	return node, nil
}

// rootEnv is the environment every top-level program and every imported
// file evaluates in: no user locals, self/super unbound, with `std` bound
// directly as a variable in the root frame. This is simpler than the
// reference implementation's "local std = ...; <program>" source rewrite
// and behaves identically for every program the static checker accepts --
// staticcheck seeds its free-variable analysis with "std" already bound
// for exactly this reason.
func (i *interpreter) rootEnv() *Environment {
	env := newEnvironment(i.heap, nil)
	env.bind("std", i.stdThunk)
	return env
}

// maxRecursionGuard turns a Go panic raised while parsing or evaluating
// (a genuine internal bug) into an error instead of crashing the process,
// mirroring the reference VM's top-level recover in
// Evaluate/EvaluateStream/EvaluateMulti. A Go stack overflow is a fatal
// runtime error, not a panic, so it is not caught here.
func maxRecursionGuard(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("(CRASH) %v\n%s", r, debug.Stack())
	}
}

func (vm *VM) evalTopLevel(filename, snippet string) (v Value, i *interpreter, err error) {
	defer maxRecursionGuard(&err)
	i, err = vm.newInterpreter()
	if err != nil {
		return nil, nil, err
	}
	node, err := i.parseAndDesugar(filename, snippet)
	if err != nil {
		return nil, nil, err
	}
	v, err = i.eval(i.rootEnv(), node)
	if err != nil {
		return nil, nil, err
	}
	v, err = i.applyTLAs(v)
	if err != nil {
		return nil, nil, err
	}
	return v, i, nil
}

// applyTLAs calls the top-level value with the configured top-level
// arguments if it is a function; otherwise the TLAs are ignored,
// matching a plain non-function program.
func (i *interpreter) applyTLAs(v Value) (Value, error) {
	fn, ok := v.(Function)
	if !ok {
		return v, nil
	}
	args := make(map[ast.Identifier]*Thunk, len(i.tlaVars))
	for name, val := range i.tlaVars {
		args[name] = readyThunk(i.heap, val)
	}
	return i.callFunction(fn, args, ast.LocationRange{})
}

// EvaluateAnonymousSnippet evaluates snippet (filename used only for
// error messages/relative imports) and renders the result as JSON.
func (vm *VM) EvaluateAnonymousSnippet(filename, snippet string) (string, error) {
	v, i, err := vm.evalTopLevel(filename, snippet)
	if err != nil {
		return "", err
	}
	return i.render(v)
}

func (i *interpreter) render(v Value) (string, error) {
	if i.config.StringOutput {
		s, ok := v.(*valueString)
		if !ok {
			return "", i.runtimeErrorf(ast.LocationRange{}, "Expected string result, got: %s", v.typename())
		}
		return s.goString() + "\n", nil
	}
	var buf bytes.Buffer
	if err := i.manifestJSON(v, "", &buf); err != nil {
		return "", err
	}
	buf.WriteString("\n")
	return buf.String(), nil
}

// EvaluateFile evaluates the file at path through the VM's configured
// Importer and renders the result as JSON.
func (vm *VM) EvaluateFile(path string) (string, error) {
	contents, foundAt, err := vm.importer.Import("", path)
	if err != nil {
		return "", fmt.Errorf("couldn't open %q: %w", path, err)
	}
	return vm.EvaluateAnonymousSnippet(foundAt, contents)
}

// EvaluateAnonymousSnippetMulti is the `-m`/`--multi` mode: the top-level
// value must be an object, and each visible field becomes one output file.
func (vm *VM) EvaluateAnonymousSnippetMulti(filename, snippet string) (map[string]string, error) {
	v, i, err := vm.evalTopLevel(filename, snippet)
	if err != nil {
		return nil, err
	}
	return i.manifestMulti(v)
}

// EvaluateAnonymousSnippetStream is the `-y`/stream mode: the top-level
// value must be an array, rendered as one JSON document per element.
func (vm *VM) EvaluateAnonymousSnippetStream(filename, snippet string) ([]string, error) {
	v, i, err := vm.evalTopLevel(filename, snippet)
	if err != nil {
		return nil, err
	}
	return i.manifestStream(v)
}

func (vm *VM) EvaluateFileMulti(path string) (map[string]string, error) {
	contents, foundAt, err := vm.importer.Import("", path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %q: %w", path, err)
	}
	return vm.EvaluateAnonymousSnippetMulti(foundAt, contents)
}

func (vm *VM) EvaluateFileStream(path string) ([]string, error) {
	contents, foundAt, err := vm.importer.Import("", path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %q: %w", path, err)
	}
	return vm.EvaluateAnonymousSnippetStream(foundAt, contents)
}

// SortedKeys is a small helper the cmd/jsonnet driver uses when printing
// multi-file output in a deterministic order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

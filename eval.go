package jsonnet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/google/jsonnet-sub000/ast"
	errs "github.com/google/jsonnet-sub000/internal/errors"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// frameKind labels entries on the interpreter's explicit call stack: it
// exists to build accurate runtime-error traces and
// to enforce the configured max call-frame depth uniformly, independent
// of how deep the host (Go) call stack itself happens to be.
type frameKind int

const (
	frameCall frameKind = iota
	frameForce
	frameLocal
	frameIf
	frameIndexTarget
	frameIndexIndex
	frameBinaryLeft
	frameBinaryRight
	frameObject
	frameObjectCompArray
	frameObjectCompElement
	frameErrorExpr
	frameUnary
	frameApplyTarget
	frameBuiltinForceThunks
	frameEqualityManifest
	frameStringConcat
	frameAssert
)

// isCallFrame reports whether kind counts toward the configured max-depth
// cap: application, thunk-force, and object-field evaluation (the latter
// is pushed as frameCall from indexObject). Every other frame
// kind (Local, If, operator framing, ...) exists only to produce accurate
// traces and never trips the cap.
func isCallFrame(kind frameKind) bool {
	return kind == frameCall || kind == frameForce
}

// traceElement is one reported line of a stack trace: a source location
// plus the best available name for what executes there.
type traceElement struct {
	loc  ast.LocationRange
	name string
}

type stackEntry struct {
	kind  frameKind
	trace traceElement
}

// callStack is the evaluator's explicit continuation stack, realized
// pragmatically: rather than a literal CPS trampoline, node evaluation
// still recurses through Go's own call stack (idiomatic, and
// far less risky to get right without a compiler to check it), but every
// recursive descent into a sub-expression pushes a tagged entry here
// first. That preserves the two properties that actually matter here:
// a uniform, host-independent max-depth check and a faithful trace for
// RuntimeError. Entries hold no heap references; a collection is rooted
// by maybeCollect's arguments and the heap's stash, not by this stack.
type callStack struct {
	entries  []stackEntry
	max      int
	maxTrace int

	// calls counts only the entries for which isCallFrame is true --
	// the cap is checked against this, not len(entries), so nesting
	// through non-call frames (Local, If, operator framing, ...) never
	// trips "max stack frames exceeded" on its own.
	calls int
}

func newCallStack(max, maxTrace int) *callStack {
	return &callStack{max: max, maxTrace: maxTrace}
}

func (s *callStack) push(kind frameKind, trace traceElement) error {
	if isCallFrame(kind) && s.calls >= s.max {
		return &errs.RuntimeError{
			Msg:        "max stack frames exceeded",
			StackTrace: s.traceFrames(),
			MaxTrace:   s.maxTrace,
		}
	}
	s.entries = append(s.entries, stackEntry{kind: kind, trace: trace})
	if isCallFrame(kind) {
		s.calls++
	}
	return nil
}

func (s *callStack) pop() {
	last := s.entries[len(s.entries)-1]
	if isCallFrame(last.kind) {
		s.calls--
	}
	s.entries = s.entries[:len(s.entries)-1]
}

// retarget rewrites the top entry's trace in place without pushing or
// popping -- used by a tailstrict call to describe the new callee at the
// same stack depth, so a tailstrict-recursive function's trace still
// names the current call without growing s.calls.
func (s *callStack) retarget(trace traceElement) {
	if len(s.entries) == 0 {
		return
	}
	s.entries[len(s.entries)-1].trace = trace
}

func (s *callStack) traceFrames() []errs.TraceFrame {
	frames := make([]errs.TraceFrame, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		frames = append(frames, errs.TraceFrame{Loc: s.entries[i].trace.loc, Name: s.entries[i].trace.name})
	}
	return frames
}

// interpreter holds everything one evaluation run shares: the heap,
// the call stack, the import cache, external variables, and the std
// object every environment's root ultimately chains to.
type interpreter struct {
	heap     *heap.Heap
	stack    *callStack
	imports  *importCache
	extVars  map[ast.Identifier]Value
	tlaVars  map[ast.Identifier]Value
	stdThunk *Thunk
	config   Config

	// traceWriter receives std.trace's side-channel output;
	// defaults to os.Stderr, overridable for tests.
	traceWriter io.Writer
}

func (i *interpreter) traceOut(loc ast.LocationRange, msg string) {
	if i.traceWriter == nil {
		return
	}
	fmt.Fprintf(i.traceWriter, "TRACE: %s: %s\n", loc.String(), msg)
}

func (i *interpreter) runtimeError(loc ast.LocationRange, msg string) error {
	frames := append([]errs.TraceFrame{{Loc: loc, Name: ""}}, i.stack.traceFrames()...)
	return &errs.RuntimeError{Msg: msg, StackTrace: frames, MaxTrace: i.config.MaxTrace}
}

func (i *interpreter) runtimeErrorf(loc ast.LocationRange, format string, args ...interface{}) error {
	return i.runtimeError(loc, fmt.Sprintf(format, args...))
}

// maybeCollect triggers a GC cycle if the heap's thresholds say it's due,
// rooted at the env currently in scope plus whatever value was just
// produced; the stash pushed around each force (see below)
// supplies the rest of the live set for any collection that happens
// while a thunk is still being computed.
func (i *interpreter) maybeCollect(env *Environment, v Value) {
	if !i.heap.ShouldCollect() {
		return
	}
	roots := make([]heap.Entity, 0, 2)
	if env != nil {
		roots = append(roots, env)
	}
	if e, ok := v.(heap.Entity); ok {
		roots = append(roots, e)
	}
	i.heap.Collect(roots...)
}

// force evaluates a thunk to a Value, memoizing the result. Re-entering a
// thunk that is still being forced means a strict cycle the static check
// could not see. Forcing is one of the three frame kinds that count
// toward the max-stack cap, so every not-yet-filled thunk pushes a frame
// here -- otherwise a long chain of aliased locals would recurse through
// force/eval entirely on Go's own stack with no depth check at all.
func (i *interpreter) force(t *Thunk, loc ast.LocationRange, name string) (Value, error) {
	if t.filled {
		return t.value, t.err
	}
	if t.inProgress {
		return nil, i.runtimeError(loc, "Self-referential local, or cyclic dependency between locals, detected.")
	}
	if err := i.stack.push(frameForce, traceElement{loc: loc, name: name}); err != nil {
		return nil, err
	}
	t.inProgress = true
	mark := i.heap.StashPush(t)
	var v Value
	var err error
	if t.native != nil {
		v, err = t.native(i)
	} else {
		v, err = i.eval(t.env, t.node)
	}
	i.heap.StashPop(mark)
	t.inProgress = false
	t.filled = true
	t.value = v
	t.err = err
	// The suspension is dead once filled; dropping it lets the collector
	// reclaim the captured environment.
	t.env = nil
	t.node = nil
	t.native = nil
	t.nativeRoots = nil
	i.stack.pop()
	if err == nil {
		i.maybeCollect(t.env, v)
	}
	return v, err
}

func (i *interpreter) evalLoc(env *Environment, node ast.Node, kind frameKind, name string) (Value, error) {
	loc := *node.Loc()
	if err := i.stack.push(kind, traceElement{loc: loc, name: name}); err != nil {
		return nil, err
	}
	v, err := i.eval(env, node)
	i.stack.pop()
	return v, err
}

// eval is the single dispatch point over the desugared core AST.
// Nothing here triggers actual parsing/desugaring -- that already
// happened before an ast.Node reaches the evaluator.
func (i *interpreter) eval(env *Environment, node ast.Node) (Value, error) {
	switch n := node.(type) {
	case *ast.LiteralNull:
		return nullValue, nil
	case *ast.LiteralBoolean:
		return makeValueBoolean(n.Value), nil
	case *ast.LiteralNumber:
		return makeValueNumber(n.Value), nil
	case *ast.LiteralString:
		return makeValueString(n.Value), nil
	case *ast.Var:
		t, ok := env.lookup(n.Id)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Unknown variable: %s", n.Id)
		}
		return i.force(t, *n.Loc(), string(n.Id))
	case *ast.Self:
		if env.self == nil {
			return nil, i.runtimeError(*n.Loc(), "Attempt to use `self` outside of an object.")
		}
		return env.self, nil
	case *ast.Local:
		return i.evalLocal(env, n)
	case *ast.Function:
		return &closure{env: env, params: n.Parameters, body: n.Body}, nil
	case *ast.Apply:
		return i.evalApply(env, n)
	case *ast.Binary:
		return i.evalBinary(env, n)
	case *ast.Unary:
		return i.evalUnary(env, n)
	case *ast.Conditional:
		cond, err := i.evalLoc(env, n.Cond, frameIf, "conditional")
		if err != nil {
			return nil, err
		}
		b, ok := cond.(*valueBoolean)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Condition must be a boolean, got %s", cond.typename())
		}
		if b.value {
			return i.eval(env, n.BranchTrue)
		}
		if n.BranchFalse != nil {
			return i.eval(env, n.BranchFalse)
		}
		return nullValue, nil
	case *ast.Error:
		v, err := i.evalLoc(env, n.Expr, frameErrorExpr, "error")
		if err != nil {
			return nil, err
		}
		msg, err := i.valueToString(v, *n.Loc())
		if err != nil {
			return nil, err
		}
		return nil, i.runtimeError(*n.Loc(), msg)
	case *ast.Assert:
		ok, err := i.evalAssertCond(env, n)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, err
		}
		return i.eval(env, n.Rest)
	case *ast.Array:
		elems := make([]*Thunk, len(n.Elements))
		for idx, e := range n.Elements {
			elems[idx] = newThunk(i.heap, "", env, e)
		}
		return makeValueArray(elems), nil
	case *ast.Index:
		return i.evalIndex(env, n)
	case *ast.Slice:
		return i.evalSlice(env, n)
	case *ast.SuperIndex:
		return i.evalSuperIndex(env, n)
	case *ast.InSuper:
		return i.evalInSuper(env, n)
	case *ast.DesugaredObject:
		return i.evalDesugaredObject(env, n)
	case *ast.ObjectComp:
		return i.evalObjectComp(env, n)
	case *ast.Import:
		return i.evalImport(env, n)
	case *ast.ImportStr:
		return i.evalImportStr(env, n)
	case *ast.BuiltinFunction:
		b, ok := builtinTable[n.Name]
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "INTERNAL ERROR: unknown builtin %s", n.Name)
		}
		return b, nil
	default:
		return nil, i.runtimeErrorf(*node.Loc(), "INTERNAL ERROR: unhandled AST node %T", node)
	}
}

func (i *interpreter) evalLocal(env *Environment, n *ast.Local) (Value, error) {
	child := newEnvironment(i.heap, env)
	for _, bind := range n.Binds {
		child.bind(bind.Variable, newThunk(i.heap, bind.Variable, child, bind.Body))
	}
	if err := i.stack.push(frameLocal, traceElement{loc: *n.Loc(), name: "local"}); err != nil {
		return nil, err
	}
	v, err := i.eval(child, n.Body)
	i.stack.pop()
	return v, err
}

func (i *interpreter) evalAssertCond(env *Environment, n *ast.Assert) (bool, error) {
	if err := i.stack.push(frameAssert, traceElement{loc: *n.Loc(), name: "assert"}); err != nil {
		return false, err
	}
	defer i.stack.pop()
	v, err := i.eval(env, n.Cond)
	if err != nil {
		return false, err
	}
	b, ok := v.(*valueBoolean)
	if !ok {
		return false, i.runtimeErrorf(*n.Loc(), "Assertion condition must be a boolean, got %s", v.typename())
	}
	if b.value {
		return true, nil
	}
	if n.Message != nil {
		msgV, err := i.eval(env, n.Message)
		if err != nil {
			return false, err
		}
		msg, err := i.valueToString(msgV, *n.Loc())
		if err != nil {
			return false, err
		}
		return false, i.runtimeError(*n.Loc(), "Assertion failed: "+msg)
	}
	return false, i.runtimeError(*n.Loc(), "Assertion failed")
}

// evalApply implements function application. An ordinary call pushes one
// frameCall. A tailstrict call instead forces every argument thunk up
// front and then runs the callee in the caller's own
// call frame: the top stack entry is retargeted to describe the new
// callee rather than a new entry being pushed, so recursion through
// tailstrict calls never grows the counted stack no matter how deep it
// goes. The argument forcing is what makes the frame reuse sound -- a
// suspended argument could otherwise outlive the frame that describes
// where it came from.
func (i *interpreter) evalApply(env *Environment, n *ast.Apply) (Value, error) {
	targetV, err := i.evalLoc(env, n.Target, frameApplyTarget, "function call")
	if err != nil {
		return nil, err
	}
	fn, ok := targetV.(Function)
	if !ok {
		return nil, i.runtimeErrorf(*n.Loc(), "Only functions can be called, got %s", targetV.typename())
	}
	args, err := i.bindArguments(env, fn, n.Arguments, *n.Loc())
	if err != nil {
		return nil, err
	}
	name := "anonymous"
	if id, ok := n.Target.(*ast.Var); ok {
		name = string(id.Id)
	}
	trace := traceElement{loc: *n.Loc(), name: name}

	if n.TailStrict {
		for _, p := range fn.Parameters() {
			t, ok := args[p]
			if !ok {
				continue // defaulted optional parameter, nothing to force
			}
			if _, err := i.force(t, *n.Loc(), string(t.name)); err != nil {
				return nil, err
			}
		}
		i.stack.retarget(trace)
		result, err := i.callFunction(fn, args, *n.Loc())
		if err == nil {
			i.maybeCollect(env, result)
		}
		return result, err
	}

	if err := i.stack.push(frameCall, trace); err != nil {
		return nil, err
	}
	defer i.stack.pop()
	result, err := i.callFunction(fn, args, *n.Loc())
	if err == nil {
		i.maybeCollect(env, result)
	}
	return result, err
}

// bindArguments matches positional/named call arguments against a
// function's parameter list and checks that every required parameter of
// a closure is supplied. Omitted optional parameters are left unbound
// here; callFunction fills in their default argument thunks.
func (i *interpreter) bindArguments(env *Environment, fn Function, args ast.Arguments, loc ast.LocationRange) (map[ast.Identifier]*Thunk, error) {
	params := fn.Parameters()
	bound := make(map[ast.Identifier]*Thunk, len(params))
	if len(args.Positional) > len(params) {
		return nil, i.runtimeErrorf(loc, "Too many arguments, function has %d parameter(s)", len(params))
	}
	for idx, a := range args.Positional {
		bound[params[idx]] = newThunk(i.heap, params[idx], env, a)
	}
	for _, named := range args.Named {
		found := false
		for _, p := range params {
			if p == named.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, i.runtimeErrorf(loc, "Function has no parameter %s", named.Name)
		}
		if _, dup := bound[named.Name]; dup {
			return nil, i.runtimeErrorf(loc, "Argument %s already bound", named.Name)
		}
		bound[named.Name] = newThunk(i.heap, named.Name, env, named.Arg)
	}
	if c, ok := fn.(*closure); ok {
		for idx, p := range c.params.Required {
			if _, ok := bound[p]; !ok {
				return nil, i.runtimeErrorf(loc, "Missing argument: %s", c.params.Required[idx])
			}
		}
	}
	return bound, nil
}

func (i *interpreter) callFunction(fn Function, args map[ast.Identifier]*Thunk, loc ast.LocationRange) (Value, error) {
	switch f := fn.(type) {
	case *closure:
		callEnv := newEnvironment(i.heap, f.env)
		for _, p := range f.params.Required {
			t, ok := args[p]
			if !ok {
				return nil, i.runtimeErrorf(loc, "Missing argument: %s", p)
			}
			callEnv.bind(p, t)
		}
		for _, p := range f.params.Optional {
			if t, ok := args[p.Name]; ok {
				callEnv.bind(p.Name, t)
			} else {
				callEnv.bind(p.Name, newThunk(i.heap, p.Name, callEnv, p.DefaultArg))
			}
		}
		return i.eval(callEnv, f.body)
	case *builtin:
		ordered := make([]*Thunk, len(f.params))
		for idx, p := range f.params {
			t, ok := args[p]
			if !ok {
				return nil, i.runtimeErrorf(loc, "Missing argument: %s", p)
			}
			ordered[idx] = t
		}
		return f.fn(i, traceElement{loc: loc, name: string(f.name)}, ordered)
	default:
		return nil, i.runtimeErrorf(loc, "INTERNAL ERROR: unrecognised function implementation %T", fn)
	}
}

func (i *interpreter) evalIndex(env *Environment, n *ast.Index) (Value, error) {
	targetV, err := i.evalLoc(env, n.Target, frameIndexTarget, "index target")
	if err != nil {
		return nil, err
	}
	switch t := targetV.(type) {
	case objectValue:
		idxV, err := i.evalLoc(env, n.Index, frameIndexIndex, "index")
		if err != nil {
			return nil, err
		}
		name, err := i.requireString(idxV, *n.Loc())
		if err != nil {
			return nil, err
		}
		return i.indexObject(t, name, *n.Loc())
	case *valueArray:
		idxV, err := i.evalLoc(env, n.Index, frameIndexIndex, "index")
		if err != nil {
			return nil, err
		}
		num, ok := idxV.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Array index must be a number, got %s", idxV.typename())
		}
		idx := int(num.value)
		if idx < 0 || idx >= len(t.elements) {
			return nil, i.runtimeErrorf(*n.Loc(), "Array index %d out of bounds [0, %d)", idx, len(t.elements))
		}
		return i.force(t.elements[idx], *n.Loc(), "")
	case *valueString:
		idxV, err := i.evalLoc(env, n.Index, frameIndexIndex, "index")
		if err != nil {
			return nil, err
		}
		num, ok := idxV.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "String index must be a number, got %s", idxV.typename())
		}
		runes := t.flatten()
		idx := int(num.value)
		if idx < 0 || idx >= len(runes) {
			return nil, i.runtimeErrorf(*n.Loc(), "String index %d out of bounds [0, %d)", idx, len(runes))
		}
		return makeValueStringRunes([]rune{runes[idx]}), nil
	default:
		return nil, i.runtimeErrorf(*n.Loc(), "Cannot index a %s", targetV.typename())
	}
}

// indexObject resolves obj.name, binding self to obj (the full merged
// view) and super to the leaf just past the one the field
// was actually found on.
func (i *interpreter) indexObject(obj objectValue, name string, loc ast.LocationRange) (Value, error) {
	if err := i.ensureAsserts(obj); err != nil {
		return nil, err
	}
	body, hide, fenv, leafIdx, ok := findField(obj, name, 0)
	_ = hide
	if !ok {
		return nil, i.runtimeErrorf(loc, "Field does not exist: %s", name)
	}
	fieldEnv := fenv.withSelf(i.heap, obj, leafIdx+1)
	if err := i.stack.push(frameCall, traceElement{loc: loc, name: "field " + name}); err != nil {
		return nil, err
	}
	defer i.stack.pop()
	result, err := i.eval(fieldEnv, body)
	if err == nil {
		i.maybeCollect(fieldEnv, result)
	}
	return result, err
}

func (i *interpreter) evalSuperIndex(env *Environment, n *ast.SuperIndex) (Value, error) {
	if env.self == nil {
		return nil, i.runtimeError(*n.Loc(), "Attempt to use `super` outside of an object.")
	}
	idxV, err := i.eval(env, n.Index)
	if err != nil {
		return nil, err
	}
	name, err := i.requireString(idxV, *n.Loc())
	if err != nil {
		return nil, err
	}
	body, _, fenv, leafIdx, ok := findField(env.self, name, env.superDepth)
	if !ok {
		return nil, i.runtimeErrorf(*n.Loc(), "Field does not exist: %s", name)
	}
	fieldEnv := fenv.withSelf(i.heap, env.self, leafIdx+1)
	return i.eval(fieldEnv, body)
}

func (i *interpreter) evalInSuper(env *Environment, n *ast.InSuper) (Value, error) {
	if env.self == nil {
		return nil, i.runtimeError(*n.Loc(), "Attempt to use `super` outside of an object.")
	}
	idxV, err := i.eval(env, n.Index)
	if err != nil {
		return nil, err
	}
	name, err := i.requireString(idxV, *n.Loc())
	if err != nil {
		return nil, err
	}
	return makeValueBoolean(fieldExists(env.self, name, env.superDepth)), nil
}

func (i *interpreter) evalSlice(env *Environment, n *ast.Slice) (Value, error) {
	targetV, err := i.eval(env, n.Target)
	if err != nil {
		return nil, err
	}
	resolve := func(node ast.Node, def int) (int, error) {
		if node == nil {
			return def, nil
		}
		v, err := i.eval(env, node)
		if err != nil {
			return 0, err
		}
		num, ok := v.(*valueNumber)
		if !ok {
			return 0, i.runtimeErrorf(*n.Loc(), "Slice bounds must be numbers, got %s", v.typename())
		}
		return int(num.value), nil
	}
	step, err := resolve(n.Step, 1)
	if err != nil {
		return nil, err
	}
	if step == 0 {
		step = 1
	}
	switch t := targetV.(type) {
	case *valueArray:
		begin, err := resolve(n.BeginIndex, 0)
		if err != nil {
			return nil, err
		}
		end, err := resolve(n.EndIndex, len(t.elements))
		if err != nil {
			return nil, err
		}
		return makeValueArray(sliceThunks(t.elements, begin, end, step)), nil
	case *valueString:
		runes := t.flatten()
		begin, err := resolve(n.BeginIndex, 0)
		if err != nil {
			return nil, err
		}
		end, err := resolve(n.EndIndex, len(runes))
		if err != nil {
			return nil, err
		}
		return makeValueStringRunes(sliceRunes(runes, begin, end, step)), nil
	default:
		return nil, i.runtimeErrorf(*n.Loc(), "Cannot slice a %s", targetV.typename())
	}
}

func sliceThunks(elems []*Thunk, begin, end, step int) []*Thunk {
	if begin < 0 {
		begin = 0
	}
	if end > len(elems) {
		end = len(elems)
	}
	var out []*Thunk
	for idx := begin; idx < end; idx += step {
		out = append(out, elems[idx])
	}
	return out
}

func sliceRunes(runes []rune, begin, end, step int) []rune {
	if begin < 0 {
		begin = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	var out []rune
	for idx := begin; idx < end; idx += step {
		out = append(out, runes[idx])
	}
	return out
}

func (i *interpreter) requireString(v Value, loc ast.LocationRange) (string, error) {
	s, ok := v.(*valueString)
	if !ok {
		return "", i.runtimeErrorf(loc, "Field name must be a string, got %s", v.typename())
	}
	return s.goString(), nil
}

func (i *interpreter) valueToString(v Value, loc ast.LocationRange) (string, error) {
	if s, ok := v.(*valueString); ok {
		return s.goString(), nil
	}
	var buf bytes.Buffer
	if err := i.manifestJSON(v, "", &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

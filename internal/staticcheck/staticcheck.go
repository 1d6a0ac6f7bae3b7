// Package staticcheck implements the front end's static analysis pass: it
// annotates each AST node with its free variables and rejects unbound
// references, self/super outside an object, and strictly self-referential
// local bindings. It runs after desugaring (internal/parser.Desugar), so
// it only has to understand the core node set.
package staticcheck

import (
	"fmt"

	"github.com/google/jsonnet-sub000/ast"
	errs "github.com/google/jsonnet-sub000/internal/errors"
)

// Analyze walks node, setting FreeVariables on every node it visits and
// rejecting variable references not bound by any enclosing
// local/function/comprehension/object, plus any use of self/super outside
// of an object's field bodies. "std" is implicitly bound at the root,
// matching the root environment the evaluator builds.
func Analyze(node ast.Node) error {
	_, err := visit(node, false, ast.NewIdentifierSet("std"))
	return err
}

// unguardedSelfRef finds a reference to id sitting in a strictly-evaluated
// position of id's own defining expression -- the spine forced as soon as
// the binding's thunk is, before laziness can intervene: operator operands,
// call and index targets, conditional conditions, comprehension sources,
// computed field names. Such a binding (`local x = x`) can never be forced
// without re-entering itself, so it is rejected before evaluation rather
// than left to blow the stack. References behind a function body, array
// element, object field body, or conditional branch are guarded: the thunk
// fills without touching them.
func unguardedSelfRef(n ast.Node, id ast.Identifier) *ast.LocationRange {
	switch node := n.(type) {
	case *ast.Var:
		if node.Id == id {
			return node.Loc()
		}
	case *ast.Binary:
		if loc := unguardedSelfRef(node.Left, id); loc != nil {
			return loc
		}
		// && and || may never reach the right operand.
		if node.Op != ast.BopAnd && node.Op != ast.BopOr {
			return unguardedSelfRef(node.Right, id)
		}
	case *ast.Unary:
		return unguardedSelfRef(node.Expr, id)
	case *ast.Conditional:
		return unguardedSelfRef(node.Cond, id)
	case *ast.Apply:
		if loc := unguardedSelfRef(node.Target, id); loc != nil {
			return loc
		}
		// Arguments to a user function become thunks; a builtin forces
		// every argument before running, so its arguments are strict.
		if _, builtin := node.Target.(*ast.BuiltinFunction); builtin {
			for _, a := range node.Arguments.Positional {
				if loc := unguardedSelfRef(a, id); loc != nil {
					return loc
				}
			}
			for _, a := range node.Arguments.Named {
				if loc := unguardedSelfRef(a.Arg, id); loc != nil {
					return loc
				}
			}
		}
	case *ast.Index:
		if loc := unguardedSelfRef(node.Target, id); loc != nil {
			return loc
		}
		return unguardedSelfRef(node.Index, id)
	case *ast.Slice:
		for _, sub := range []ast.Node{node.Target, node.BeginIndex, node.EndIndex, node.Step} {
			if sub == nil {
				continue
			}
			if loc := unguardedSelfRef(sub, id); loc != nil {
				return loc
			}
		}
	case *ast.Error:
		return unguardedSelfRef(node.Expr, id)
	case *ast.Assert:
		if loc := unguardedSelfRef(node.Cond, id); loc != nil {
			return loc
		}
		return unguardedSelfRef(node.Rest, id)
	case *ast.Local:
		for _, b := range node.Binds {
			if b.Variable == id {
				// Shadowed: any deeper reference is to the inner binding.
				return nil
			}
		}
		return unguardedSelfRef(node.Body, id)
	case *ast.DesugaredObject:
		// Field names are computed when the object is constructed; bodies
		// and asserts stay suspended.
		for _, f := range node.Fields {
			if f.Name == nil {
				continue
			}
			if loc := unguardedSelfRef(f.Name, id); loc != nil {
				return loc
			}
		}
	case *ast.ObjectComp:
		if loc := unguardedSelfRef(node.Spec.Expr, id); loc != nil {
			return loc
		}
		if node.Spec.VarName == id {
			return nil
		}
		for _, c := range node.Spec.Conditions {
			if loc := unguardedSelfRef(c.Expr, id); loc != nil {
				return loc
			}
		}
		if len(node.Fields) == 1 {
			return unguardedSelfRef(node.Fields[0].Expr1, id)
		}
	case *ast.SuperIndex:
		return unguardedSelfRef(node.Index, id)
	case *ast.InSuper:
		return unguardedSelfRef(node.Index, id)
	}
	// Function, Array, Import*, literals, Self, BuiltinFunction: guarded
	// or leaf.
	return nil
}

func visit(n ast.Node, inObject bool, vars ast.IdentifierSet) (ast.IdentifierSet, error) {
	if n == nil {
		return ast.NewIdentifierSet(), nil
	}
	free := ast.NewIdentifierSet()

	sub := func(child ast.Node, childInObject bool, childVars ast.IdentifierSet) error {
		if child == nil {
			return nil
		}
		fv, err := visit(child, childInObject, childVars)
		if err != nil {
			return err
		}
		free.Append(fv.ToOrderedSlice())
		return nil
	}

	var err error
	switch node := n.(type) {
	case *ast.Apply:
		err = sub(node.Target, inObject, vars)
		for _, a := range node.Arguments.Positional {
			if err == nil {
				err = sub(a, inObject, vars)
			}
		}
		for _, a := range node.Arguments.Named {
			if err == nil {
				err = sub(a.Arg, inObject, vars)
			}
		}
	case *ast.Array:
		for _, e := range node.Elements {
			if err == nil {
				err = sub(e, inObject, vars)
			}
		}
	case *ast.Assert:
		err = sub(node.Cond, inObject, vars)
		if err == nil {
			err = sub(node.Message, inObject, vars)
		}
		if err == nil {
			err = sub(node.Rest, inObject, vars)
		}
	case *ast.Binary:
		err = sub(node.Left, inObject, vars)
		if err == nil {
			err = sub(node.Right, inObject, vars)
		}
	case *ast.BuiltinFunction:
		// Leaf: resolved by id, not by variable lookup.
	case *ast.Conditional:
		err = sub(node.Cond, inObject, vars)
		if err == nil {
			err = sub(node.BranchTrue, inObject, vars)
		}
		if err == nil {
			err = sub(node.BranchFalse, inObject, vars)
		}
	case *ast.Error:
		err = sub(node.Expr, inObject, vars)
	case *ast.Function:
		newVars := vars.Clone()
		for _, p := range node.Parameters.Required {
			newVars.Add(p)
		}
		for _, p := range node.Parameters.Optional {
			newVars.Add(p.Name)
		}
		for _, p := range node.Parameters.Optional {
			if err == nil {
				err = sub(p.DefaultArg, inObject, newVars)
			}
		}
		if err == nil {
			err = sub(node.Body, inObject, newVars)
		}
		for _, p := range node.Parameters.Required {
			free.Remove(p)
		}
		for _, p := range node.Parameters.Optional {
			free.Remove(p.Name)
		}
	case *ast.Import, *ast.ImportStr:
		// Leaf: the path is a string literal, not evaluated in this scope.
	case *ast.Index:
		err = sub(node.Target, inObject, vars)
		if err == nil {
			err = sub(node.Index, inObject, vars)
		}
	case *ast.Slice:
		err = sub(node.Target, inObject, vars)
		if err == nil {
			err = sub(node.BeginIndex, inObject, vars)
		}
		if err == nil {
			err = sub(node.EndIndex, inObject, vars)
		}
		if err == nil {
			err = sub(node.Step, inObject, vars)
		}
	case *ast.InSuper:
		if !inObject {
			return free, errs.MakeStaticError("Can't use super outside of an object.", *node.Loc())
		}
		err = sub(node.Index, inObject, vars)
	case *ast.SuperIndex:
		if !inObject {
			return free, errs.MakeStaticError("Can't use super outside of an object.", *node.Loc())
		}
		err = sub(node.Index, inObject, vars)
	case *ast.Local:
		for _, b := range node.Binds {
			if loc := unguardedSelfRef(b.Body, b.Variable); loc != nil {
				return free, errs.MakeStaticError(fmt.Sprintf("Unknown variable: %s", b.Variable), *loc)
			}
		}
		newVars := vars.Clone()
		for _, b := range node.Binds {
			newVars.Add(b.Variable)
		}
		for _, b := range node.Binds {
			if err == nil {
				err = sub(b.Body, inObject, newVars)
			}
		}
		if err == nil {
			err = sub(node.Body, inObject, newVars)
		}
		for _, b := range node.Binds {
			free.Remove(b.Variable)
		}
	case *ast.LiteralBoolean, *ast.LiteralNull, *ast.LiteralNumber, *ast.LiteralString:
		// Leaf.
	case *ast.DesugaredObject:
		for _, f := range node.Fields {
			if err == nil && f.Name != nil {
				err = sub(f.Name, inObject, vars)
			}
			if err == nil {
				err = sub(f.Body, true, vars)
			}
		}
		for _, a := range node.Asserts {
			if err == nil {
				err = sub(a, true, vars)
			}
		}
	case *ast.ObjectComp:
		if len(node.Fields) != 1 {
			return free, errs.MakeStaticError("object comprehension must desugar to one field", *node.Loc())
		}
		field := node.Fields[0]
		err = sub(node.Spec.Expr, inObject, vars)
		loopVars := vars.Clone()
		loopVars.Add(node.Spec.VarName)
		for _, c := range node.Spec.Conditions {
			if err == nil {
				err = sub(c.Expr, inObject, loopVars)
			}
		}
		if err == nil {
			err = sub(field.Expr1, inObject, loopVars)
		}
		if err == nil {
			err = sub(field.Expr2, true, loopVars)
		}
		free.Remove(node.Spec.VarName)
	case *ast.Self:
		if !inObject {
			return free, errs.MakeStaticError("Can't use self outside of an object.", *node.Loc())
		}
	case *ast.Unary:
		err = sub(node.Expr, inObject, vars)
	case *ast.Var:
		if !vars.Contains(node.Id) {
			return free, errs.MakeStaticError(fmt.Sprintf("Unknown variable: %s", node.Id), *node.Loc())
		}
		free.Add(node.Id)
	default:
		return free, fmt.Errorf("INTERNAL ERROR: static analysis does not recognize AST node %T", n)
	}
	if err != nil {
		return free, err
	}
	n.SetFreeVariables(free.ToOrderedSlice())
	return free, nil
}

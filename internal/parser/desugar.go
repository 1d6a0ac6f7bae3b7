package parser

import (
	"fmt"

	"github.com/google/jsonnet-sub000/ast"
	errs "github.com/google/jsonnet-sub000/internal/errors"
)

// Desugar lowers the sugared AST Parse produces into the minimal core node
// set eval.go dispatches on: Object becomes DesugaredObject,
// ApplyBrace becomes a Binary '+', and array comprehensions and
// multi-clause object comprehensions become nested calls to the
// "$flatMap"/"$objectFlatMerge" builtins (the same
// lowering `core/desugaring.cpp` in the C++ original performs, modulo
// naming). Single-clause, filter-only object comprehensions are left as
// ast.ObjectComp: the evaluator's ObjectComp frame already understands a
// bound identifier plus an `if` chain natively (evalobject.go), so there is
// nothing left to lower in that common case.
//
// objLevel counts object-literal nesting and is reset by nothing except
// another object literal: a Function body does not increment it. This
// mirrors the reference desugarer's rule for where `$` gets (re)bound --
// only an object literal encountered at objLevel 0 introduces a hidden
// `$ = self` local; everything nested inside its field bodies sees
// objLevel >= 1 and leaves the outer `$` binding alone.
func Desugar(node *ast.Node) error {
	return desugar(node, 0)
}

func builtinCall(name ast.Identifier, args ...ast.Node) ast.Node {
	return &ast.Apply{
		Target:    &ast.BuiltinFunction{Name: string(name)},
		Arguments: ast.Arguments{Positional: args},
	}
}

func wrapInArray(n ast.Node) ast.Node {
	return &ast.Array{Elements: ast.Nodes{n}}
}

func simpleLambda(body ast.Node, param ast.Identifier) ast.Node {
	return &ast.Function{Parameters: ast.Parameters{Required: ast.Identifiers{param}}, Body: body}
}

// desugarForSpec turns "inside for x in arr if c1 if c2 ... [for y in arr2 ...]"
// into nested calls of the form $flatMap(function(x) if c1 && c2 then inside
// else [], arr), outermost ForSpec last (it wraps the already-built call from
// its Outer chain).
func desugarForSpec(inside ast.Node, spec *ast.ForSpec, objLevel int) (ast.Node, error) {
	body := inside
	if len(spec.Conditions) > 0 {
		cond := spec.Conditions[0].Expr
		if err := desugar(&cond, objLevel); err != nil {
			return nil, err
		}
		for _, c := range spec.Conditions[1:] {
			ce := c.Expr
			if err := desugar(&ce, objLevel); err != nil {
				return nil, err
			}
			cond = &ast.Binary{Op: ast.BopAnd, Left: cond, Right: ce}
		}
		body = &ast.Conditional{Cond: cond, BranchTrue: inside, BranchFalse: &ast.Array{}}
	}
	fn := simpleLambda(body, spec.VarName)
	arrExpr := spec.Expr
	if err := desugar(&arrExpr, objLevel); err != nil {
		return nil, err
	}
	call := builtinCall("$flatMap", fn, arrExpr)
	if spec.Outer == nil {
		return call, nil
	}
	return desugarForSpec(call, spec.Outer, objLevel)
}

func desugarArrayComp(comp *ast.ArrayComp, objLevel int) (ast.Node, error) {
	body := comp.Body
	if err := desugar(&body, objLevel); err != nil {
		return nil, err
	}
	return desugarForSpec(wrapInArray(body), &comp.Spec, objLevel)
}

// fieldNameNode returns the (not-yet-desugared) name expression of a
// sugared ObjectField, regardless of whether the field spelled its name as
// a bare identifier, a string literal, or a bracketed expression.
func fieldNameNode(f ast.ObjectField) ast.Node {
	if f.Id != nil {
		return &ast.LiteralString{Value: string(*f.Id), Kind: ast.StringDouble}
	}
	return f.Expr1
}

func desugarObjectComp(comp *ast.ObjectComp, objLevel int) (ast.Node, error) {
	if len(comp.Fields) != 1 {
		return nil, errs.MakeStaticError("object comprehension must have exactly one field", *comp.Loc())
	}
	field := comp.Fields[0]
	if field.Kind != ast.ObjectFieldExpr && field.Kind != ast.ObjectFieldStr {
		return nil, errs.MakeStaticError("object comprehension field name must be bracketed", *comp.Loc())
	}
	// A top-level object comprehension re-binds `$` to self inside the
	// field body, like desugarFields does for object literals.
	wrapDollar := func(body ast.Node) ast.Node {
		if objLevel != 0 {
			return body
		}
		return &ast.Local{
			NodeBase: ast.NewNodeBaseLoc(*body.Loc()),
			Binds:    ast.LocalBinds{{Variable: ast.Identifier("$"), Body: &ast.Self{}}},
			Body:     body,
		}
	}

	if comp.Spec.Outer == nil {
		// Single clause: the evaluator's ObjectComp frame already handles a
		// bound identifier plus an `if` chain, so just desugar the pieces
		// in place and keep the node.
		name := field.Expr1
		if err := desugar(&name, objLevel); err != nil {
			return nil, err
		}
		body := field.Expr2
		if err := desugar(&body, objLevel+1); err != nil {
			return nil, err
		}
		body = wrapDollar(body)
		arrExpr := comp.Spec.Expr
		if err := desugar(&arrExpr, objLevel); err != nil {
			return nil, err
		}
		for i := range comp.Spec.Conditions {
			ce := comp.Spec.Conditions[i].Expr
			if err := desugar(&ce, objLevel); err != nil {
				return nil, err
			}
			comp.Spec.Conditions[i].Expr = ce
		}
		comp.Fields[0].Expr1 = name
		comp.Fields[0].Expr2 = body
		comp.Spec.Expr = arrExpr
		return comp, nil
	}

	// Multiple `for` clauses: build one single-field DesugaredObject per
	// iteration via $flatMap, then fold the resulting array of one-field
	// objects together with $objectFlatMerge.
	name := fieldNameNode(field)
	if err := desugar(&name, objLevel); err != nil {
		return nil, err
	}
	body := field.Expr2
	if err := desugar(&body, objLevel+1); err != nil {
		return nil, err
	}
	body = wrapDollar(body)
	fieldObj := &ast.DesugaredObject{
		Fields: ast.DesugaredObjectFields{{Hide: field.Hide, Name: name, Body: body}},
	}
	arrOfObjs, err := desugarForSpec(wrapInArray(fieldObj), &comp.Spec, objLevel)
	if err != nil {
		return nil, err
	}
	return builtinCall("$objectFlatMerge", arrOfObjs), nil
}

// desugarFields converts a sugared Object's field list into a
// DesugaredObject: identifier/string/bracket field names all become name
// expressions, `local` pseudo-fields are re-bound inside every field body
// and assert (so they are ordinary lexical variables that can still see
// self/super, while staying invisible to field-name expressions), and
// `assert` pseudo-fields become conditionals that yield true or raise the
// assert's message, run by object.go's ensureAsserts. A top-level object additionally
// re-binds `$` to self the same way.
func desugarFields(base ast.NodeBase, fields ast.ObjectFields, objLevel int) (ast.Node, error) {
	var asserts ast.Nodes
	var locals ast.LocalBinds
	var desugaredFields ast.DesugaredObjectFields

	for _, f := range fields {
		switch f.Kind {
		case ast.ObjectAssert:
			msg := f.Expr3
			if msg == nil {
				msg = &ast.LiteralString{Value: "Object assertion failed.", Kind: ast.StringDouble}
			}
			// object.go's ensureAsserts only treats an eval *error* as
			// failure, so the condition must raise itself when false --
			// it is not a plain boolean expression.
			asserts = append(asserts, &ast.Conditional{
				Cond:        f.Expr2,
				BranchTrue:  &ast.LiteralBoolean{Value: true},
				BranchFalse: &ast.Error{Expr: msg},
			})
		case ast.ObjectFieldID, ast.ObjectFieldExpr, ast.ObjectFieldStr:
			desugaredFields = append(desugaredFields, ast.DesugaredObjectField{
				Hide:      f.Hide,
				Name:      fieldNameNode(f),
				Body:      f.Expr2,
				PlusSuper: f.SuperSugar,
			})
		case ast.ObjectLocal:
			locals = append(locals, ast.LocalBind{Variable: *f.Id, Body: f.Expr2})
		default:
			return nil, fmt.Errorf("INTERNAL ERROR: unexpected object field kind %v", f.Kind)
		}
	}

	if objLevel == 0 {
		locals = append(locals, ast.LocalBind{Variable: ast.Identifier("$"), Body: &ast.Self{}})
	}

	// Local bind bodies live inside the object (they can see self/super),
	// so they desugar at objLevel+1. They are desugared once here and the
	// resulting nodes shared by every wrapping Local below -- desugaring
	// is not idempotent, so the shared subtrees must not be revisited.
	for i := range locals {
		if err := desugar(&locals[i].Body, objLevel+1); err != nil {
			return nil, err
		}
	}
	wrapInBinds := func(body ast.Node) ast.Node {
		if len(locals) == 0 {
			return body
		}
		return &ast.Local{NodeBase: ast.NewNodeBaseLoc(*body.Loc()), Binds: locals, Body: body}
	}

	for i := range asserts {
		if err := desugar(&asserts[i], objLevel+1); err != nil {
			return nil, err
		}
		asserts[i] = wrapInBinds(asserts[i])
	}
	for i := range desugaredFields {
		if desugaredFields[i].Name != nil {
			if err := desugar(&desugaredFields[i].Name, objLevel); err != nil {
				return nil, err
			}
		}
		if err := desugar(&desugaredFields[i].Body, objLevel+1); err != nil {
			return nil, err
		}
		desugaredFields[i].Body = wrapInBinds(desugaredFields[i].Body)
	}

	return &ast.DesugaredObject{NodeBase: base, Asserts: asserts, Fields: desugaredFields}, nil
}

func desugar(nodePtr *ast.Node, objLevel int) error {
	node := *nodePtr
	if node == nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.Apply:
		if err := desugar(&n.Target, objLevel); err != nil {
			return err
		}
		for i := range n.Arguments.Positional {
			if err := desugar(&n.Arguments.Positional[i], objLevel); err != nil {
				return err
			}
		}
		for i := range n.Arguments.Named {
			if err := desugar(&n.Arguments.Named[i].Arg, objLevel); err != nil {
				return err
			}
		}
	case *ast.ApplyBrace:
		if err := desugar(&n.Left, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.Right, objLevel); err != nil {
			return err
		}
		*nodePtr = &ast.Binary{NodeBase: n.NodeBase, Left: n.Left, Op: ast.BopPlus, Right: n.Right}
	case *ast.Array:
		for i := range n.Elements {
			if err := desugar(&n.Elements[i], objLevel); err != nil {
				return err
			}
		}
	case *ast.ArrayComp:
		out, err := desugarArrayComp(n, objLevel)
		if err != nil {
			return err
		}
		*nodePtr = out
	case *ast.Assert:
		if err := desugar(&n.Cond, objLevel); err != nil {
			return err
		}
		if n.Message != nil {
			if err := desugar(&n.Message, objLevel); err != nil {
				return err
			}
		}
		if err := desugar(&n.Rest, objLevel); err != nil {
			return err
		}
	case *ast.Binary:
		if err := desugar(&n.Left, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.Right, objLevel); err != nil {
			return err
		}
	case *ast.Conditional:
		if err := desugar(&n.Cond, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.BranchTrue, objLevel); err != nil {
			return err
		}
		if n.BranchFalse == nil {
			n.BranchFalse = &ast.LiteralNull{}
		}
		if err := desugar(&n.BranchFalse, objLevel); err != nil {
			return err
		}
	case *ast.Dollar:
		if objLevel == 0 {
			return errs.MakeStaticError("No top-level object found for `$`.", *n.Loc())
		}
		*nodePtr = &ast.Var{NodeBase: n.NodeBase, Id: ast.Identifier("$")}
	case *ast.Error:
		if err := desugar(&n.Expr, objLevel); err != nil {
			return err
		}
	case *ast.Function:
		for i := range n.Parameters.Optional {
			if err := desugar(&n.Parameters.Optional[i].DefaultArg, objLevel); err != nil {
				return err
			}
		}
		if err := desugar(&n.Body, objLevel); err != nil {
			return err
		}
	case *ast.Import, *ast.ImportStr:
		// Leaf: the file literal is never itself desugared further.
	case *ast.Index:
		if err := desugar(&n.Target, objLevel); err != nil {
			return err
		}
		if n.Id != nil {
			n.Index = &ast.LiteralString{Value: string(*n.Id), Kind: ast.StringDouble}
			n.Id = nil
		}
		if err := desugar(&n.Index, objLevel); err != nil {
			return err
		}
	case *ast.Slice:
		if err := desugar(&n.Target, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.BeginIndex, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.EndIndex, objLevel); err != nil {
			return err
		}
		if err := desugar(&n.Step, objLevel); err != nil {
			return err
		}
	case *ast.Local:
		for i := range n.Binds {
			if n.Binds[i].Fun != nil {
				n.Binds[i].Body = n.Binds[i].Fun
				n.Binds[i].Fun = nil
			}
			if err := desugar(&n.Binds[i].Body, objLevel); err != nil {
				return err
			}
		}
		if err := desugar(&n.Body, objLevel); err != nil {
			return err
		}
	case *ast.LiteralBoolean, *ast.LiteralNull, *ast.LiteralNumber, *ast.LiteralString:
		// Leaf: the lexer already fully unescapes string contents.
	case *ast.Object:
		out, err := desugarFields(n.NodeBase, n.Fields, objLevel)
		if err != nil {
			return err
		}
		*nodePtr = out
	case *ast.DesugaredObject:
		panic("INTERNAL ERROR: desugaring an already-desugared object")
	case *ast.ObjectComp:
		out, err := desugarObjectComp(n, objLevel)
		if err != nil {
			return err
		}
		*nodePtr = out
	case *ast.Self:
		// Leaf.
	case *ast.SuperIndex:
		if n.Id != nil {
			n.Index = &ast.LiteralString{Value: string(*n.Id), Kind: ast.StringDouble}
			n.Id = nil
		} else if err := desugar(&n.Index, objLevel); err != nil {
			return err
		}
	case *ast.InSuper:
		if err := desugar(&n.Index, objLevel); err != nil {
			return err
		}
	case *ast.Unary:
		if err := desugar(&n.Expr, objLevel); err != nil {
			return err
		}
	case *ast.Var:
		// Leaf.
	case *ast.BuiltinFunction:
		// Only ever introduced by this pass; nothing further to do.
	default:
		return fmt.Errorf("INTERNAL ERROR: desugarer does not recognize AST node %T", node)
	}
	return nil
}

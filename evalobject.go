package jsonnet

import (
	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// evalDesugaredObject constructs a simpleObject from a literal. Field
// names are evaluated eagerly, in the object's own environment and
// without self/super -- only field bodies get self/super threaded in.
// Field bodies and asserts are simply recorded for later, lazy
// evaluation.
func (i *interpreter) evalDesugaredObject(env *Environment, n *ast.DesugaredObject) (Value, error) {
	obj := newSimpleObject(i.heap, env)
	obj.asserts = n.Asserts
	for _, f := range n.Fields {
		nameV, err := i.eval(env, f.Name)
		if err != nil {
			return nil, err
		}
		if _, isNull := nameV.(*valueNull); isNull {
			// `{[if cond then "k"]: v}` with a false condition: no field.
			continue
		}
		name, err := i.requireString(nameV, *n.Loc())
		if err != nil {
			return nil, err
		}
		if _, dup := obj.fields[name]; dup {
			return nil, i.runtimeErrorf(*n.Loc(), "Duplicate field name: %q", name)
		}
		body := f.Body
		if f.PlusSuper {
			// `f+: e` merges with the inherited field when there is one
			// and degrades to plain `f: e` when there is not.
			base := ast.NewNodeBaseLoc(*f.Body.Loc())
			body = &ast.Conditional{
				NodeBase: base,
				Cond:     &ast.InSuper{NodeBase: base, Index: f.Name},
				BranchTrue: &ast.Binary{
					NodeBase: base,
					Left:     &ast.SuperIndex{NodeBase: base, Index: f.Name},
					Op:       ast.BopPlus,
					Right:    f.Body,
				},
				BranchFalse: f.Body,
			}
		}
		obj.fields[name] = simpleObjectField{hide: f.Hide, body: body}
	}
	i.maybeCollect(env, obj)
	return obj, nil
}

// evalObjectComp evaluates `{ [nameExpr]: bodyExpr for x in arrExpr ... }`.
// Only the single-clause form (one bound identifier, one source array, an
// optional chain of `if` filters, evaluated here per element) reaches the
// evaluator; multi-clause comprehensions are
// flattened to this shape during desugaring (see internal/parser).
func (i *interpreter) evalObjectComp(env *Environment, n *ast.ObjectComp) (Value, error) {
	spec := n.Spec
	arrV, err := i.evalLoc(env, spec.Expr, frameObjectCompArray, "object comprehension")
	if err != nil {
		return nil, err
	}
	arr, ok := arrV.(*valueArray)
	if !ok {
		return nil, i.runtimeErrorf(*n.Loc(), "Object comprehension source must be an array, got %s", arrV.typename())
	}
	if len(n.Fields) != 1 {
		return nil, i.runtimeErrorf(*n.Loc(), "INTERNAL ERROR: object comprehension must desugar to exactly one field")
	}
	field := n.Fields[0]
	compValues := make(map[string]*Thunk)
	for _, elemThunk := range arr.elements {
		loopEnv := newEnvironment(i.heap, env)
		loopEnv.bind(spec.VarName, elemThunk)
		keep := true
		for _, cond := range spec.Conditions {
			condV, err := i.eval(loopEnv, cond.Expr)
			if err != nil {
				return nil, err
			}
			b, ok := condV.(*valueBoolean)
			if !ok {
				return nil, i.runtimeErrorf(*n.Loc(), "Object comprehension `if` must be a boolean, got %s", condV.typename())
			}
			if !b.value {
				keep = false
				break
			}
		}
		if !keep {
			continue
		}
		nameV, err := i.evalLoc(loopEnv, field.Expr1, frameObjectCompElement, "object comprehension key")
		if err != nil {
			return nil, err
		}
		name, err := i.requireString(nameV, *n.Loc())
		if err != nil {
			return nil, err
		}
		if _, dup := compValues[name]; dup {
			return nil, i.runtimeErrorf(*n.Loc(), "Duplicate field name: %q", name)
		}
		compValues[name] = elemThunk
	}
	result := heap.Alloc(i.heap, &comprehensionObject{
		h:          i.heap,
		env:        env,
		boundID:    spec.VarName,
		bodyNode:   field.Expr2,
		hide:       field.Hide,
		compValues: compValues,
	})
	i.maybeCollect(env, result)
	return result, nil
}

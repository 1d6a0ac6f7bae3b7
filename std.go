package jsonnet

import (
	"github.com/google/jsonnet-sub000/ast"
	"github.com/google/jsonnet-sub000/internal/heap"
)

// buildStdObject assembles the `std` value every program and import sees.
// Most members are a direct reference to a builtinTable
// entry -- evaluating a `&ast.BuiltinFunction{Name: ...}` leaf just looks
// the name up and returns the *builtin Value, per eval.go's
// `case *ast.BuiltinFunction`. A handful of stdlib functions take optional
// trailing parameters the builtin struct itself can't express (it has no
// notion of a default argument, unlike a closure's ast.Parameters.Optional).
// For those (sort, uniq, get) std exposes a small wrapper closure instead:
// an *ast.Function* whose parameters carry literal defaults and whose body
// applies the underlying raw builtin with every slot filled in.
func buildStdObject(h *heap.Heap) objectValue {
	obj := newSimpleObject(h, nil)
	for name := range builtinTable {
		if name == "sort" || name == "uniq" || name == "get" || name[0] == '$' {
			continue
		}
		obj.fields[name] = simpleObjectField{
			hide: ast.ObjectFieldHidden,
			body: &ast.BuiltinFunction{Name: name},
		}
	}
	obj.fields["sort"] = simpleObjectField{hide: ast.ObjectFieldHidden, body: optionalKeyFWrapper("sort", "arr")}
	obj.fields["uniq"] = simpleObjectField{hide: ast.ObjectFieldHidden, body: optionalKeyFWrapper("uniq", "arr")}
	obj.fields["get"] = simpleObjectField{hide: ast.ObjectFieldHidden, body: getWrapper()}
	return obj
}

// optionalKeyFWrapper builds `function(<arrParam>, keyF=null) <name>(<arrParam>, keyF)`
// with <name> the raw builtin (not the std member),
// i.e. a closure around the two-required-argument raw builtin that makes
// the second argument optional, defaulting to null (biSort/biUniq treat a
// non-Function keyF as "no key function" and compare elements directly).
func optionalKeyFWrapper(name ast.Identifier, arrParam ast.Identifier) *ast.Function {
	return &ast.Function{
		Parameters: ast.Parameters{
			Required: ast.Identifiers{arrParam},
			Optional: []ast.NamedParameter{{Name: "keyF", DefaultArg: &ast.LiteralNull{}}},
		},
		Body: &ast.Apply{
			Target: &ast.BuiltinFunction{Name: string(name)},
			Arguments: ast.Arguments{
				Positional: ast.Nodes{
					&ast.Var{Id: arrParam},
					&ast.Var{Id: "keyF"},
				},
			},
		},
	}
}

// getWrapper builds `function(o, f, default=null, includeHidden=true) get(o, f, default, includeHidden)`
// with get the raw builtin.
func getWrapper() *ast.Function {
	return &ast.Function{
		Parameters: ast.Parameters{
			Required: ast.Identifiers{"o", "f"},
			Optional: []ast.NamedParameter{
				{Name: "default", DefaultArg: &ast.LiteralNull{}},
				{Name: "includeHidden", DefaultArg: &ast.LiteralBoolean{Value: true}},
			},
		},
		Body: &ast.Apply{
			Target: &ast.BuiltinFunction{Name: "get"},
			Arguments: ast.Arguments{
				Positional: ast.Nodes{
					&ast.Var{Id: "o"},
					&ast.Var{Id: "f"},
					&ast.Var{Id: "default"},
					&ast.Var{Id: "includeHidden"},
				},
			},
		},
	}
}

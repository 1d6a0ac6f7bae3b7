package parser

import (
	"fmt"
	"strconv"

	"github.com/google/jsonnet-sub000/ast"
	errs "github.com/google/jsonnet-sub000/internal/errors"
)

type parser struct {
	toks    []token
	pos     int
	file    string
	lastEnd ast.Location
}

// Parse lexes and parses a whole Jsonnet file into the sugared AST (the
// full node set ast.go describes, including Object/ApplyBrace/ArrayComp
// before desugaring). Use Desugar on the result before handing it to the
// evaluator.
func Parse(file, src string) (ast.Node, error) {
	toks, err := tokenize(file, src)
	if err != nil {
		if le, ok := err.(*lexErr); ok {
			return nil, &errs.StaticError{Loc: le.loc, Msg: le.msg}
		}
		return nil, err
	}
	p := &parser{toks: toks, file: file}
	node, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, p.errf("expected end of file, got %q", p.cur().text)
	}
	return node, nil
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+off]
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) advance() token {
	t := p.cur()
	if t.kind != tokEOF {
		p.pos++
	}
	p.lastEnd = t.loc.End
	return t
}

func (p *parser) checkSymbol(s string) bool {
	return p.cur().kind == tokSymbol && p.cur().text == s
}

func (p *parser) checkKeyword(kw string) bool {
	return p.cur().kind == tokKeyword && p.cur().text == kw
}

func (p *parser) expectSymbol(s string) (token, error) {
	if !p.checkSymbol(s) {
		return token{}, p.errf("expected %q, got %q", s, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) (token, error) {
	if !p.checkKeyword(kw) {
		return token{}, p.errf("expected keyword %q, got %q", kw, p.cur().text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdent() (ast.Identifier, error) {
	if p.cur().kind != tokIdent {
		return "", p.errf("expected identifier, got %q", p.cur().text)
	}
	return ast.Identifier(p.advance().text), nil
}

func (p *parser) errf(format string, args ...interface{}) error {
	return &errs.StaticError{Loc: p.cur().loc, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) nodeBase(begin ast.Location) ast.NodeBase {
	return ast.NewNodeBaseLoc(ast.MakeLocationRange(p.file, begin, p.lastEnd))
}

// --- binary operator precedence (higher binds tighter) ----------------------

type opInfo struct {
	op   ast.BinaryOp
	prec int
}

func (p *parser) binOpAt() (opInfo, bool) {
	t := p.cur()
	if t.kind == tokKeyword && t.text == "in" {
		return opInfo{ast.BopIn, 7}, true
	}
	if t.kind != tokSymbol {
		return opInfo{}, false
	}
	table := map[string]opInfo{
		"||": {ast.BopOr, 1},
		"&&": {ast.BopAnd, 2},
		"|":  {ast.BopBitwiseOr, 3},
		"^":  {ast.BopBitwiseXor, 4},
		"&":  {ast.BopBitwiseAnd, 5},
		"==": {ast.BopManifestEqual, 6},
		"!=": {ast.BopManifestUnequal, 6},
		"<":  {ast.BopLess, 7},
		"<=": {ast.BopLessEq, 7},
		">":  {ast.BopGreater, 7},
		">=": {ast.BopGreaterEq, 7},
		"<<": {ast.BopShiftL, 8},
		">>": {ast.BopShiftR, 8},
		"+":  {ast.BopPlus, 9},
		"-":  {ast.BopMinus, 9},
		"*":  {ast.BopMult, 10},
		"/":  {ast.BopDiv, 10},
		"%":  {ast.BopPercent, 10},
	}
	info, ok := table[t.text]
	return info, ok
}

// parseExprPrec implements precedence climbing for the binary operators;
// everything tighter (unary, postfix, primary) is handled beneath it.
func (p *parser) parseExprPrec(minPrec int) (ast.Node, error) {
	begin := p.cur().loc.Begin
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		info, ok := p.binOpAt()
		if !ok || info.prec < minPrec {
			return left, nil
		}
		p.advance()
		if info.op == ast.BopIn && p.checkKeyword("super") {
			p.advance()
			left = &ast.InSuper{NodeBase: p.nodeBase(begin), Index: left}
			continue
		}
		right, err := p.parseExprPrec(info.prec + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{NodeBase: p.nodeBase(begin), Left: left, Op: info.op, Right: right}
	}
}

func (p *parser) parseUnary() (ast.Node, error) {
	if p.cur().kind == tokSymbol {
		if op, ok := ast.UopMap[p.cur().text]; ok {
			begin := p.cur().loc.Begin
			p.advance()
			inner, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &ast.Unary{NodeBase: p.nodeBase(begin), Op: op, Expr: inner}, nil
		}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Node, error) {
	begin := p.cur().loc.Begin
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.checkSymbol("."):
			p.advance()
			id, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			node = &ast.Index{NodeBase: p.nodeBase(begin), Target: node, Id: &id}
		case p.checkSymbol("["):
			node, err = p.parseIndexOrSlice(begin, node)
			if err != nil {
				return nil, err
			}
		case p.checkSymbol("("):
			args, tailStrict, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			node = &ast.Apply{NodeBase: p.nodeBase(begin), Target: node, Arguments: args, TailStrict: tailStrict}
		case p.checkSymbol("{"):
			obj, err := p.parseObject()
			if err != nil {
				return nil, err
			}
			node = &ast.ApplyBrace{NodeBase: p.nodeBase(begin), Left: node, Right: obj}
		default:
			return node, nil
		}
	}
}

func (p *parser) parseIndexOrSlice(begin ast.Location, target ast.Node) (ast.Node, error) {
	p.advance() // '['
	var start, end, step ast.Node
	var err error
	if !p.checkSymbol(":") && !p.checkSymbol("]") {
		start, err = p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
	}
	isSlice := false
	if p.checkSymbol(":") {
		isSlice = true
		p.advance()
		if !p.checkSymbol(":") && !p.checkSymbol("]") {
			end, err = p.parseExprPrec(0)
			if err != nil {
				return nil, err
			}
		}
		if p.checkSymbol(":") {
			p.advance()
			if !p.checkSymbol("]") {
				step, err = p.parseExprPrec(0)
				if err != nil {
					return nil, err
				}
			}
		}
	}
	if _, err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	if isSlice {
		return &ast.Slice{NodeBase: p.nodeBase(begin), Target: target, BeginIndex: start, EndIndex: end, Step: step}, nil
	}
	if start == nil {
		return nil, p.errf("expected expression inside []")
	}
	return &ast.Index{NodeBase: p.nodeBase(begin), Target: target, Index: start}, nil
}

func (p *parser) parseArgs() (ast.Arguments, bool, error) {
	p.advance() // '('
	var args ast.Arguments
	if p.checkSymbol(")") {
		p.advance()
		return args, p.eatTailStrict(), nil
	}
	for {
		if p.cur().kind == tokIdent && p.peekAt(1).kind == tokSymbol && p.peekAt(1).text == "=" {
			name := ast.Identifier(p.advance().text)
			p.advance() // '='
			val, err := p.parseExprPrec(0)
			if err != nil {
				return args, false, err
			}
			args.Named = append(args.Named, ast.NamedArgument{Name: name, Arg: val})
		} else {
			val, err := p.parseExprPrec(0)
			if err != nil {
				return args, false, err
			}
			args.Positional = append(args.Positional, val)
		}
		if p.checkSymbol(",") {
			p.advance()
			if p.checkSymbol(")") {
				break
			}
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return args, false, err
	}
	return args, p.eatTailStrict(), nil
}

// eatTailStrict consumes an optional `tailstrict` keyword following a
// call's closing parenthesis.
func (p *parser) eatTailStrict() bool {
	if p.checkKeyword("tailstrict") {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseParams() (*ast.Parameters, error) {
	if _, err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	params := &ast.Parameters{}
	if p.checkSymbol(")") {
		p.advance()
		return params, nil
	}
	for {
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.checkSymbol("=") {
			p.advance()
			def, err := p.parseExprPrec(0)
			if err != nil {
				return nil, err
			}
			params.Optional = append(params.Optional, ast.NamedParameter{Name: id, DefaultArg: def})
		} else {
			params.Required = append(params.Required, id)
		}
		if p.checkSymbol(",") {
			p.advance()
			if p.checkSymbol(")") {
				break
			}
			continue
		}
		break
	}
	if _, err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parsePrimary() (ast.Node, error) {
	begin := p.cur().loc.Begin
	t := p.cur()
	switch {
	case t.kind == tokNumber:
		p.advance()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &errs.StaticError{Loc: t.loc, Msg: "invalid number literal " + t.text}
		}
		return &ast.LiteralNumber{NodeBase: p.nodeBase(begin), Value: f, OriginalString: t.text}, nil
	case t.kind == tokString || t.kind == tokVerbatimString || t.kind == tokBlockString:
		p.advance()
		return &ast.LiteralString{NodeBase: p.nodeBase(begin), Value: t.text, Kind: t.sKind, BlockIndent: t.block}, nil
	case t.kind == tokIdent:
		p.advance()
		return &ast.Var{NodeBase: p.nodeBase(begin), Id: ast.Identifier(t.text)}, nil
	case p.checkSymbol("("):
		p.advance()
		inner, err := p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.checkSymbol("$"):
		p.advance()
		return &ast.Dollar{NodeBase: p.nodeBase(begin)}, nil
	case p.checkSymbol("["):
		return p.parseArrayOrComp(begin)
	case p.checkSymbol("{"):
		return p.parseObject()
	case p.checkKeyword("true"):
		p.advance()
		return &ast.LiteralBoolean{NodeBase: p.nodeBase(begin), Value: true}, nil
	case p.checkKeyword("false"):
		p.advance()
		return &ast.LiteralBoolean{NodeBase: p.nodeBase(begin), Value: false}, nil
	case p.checkKeyword("null"):
		p.advance()
		return &ast.LiteralNull{NodeBase: p.nodeBase(begin)}, nil
	case p.checkKeyword("self"):
		p.advance()
		return &ast.Self{NodeBase: p.nodeBase(begin)}, nil
	case p.checkKeyword("super"):
		p.advance()
		if p.checkSymbol(".") {
			p.advance()
			id, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			return &ast.SuperIndex{NodeBase: p.nodeBase(begin), Id: &id}, nil
		}
		if p.checkSymbol("[") {
			p.advance()
			idx, err := p.parseExprPrec(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol("]"); err != nil {
				return nil, err
			}
			return &ast.SuperIndex{NodeBase: p.nodeBase(begin), Index: idx}, nil
		}
		return nil, p.errf("expected . or [ after super")
	case p.checkKeyword("local"):
		return p.parseLocal(begin)
	case p.checkKeyword("if"):
		return p.parseIf(begin)
	case p.checkKeyword("function"):
		p.advance()
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		body, err := p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
		return &ast.Function{NodeBase: p.nodeBase(begin), Parameters: *params, Body: body}, nil
	case p.checkKeyword("import"):
		p.advance()
		lit, err := p.parseImportFile()
		if err != nil {
			return nil, err
		}
		return &ast.Import{NodeBase: p.nodeBase(begin), File: lit}, nil
	case p.checkKeyword("importstr"):
		p.advance()
		lit, err := p.parseImportFile()
		if err != nil {
			return nil, err
		}
		return &ast.ImportStr{NodeBase: p.nodeBase(begin), File: lit}, nil
	case p.checkKeyword("error"):
		p.advance()
		e, err := p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
		return &ast.Error{NodeBase: p.nodeBase(begin), Expr: e}, nil
	case p.checkKeyword("assert"):
		return p.parseAssert(begin)
	default:
		return nil, p.errf("unexpected token %q", t.text)
	}
}

func (p *parser) parseImportFile() (*ast.LiteralString, error) {
	begin := p.cur().loc.Begin
	if p.cur().kind != tokString && p.cur().kind != tokVerbatimString && p.cur().kind != tokBlockString {
		return nil, p.errf("expected string literal after import, got %q", p.cur().text)
	}
	t := p.advance()
	return &ast.LiteralString{NodeBase: p.nodeBase(begin), Value: t.text, Kind: t.sKind, BlockIndent: t.block}, nil
}

func (p *parser) parseLocal(begin ast.Location) (ast.Node, error) {
	p.advance() // 'local'
	var binds ast.LocalBinds
	for {
		id, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		var body ast.Node
		var fn *ast.Function
		if p.checkSymbol("(") {
			fbegin := p.cur().loc.Begin
			params, err := p.parseParams()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol("="); err != nil {
				return nil, err
			}
			fbody, err := p.parseExprPrec(0)
			if err != nil {
				return nil, err
			}
			fn = &ast.Function{NodeBase: p.nodeBase(fbegin), Parameters: *params, Body: fbody}
			body = fn
		} else {
			if _, err := p.expectSymbol("="); err != nil {
				return nil, err
			}
			body, err = p.parseExprPrec(0)
			if err != nil {
				return nil, err
			}
		}
		binds = append(binds, ast.LocalBind{Variable: id, Body: body, Fun: fn})
		if p.checkSymbol(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	rest, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	return &ast.Local{NodeBase: p.nodeBase(begin), Binds: binds, Body: rest}, nil
}

func (p *parser) parseIf(begin ast.Location) (ast.Node, error) {
	p.advance() // 'if'
	cond, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("then"); err != nil {
		return nil, err
	}
	branchTrue, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	var branchFalse ast.Node
	if p.checkKeyword("else") {
		p.advance()
		branchFalse, err = p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
	}
	return &ast.Conditional{NodeBase: p.nodeBase(begin), Cond: cond, BranchTrue: branchTrue, BranchFalse: branchFalse}, nil
}

func (p *parser) parseAssert(begin ast.Location) (ast.Node, error) {
	p.advance() // 'assert'
	cond, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	var msg ast.Node
	if p.checkSymbol(":") {
		p.advance()
		msg, err = p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectSymbol(";"); err != nil {
		return nil, err
	}
	rest, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	return &ast.Assert{NodeBase: p.nodeBase(begin), Cond: cond, Message: msg, Rest: rest}, nil
}

func (p *parser) parseArrayOrComp(begin ast.Location) (ast.Node, error) {
	p.advance() // '['
	if p.checkSymbol("]") {
		p.advance()
		return &ast.Array{NodeBase: p.nodeBase(begin)}, nil
	}
	first, err := p.parseExprPrec(0)
	if err != nil {
		return nil, err
	}
	if p.checkKeyword("for") {
		p.advance()
		spec, err := p.parseForSpecChain()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectSymbol("]"); err != nil {
			return nil, err
		}
		return &ast.ArrayComp{NodeBase: p.nodeBase(begin), Body: first, Spec: spec}, nil
	}
	elems := ast.Nodes{first}
	for p.checkSymbol(",") {
		p.advance()
		if p.checkSymbol("]") {
			break
		}
		e, err := p.parseExprPrec(0)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	if _, err := p.expectSymbol("]"); err != nil {
		return nil, err
	}
	return &ast.Array{NodeBase: p.nodeBase(begin), Elements: elems}, nil
}

// parseForSpecChain parses "x in e1 [if ...]* (for y in e2 [if ...]*)*",
// the 'for' keyword itself already consumed by the caller for the first
// clause. It returns the innermost ForSpec with Outer pointing back toward
// the outermost, per ast.go's ForSpec doc comment.
func (p *parser) parseForSpecChain() (ast.ForSpec, error) {
	var chain []ast.ForSpec
	for {
		varName, err := p.expectIdent()
		if err != nil {
			return ast.ForSpec{}, err
		}
		if _, err := p.expectKeyword("in"); err != nil {
			return ast.ForSpec{}, err
		}
		arrExpr, err := p.parseExprPrec(0)
		if err != nil {
			return ast.ForSpec{}, err
		}
		var conds []ast.IfSpec
		for p.checkKeyword("if") {
			p.advance()
			ce, err := p.parseExprPrec(0)
			if err != nil {
				return ast.ForSpec{}, err
			}
			conds = append(conds, ast.IfSpec{Expr: ce})
		}
		chain = append(chain, ast.ForSpec{VarName: varName, Expr: arrExpr, Conditions: conds})
		if p.checkKeyword("for") {
			p.advance()
			continue
		}
		break
	}
	for k := 1; k < len(chain); k++ {
		outer := chain[k-1]
		chain[k].Outer = &outer
	}
	return chain[len(chain)-1], nil
}

// --- object literals ---------------------------------------------------------

func (p *parser) parseObject() (ast.Node, error) {
	begin := p.cur().loc.Begin
	p.advance() // '{'
	var fields ast.ObjectFields
	first := true
	for {
		if p.checkSymbol("}") {
			p.advance()
			return &ast.Object{NodeBase: p.nodeBase(begin), Fields: fields}, nil
		}
		field, isPlain, err := p.parseObjectMember()
		if err != nil {
			return nil, err
		}
		if first && isPlain && p.checkKeyword("for") {
			p.advance()
			spec, err := p.parseForSpecChain()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectSymbol("}"); err != nil {
				return nil, err
			}
			return &ast.ObjectComp{NodeBase: p.nodeBase(begin), Fields: ast.ObjectFields{field}, Spec: spec}, nil
		}
		fields = append(fields, field)
		first = false
		if p.checkSymbol(",") {
			p.advance()
			continue
		}
		if p.checkSymbol("}") {
			continue
		}
		return nil, p.errf("expected ',' or '}' in object, got %q", p.cur().text)
	}
}

func (p *parser) parseObjectMember() (ast.ObjectField, bool, error) {
	if p.checkKeyword("local") {
		p.advance()
		id, err := p.expectIdent()
		if err != nil {
			return ast.ObjectField{}, false, err
		}
		var body ast.Node
		if p.checkSymbol("(") {
			fbegin := p.cur().loc.Begin
			params, err := p.parseParams()
			if err != nil {
				return ast.ObjectField{}, false, err
			}
			if _, err := p.expectSymbol("="); err != nil {
				return ast.ObjectField{}, false, err
			}
			fbody, err := p.parseExprPrec(0)
			if err != nil {
				return ast.ObjectField{}, false, err
			}
			body = &ast.Function{NodeBase: p.nodeBase(fbegin), Parameters: *params, Body: fbody}
		} else {
			if _, err := p.expectSymbol("="); err != nil {
				return ast.ObjectField{}, false, err
			}
			body, err = p.parseExprPrec(0)
			if err != nil {
				return ast.ObjectField{}, false, err
			}
		}
		return ast.ObjectField{Kind: ast.ObjectLocal, Hide: ast.ObjectFieldVisible, Id: &id, Expr2: body}, false, nil
	}
	if p.checkKeyword("assert") {
		p.advance()
		cond, err := p.parseExprPrec(0)
		if err != nil {
			return ast.ObjectField{}, false, err
		}
		var msg ast.Node
		if p.checkSymbol(":") {
			p.advance()
			msg, err = p.parseExprPrec(0)
			if err != nil {
				return ast.ObjectField{}, false, err
			}
		}
		return ast.ObjectField{Kind: ast.ObjectAssert, Hide: ast.ObjectFieldVisible, Expr2: cond, Expr3: msg}, false, nil
	}

	var kind ast.ObjectFieldKind
	var expr1 ast.Node
	var id *ast.Identifier
	begin := p.cur().loc.Begin
	switch {
	case p.checkSymbol("["):
		p.advance()
		k, err := p.parseExprPrec(0)
		if err != nil {
			return ast.ObjectField{}, false, err
		}
		if _, err := p.expectSymbol("]"); err != nil {
			return ast.ObjectField{}, false, err
		}
		kind = ast.ObjectFieldExpr
		expr1 = k
	case p.cur().kind == tokString || p.cur().kind == tokVerbatimString || p.cur().kind == tokBlockString:
		t := p.advance()
		kind = ast.ObjectFieldStr
		expr1 = &ast.LiteralString{NodeBase: p.nodeBase(begin), Value: t.text, Kind: t.sKind, BlockIndent: t.block}
	case p.cur().kind == tokIdent:
		name, err := p.expectIdent()
		if err != nil {
			return ast.ObjectField{}, false, err
		}
		kind = ast.ObjectFieldID
		id = &name
	default:
		return ast.ObjectField{}, false, p.errf("expected object field, got %q", p.cur().text)
	}

	methodSugar := false
	var params *ast.Parameters
	if p.checkSymbol("(") {
		methodSugar = true
		var err error
		params, err = p.parseParams()
		if err != nil {
			return ast.ObjectField{}, false, err
		}
	}

	plusSugar := false
	if p.checkSymbol("+") {
		p.advance()
		plusSugar = true
	}

	var hide ast.ObjectFieldHide
	switch {
	case p.checkSymbol(":::"):
		p.advance()
		hide = ast.ObjectFieldVisible
	case p.checkSymbol("::"):
		p.advance()
		hide = ast.ObjectFieldHidden
	case p.checkSymbol(":"):
		p.advance()
		hide = ast.ObjectFieldInherit
	default:
		return ast.ObjectField{}, false, p.errf("expected ':', '::' or ':::', got %q", p.cur().text)
	}

	value, err := p.parseExprPrec(0)
	if err != nil {
		return ast.ObjectField{}, false, err
	}
	if methodSugar {
		value = &ast.Function{NodeBase: p.nodeBase(begin), Parameters: *params, Body: value}
	}

	return ast.ObjectField{
		Kind:        kind,
		Hide:        hide,
		SuperSugar:  plusSugar,
		MethodSugar: methodSugar,
		Expr1:       expr1,
		Id:          id,
		Params:      params,
		Expr2:       value,
	}, true, nil
}

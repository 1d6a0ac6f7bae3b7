package jsonnet

import (
	"math"

	"github.com/google/jsonnet-sub000/ast"
)

func (i *interpreter) evalBinary(env *Environment, n *ast.Binary) (Value, error) {
	// && and || short-circuit, so the right operand must stay unevaluated
	// until we know whether it's needed.
	if n.Op == ast.BopAnd || n.Op == ast.BopOr {
		left, err := i.evalLoc(env, n.Left, frameBinaryLeft, "&&/||")
		if err != nil {
			return nil, err
		}
		lb, ok := left.(*valueBoolean)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Binary operand must be a boolean, got %s", left.typename())
		}
		if n.Op == ast.BopAnd && !lb.value {
			return falseValue, nil
		}
		if n.Op == ast.BopOr && lb.value {
			return trueValue, nil
		}
		right, err := i.evalLoc(env, n.Right, frameBinaryRight, "&&/||")
		if err != nil {
			return nil, err
		}
		rb, ok := right.(*valueBoolean)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Binary operand must be a boolean, got %s", right.typename())
		}
		return rb, nil
	}

	left, err := i.evalLoc(env, n.Left, frameBinaryLeft, "binary operator")
	if err != nil {
		return nil, err
	}
	right, err := i.evalLoc(env, n.Right, frameBinaryRight, "binary operator")
	if err != nil {
		return nil, err
	}
	return i.applyBinary(n.Op, left, right, *n.Loc())
}

func (i *interpreter) applyBinary(op ast.BinaryOp, left, right Value, loc ast.LocationRange) (Value, error) {
	switch op {
	case ast.BopPlus:
		return i.binaryPlus(left, right, loc)
	case ast.BopMinus:
		l, r, err := i.bothNumbers(left, right, loc)
		if err != nil {
			return nil, err
		}
		return i.checkedNumber(l-r, loc)
	case ast.BopMult:
		l, r, err := i.bothNumbers(left, right, loc)
		if err != nil {
			return nil, err
		}
		return i.checkedNumber(l*r, loc)
	case ast.BopDiv:
		l, r, err := i.bothNumbers(left, right, loc)
		if err != nil {
			return nil, err
		}
		if r == 0 {
			return nil, i.runtimeError(loc, "Division by zero.")
		}
		return i.checkedNumber(l/r, loc)
	case ast.BopPercent:
		// `%` is string formatting when its left operand is a string and
		// `fmod` otherwise, like std.mod.
		if ls, ok := left.(*valueString); ok {
			return i.formatString(ls, right, loc)
		}
		l, r, err := i.bothNumbers(left, right, loc)
		if err != nil {
			return nil, err
		}
		if r == 0 {
			return nil, i.runtimeError(loc, "Division by zero.")
		}
		return i.checkedNumber(math.Mod(l, r), loc)
	case ast.BopShiftL:
		return i.shift(left, right, loc, func(x int64, y uint) int64 { return x << y })
	case ast.BopShiftR:
		return i.shift(left, right, loc, func(x int64, y uint) int64 { return x >> y })
	case ast.BopBitwiseAnd:
		return i.bitwise(left, right, loc, func(x, y int64) int64 { return x & y })
	case ast.BopBitwiseOr:
		return i.bitwise(left, right, loc, func(x, y int64) int64 { return x | y })
	case ast.BopBitwiseXor:
		return i.bitwise(left, right, loc, func(x, y int64) int64 { return x ^ y })
	case ast.BopLess:
		return i.compare(left, right, loc, func(c int) bool { return c < 0 })
	case ast.BopLessEq:
		return i.compare(left, right, loc, func(c int) bool { return c <= 0 })
	case ast.BopGreater:
		return i.compare(left, right, loc, func(c int) bool { return c > 0 })
	case ast.BopGreaterEq:
		return i.compare(left, right, loc, func(c int) bool { return c >= 0 })
	case ast.BopManifestEqual:
		eq, err := i.valuesEqual(left, right, loc)
		if err != nil {
			return nil, err
		}
		return makeValueBoolean(eq), nil
	case ast.BopManifestUnequal:
		eq, err := i.valuesEqual(left, right, loc)
		if err != nil {
			return nil, err
		}
		return makeValueBoolean(!eq), nil
	case ast.BopIn:
		name, err := i.requireString(left, loc)
		if err != nil {
			return nil, err
		}
		obj, ok := right.(objectValue)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Right-hand side of `in` must be an object, got %s", right.typename())
		}
		return makeValueBoolean(fieldExists(obj, name, 0)), nil
	default:
		return nil, i.runtimeErrorf(loc, "INTERNAL ERROR: unhandled binary operator %s", op.String())
	}
}

func (i *interpreter) binaryPlus(left, right Value, loc ast.LocationRange) (Value, error) {
	// `+` on a string and anything else stringifies the other operand
	// first.
	if ls, ok := left.(*valueString); ok {
		rs, err := i.coerceToString(right, loc)
		if err != nil {
			return nil, err
		}
		return concatStrings(ls, rs), nil
	}
	if rs, ok := right.(*valueString); ok {
		ls, err := i.coerceToString(left, loc)
		if err != nil {
			return nil, err
		}
		return concatStrings(ls, rs), nil
	}
	switch l := left.(type) {
	case *valueNumber:
		r, ok := right.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Cannot add number and %s", right.typename())
		}
		return makeValueNumber(l.value + r.value), nil
	case *valueArray:
		r, ok := right.(*valueArray)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Cannot add array and %s", right.typename())
		}
		return concatArrays(l, r), nil
	case objectValue:
		r, ok := right.(objectValue)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Cannot add object and %s", right.typename())
		}
		return makeValueExtendedObject(i.heap, l, r), nil
	default:
		return nil, i.runtimeErrorf(loc, "Binary operator + does not operate on type %s", left.typename())
	}
}

func (i *interpreter) coerceToString(v Value, loc ast.LocationRange) (*valueString, error) {
	if s, ok := v.(*valueString); ok {
		return s, nil
	}
	s, err := i.valueToString(v, loc)
	if err != nil {
		return nil, err
	}
	return makeValueString(s), nil
}

func (i *interpreter) bothNumbers(left, right Value, loc ast.LocationRange) (float64, float64, error) {
	l, ok := left.(*valueNumber)
	if !ok {
		return 0, 0, i.runtimeErrorf(loc, "Expected number, got %s", left.typename())
	}
	r, ok := right.(*valueNumber)
	if !ok {
		return 0, 0, i.runtimeErrorf(loc, "Expected number, got %s", right.typename())
	}
	return l.value, r.value, nil
}

func (i *interpreter) checkedNumber(f float64, loc ast.LocationRange) (Value, error) {
	if math.IsNaN(f) {
		return nil, i.runtimeError(loc, "Not a number")
	}
	if math.IsInf(f, 0) {
		return nil, i.runtimeError(loc, "Overflow")
	}
	return makeValueNumber(f), nil
}

func (i *interpreter) bitwise(left, right Value, loc ast.LocationRange, f func(int64, int64) int64) (Value, error) {
	l, r, err := i.bothNumbers(left, right, loc)
	if err != nil {
		return nil, err
	}
	return i.checkedNumber(float64(f(int64(l), int64(r))), loc)
}

// shift is bitwise for << and >>, whose right operand must additionally
// be non-negative; the count is then reduced mod 64.
func (i *interpreter) shift(left, right Value, loc ast.LocationRange, f func(int64, uint) int64) (Value, error) {
	l, r, err := i.bothNumbers(left, right, loc)
	if err != nil {
		return nil, err
	}
	if r < 0 {
		return nil, i.runtimeError(loc, "Shift by negative exponent.")
	}
	return i.checkedNumber(float64(f(int64(l), uint(int64(r)%64))), loc)
}

// compare returns cmp(a, b) < 0/==0/>0 for numbers and strings, the only
// two ordered types.
func (i *interpreter) compare(left, right Value, loc ast.LocationRange, test func(int) bool) (Value, error) {
	switch l := left.(type) {
	case *valueNumber:
		r, ok := right.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Cannot compare number and %s", right.typename())
		}
		switch {
		case l.value < r.value:
			return makeValueBoolean(test(-1)), nil
		case l.value > r.value:
			return makeValueBoolean(test(1)), nil
		default:
			return makeValueBoolean(test(0)), nil
		}
	case *valueString:
		r, ok := right.(*valueString)
		if !ok {
			return nil, i.runtimeErrorf(loc, "Cannot compare string and %s", right.typename())
		}
		switch {
		case stringLessThan(l, r):
			return makeValueBoolean(test(-1)), nil
		case stringLessThan(r, l):
			return makeValueBoolean(test(1)), nil
		default:
			return makeValueBoolean(test(0)), nil
		}
	default:
		return nil, i.runtimeErrorf(loc, "Cannot compare type %s", left.typename())
	}
}

// valuesEqual implements `==`: deep structural equality for arrays and
// objects (comparing only visible fields), value equality for
// primitives, and always-false for functions -- functions are never
// equal, even to themselves, so `f == f` is false, not an error; only
// `std.primitiveEquals` on a function is an error.
func (i *interpreter) valuesEqual(left, right Value, loc ast.LocationRange) (bool, error) {
	if left.typename() != right.typename() {
		return false, nil
	}
	switch l := left.(type) {
	case *valueNull:
		return true, nil
	case *valueBoolean:
		return l.value == right.(*valueBoolean).value, nil
	case *valueNumber:
		return l.value == right.(*valueNumber).value, nil
	case *valueString:
		return stringEqual(l, right.(*valueString)), nil
	case Function:
		return false, nil
	case *valueArray:
		r := right.(*valueArray)
		if len(l.elements) != len(r.elements) {
			return false, nil
		}
		for idx := range l.elements {
			lv, err := i.force(l.elements[idx], loc, "")
			if err != nil {
				return false, err
			}
			rv, err := i.force(r.elements[idx], loc, "")
			if err != nil {
				return false, err
			}
			eq, err := i.valuesEqual(lv, rv, loc)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case objectValue:
		r := right.(objectValue)
		lNames := visibleFieldNames(l)
		rNames := visibleFieldNames(r)
		if len(lNames) != len(rNames) {
			return false, nil
		}
		for idx, name := range lNames {
			if rNames[idx] != name {
				return false, nil
			}
			lv, err := i.indexObject(l, name, loc)
			if err != nil {
				return false, err
			}
			rv, err := i.indexObject(r, name, loc)
			if err != nil {
				return false, err
			}
			eq, err := i.valuesEqual(lv, rv, loc)
			if err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	default:
		return false, i.runtimeErrorf(loc, "INTERNAL ERROR: equality on unknown type %s", left.typename())
	}
}

func (i *interpreter) evalUnary(env *Environment, n *ast.Unary) (Value, error) {
	v, err := i.evalLoc(env, n.Expr, frameUnary, "unary operator")
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.UopNot:
		b, ok := v.(*valueBoolean)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Unary ! requires a boolean, got %s", v.typename())
		}
		return b.not(), nil
	case ast.UopBitwiseNot:
		num, ok := v.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Unary ~ requires a number, got %s", v.typename())
		}
		return i.checkedNumber(float64(^int64(num.value)), *n.Loc())
	case ast.UopPlus:
		if _, ok := v.(*valueNumber); !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Unary + requires a number, got %s", v.typename())
		}
		return v, nil
	case ast.UopMinus:
		num, ok := v.(*valueNumber)
		if !ok {
			return nil, i.runtimeErrorf(*n.Loc(), "Unary - requires a number, got %s", v.typename())
		}
		return makeValueNumber(-num.value), nil
	default:
		return nil, i.runtimeErrorf(*n.Loc(), "INTERNAL ERROR: unhandled unary operator %s", n.Op.String())
	}
}

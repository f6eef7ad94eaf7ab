package vm

import (
	"math"
	"path/filepath"

	"github.com/chazu/datacode/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Arithmetic and comparison primitives
// ---------------------------------------------------------------------------

// Binary applies an arithmetic or comparison opcode to two operands, where b
// was on top of the stack.
func Binary(op bytecode.Opcode, a, b Value) (Value, *Fault) {
	switch op {
	case bytecode.OpAdd:
		return add(a, b)
	case bytecode.OpDiv:
		return div(a, b)
	case bytecode.OpEqual:
		return FromBool(Equal(a, b)), nil
	case bytecode.OpNotEqual:
		return FromBool(!Equal(a, b)), nil
	case bytecode.OpGreater, bytecode.OpLess, bytecode.OpGreaterEqual, bytecode.OpLessEqual:
		return compare(op, a, b)
	}

	if !a.IsNumber() || !b.IsNumber() {
		return Null, raise(TypeError, "Operands of %s must be numbers, got %s and %s",
			opSymbol(op), a.TypeName(), b.TypeName())
	}
	x, y := a.num, b.num
	switch op {
	case bytecode.OpSub:
		return FromNumber(x - y), nil
	case bytecode.OpMul:
		return FromNumber(x * y), nil
	case bytecode.OpIntDiv:
		if y == 0 {
			return Null, raise(ZeroDivisionError, "Division by zero")
		}
		return FromNumber(math.Floor(x / y)), nil
	case bytecode.OpMod:
		if y == 0 {
			return Null, raise(ZeroDivisionError, "Modulo by zero")
		}
		return FromNumber(math.Mod(x, y)), nil
	case bytecode.OpPow:
		return FromNumber(math.Pow(x, y)), nil
	}
	return Null, raise(RuntimeError, "%s is not a binary operator", op)
}

func add(a, b Value) (Value, *Fault) {
	switch {
	case a.IsNumber() && b.IsNumber():
		return FromNumber(a.num + b.num), nil
	case a.IsString() && b.IsString():
		return FromString(a.str + b.str), nil
	case a.IsString() && b.IsNumber():
		return FromString(a.str + FormatNumber(b.num)), nil
	case a.IsNumber() && b.IsString():
		return FromString(FormatNumber(a.num) + b.str), nil
	}
	return Null, raise(TypeError, "Operands of + must be numbers or strings, got %s and %s",
		a.TypeName(), b.TypeName())
}

func div(a, b Value) (Value, *Fault) {
	switch {
	case a.IsNumber() && b.IsNumber():
		if b.num == 0 {
			return Null, raise(ZeroDivisionError, "Division by zero")
		}
		return FromNumber(a.num / b.num), nil
	case (a.IsPath() || a.IsString()) && b.IsString():
		return FromPath(joinPath(a.str, b.str)), nil
	}
	return Null, raise(TypeError, "Operands of / must be numbers or paths, got %s and %s",
		a.TypeName(), b.TypeName())
}

// joinPath appends elem to base; an absolute elem replaces base.
func joinPath(base, elem string) string {
	if filepath.IsAbs(elem) || base == "" {
		return elem
	}
	return filepath.Join(base, elem)
}

func compare(op bytecode.Opcode, a, b Value) (Value, *Fault) {
	var c int
	switch {
	case a.IsNumber() && b.IsNumber():
		switch {
		case a.num < b.num:
			c = -1
		case a.num > b.num:
			c = 1
		case a.num == b.num:
			c = 0
		default:
			// NaN is unordered
			return False, nil
		}
	case a.IsString() && b.IsString():
		switch {
		case a.str < b.str:
			c = -1
		case a.str > b.str:
			c = 1
		}
	default:
		return Null, raise(TypeError, "Operands of %s must be two numbers or two strings, got %s and %s",
			opSymbol(op), a.TypeName(), b.TypeName())
	}

	switch op {
	case bytecode.OpGreater:
		return FromBool(c > 0), nil
	case bytecode.OpLess:
		return FromBool(c < 0), nil
	case bytecode.OpGreaterEqual:
		return FromBool(c >= 0), nil
	default:
		return FromBool(c <= 0), nil
	}
}

// Negate applies unary minus.
func Negate(v Value) (Value, *Fault) {
	if !v.IsNumber() {
		return Null, raise(TypeError, "Operand of unary - must be a number, got %s", v.TypeName())
	}
	return FromNumber(-v.num), nil
}

// In reports whether needle is an element of haystack.
func In(needle, haystack Value) (Value, *Fault) {
	if !haystack.IsArray() {
		return Null, raise(TypeError, "Right operand of 'in' must be an array, got %s", haystack.TypeName())
	}
	for _, e := range haystack.array.elems {
		if Equal(e, needle) {
			return True, nil
		}
	}
	return False, nil
}

func opSymbol(op bytecode.Opcode) string {
	switch op {
	case bytecode.OpSub:
		return "-"
	case bytecode.OpMul:
		return "*"
	case bytecode.OpIntDiv:
		return "//"
	case bytecode.OpMod:
		return "%"
	case bytecode.OpPow:
		return "**"
	case bytecode.OpGreater:
		return ">"
	case bytecode.OpLess:
		return "<"
	case bytecode.OpGreaterEqual:
		return ">="
	case bytecode.OpLessEqual:
		return "<="
	}
	return op.String()
}

package functions

import (
	"math"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Op is an operator shared by the compiler, the VM and the evaluator.
type Op uint8

const (
	OpAdd Op = iota + 1
	OpSub
	OpMul
	OpDiv
	OpPow
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNeg
	OpPercent
)

var opText = map[Op]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpPow: "^", OpConcat: "&",
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpNeg: "-", OpPercent: "%",
}

func (o Op) String() string { return opText[o] }

// ParseBinaryOp maps an infix operator spelling to its Op.
func ParseBinaryOp(s string) (Op, bool) {
	for op, text := range opText {
		if text == s && op != OpNeg && op != OpPercent {
			return op, true
		}
	}
	return 0, false
}

// Binary applies an infix operator to two dereferenced operands,
// broadcasting over arrays.
func Binary(op Op, a, b value.Value) value.Value {
	if a.Kind() != value.KindArray && b.Kind() != value.KindArray {
		return scalarBinary(op, a, b)
	}
	return Broadcast2(a, b, func(x, y value.Value) value.Value {
		return scalarBinary(op, x, y)
	})
}

// Unary applies a prefix or postfix operator elementwise.
func Unary(op Op, a value.Value) value.Value {
	return Map(a, func(x value.Value) value.Value {
		n, ek := value.ToNumber(x)
		if ek != value.NoError {
			return value.Error(ek)
		}
		switch op {
		case OpNeg:
			return value.Number(-n)
		case OpPercent:
			return value.Number(n / 100)
		}
		return value.Number(n)
	})
}

func scalarBinary(op Op, a, b value.Value) value.Value {
	if a.IsError() {
		return a
	}
	if b.IsError() {
		return b
	}
	switch op {
	case OpConcat:
		x, ek := value.ToText(a)
		if ek != value.NoError {
			return value.Error(ek)
		}
		y, ek := value.ToText(b)
		if ek != value.NoError {
			return value.Error(ek)
		}
		return value.Text(x + y)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		if a.Kind() == value.KindLambda || b.Kind() == value.KindLambda {
			return value.Error(value.ErrCalc)
		}
		c := value.Compare(a, b)
		var r bool
		switch op {
		case OpEq:
			r = c == 0
		case OpNe:
			r = c != 0
		case OpLt:
			r = c < 0
		case OpLe:
			r = c <= 0
		case OpGt:
			r = c > 0
		case OpGe:
			r = c >= 0
		}
		return value.Bool(r)
	}

	x, ek := value.ToNumber(a)
	if ek != value.NoError {
		return value.Error(ek)
	}
	y, ek := value.ToNumber(b)
	if ek != value.NoError {
		return value.Error(ek)
	}
	var r float64
	switch op {
	case OpAdd:
		r = x + y
	case OpSub:
		r = x - y
	case OpMul:
		r = x * y
	case OpDiv:
		if y == 0 {
			return value.Error(value.ErrDiv0)
		}
		r = x / y
	case OpPow:
		if x == 0 && y == 0 {
			return value.Error(value.ErrNum)
		}
		if x == 0 && y < 0 {
			return value.Error(value.ErrDiv0)
		}
		r = math.Pow(x, y)
	default:
		return value.Error(value.ErrValue)
	}
	return Num(r)
}

// Num wraps a numeric result, mapping NaN and infinities to #NUM!.
func Num(r float64) value.Value {
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return value.Error(value.ErrNum)
	}
	return value.Number(r)
}

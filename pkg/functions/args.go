package functions

import (
	"math"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// lifted wraps a scalar implementation: arguments are dereferenced and
// arrays are broadcast so fn only ever sees scalars.
func lifted(fn func(args []value.Value) value.Value) Func {
	return func(ctx Context, args []value.Value) value.Value {
		vals := derefAll(ctx, args)
		return BroadcastN(vals, fn)
	}
}

func derefAll(ctx Context, args []value.Value) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		out[i] = ctx.Deref(a)
	}
	return out
}

// elements flattens an argument into the values it covers, visiting each
// area of a multi-area reference in turn.
func elements(ctx Context, v value.Value) []value.Value {
	if v.Kind() == value.KindReference {
		ref := v.Ref()
		if len(ref.Areas) > 1 {
			var out []value.Value
			for _, area := range ref.Areas {
				part := value.FromReference(value.NewReference(ref.Sheet, area))
				out = append(out, value.Elements(ctx.Deref(part))...)
			}
			return out
		}
		return value.Elements(ctx.Deref(v))
	}
	return value.Elements(v)
}

// isRange reports whether an argument came from a range or an array, in
// which case aggregates skip text and booleans instead of coercing them.
func isRange(v value.Value) bool {
	return v.Kind() == value.KindReference || v.Kind() == value.KindArray
}

// collectNumbers gathers numeric inputs for aggregates. Numbers inside
// ranges and arrays count; text, booleans and blanks there are skipped.
// Direct scalar arguments are coerced. The first error wins.
func collectNumbers(ctx Context, args []value.Value) ([]float64, value.ErrorKind) {
	var out []float64
	for _, a := range args {
		if isRange(a) {
			for _, el := range elements(ctx, a) {
				switch el.Kind() {
				case value.KindNumber:
					out = append(out, el.Num())
				case value.KindError:
					return nil, el.Err()
				case value.KindLambda:
					return nil, value.ErrCalc
				}
			}
			continue
		}
		a = ctx.Deref(a)
		if a.Kind() == value.KindBlank {
			out = append(out, 0)
			continue
		}
		n, ek := value.ToNumber(a)
		if ek != value.NoError {
			return nil, ek
		}
		out = append(out, n)
	}
	return out, value.NoError
}

// numberArg coerces a dereferenced scalar argument.
func numberArg(v value.Value) (float64, value.Value, bool) {
	n, ek := value.ToNumber(v)
	if ek != value.NoError {
		return 0, value.Error(ek), false
	}
	return n, value.Value{}, true
}

// intArg truncates a numeric argument toward zero.
func intArg(v value.Value) (int, value.Value, bool) {
	n, errv, ok := numberArg(v)
	if !ok {
		return 0, errv, false
	}
	if math.Abs(n) > math.MaxInt32 {
		return 0, value.Error(value.ErrNum), false
	}
	return int(n), value.Value{}, true
}

func textArg(v value.Value) (string, value.Value, bool) {
	s, ek := value.ToText(v)
	if ek != value.NoError {
		return "", value.Error(ek), false
	}
	return s, value.Value{}, true
}

func boolArg(v value.Value) (bool, value.Value, bool) {
	b, ek := value.ToBool(v)
	if ek != value.NoError {
		return false, value.Error(ek), false
	}
	return b, value.Value{}, true
}

// optArg returns args[i] or def when the argument is absent or Missing.
func optArg(args []value.Value, i int, def value.Value) value.Value {
	if i >= len(args) || args[i].IsBlank() {
		return def
	}
	return args[i]
}

// grid returns a dereferenced argument as an array, wrapping scalars.
func grid(ctx Context, v value.Value) *value.Array {
	v = ctx.Deref(v)
	if v.Kind() == value.KindArray {
		return v.Array()
	}
	return &value.Array{Rows: 1, Cols: 1, Data: []value.Value{v}}
}

func arrayValue(a *value.Array) value.Value {
	if a.IsScalar() {
		return a.At(0, 0)
	}
	return value.FromArray(a)
}

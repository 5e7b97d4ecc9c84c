package functions

import (
	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("MAP", 2, -1, HigherOrder, fnMap)
	register("REDUCE", 3, 3, HigherOrder, fnReduce)
	register("SCAN", 3, 3, HigherOrder, fnScan)
	register("BYROW", 2, 2, HigherOrder, byLine(false))
	register("BYCOL", 2, 2, HigherOrder, byLine(true))
	register("MAKEARRAY", 3, 3, HigherOrder, fnMakeArray)
}

// lambdaArg checks that v is a lambda taking n parameters.
func lambdaArg(ctx Context, v value.Value, n int) (value.Value, value.Value, bool) {
	v = ctx.Deref(v)
	if v.IsError() {
		return value.Value{}, v, false
	}
	if v.Kind() != value.KindLambda || v.Lambda().Arity() != n {
		return value.Value{}, value.Error(value.ErrValue), false
	}
	return v, value.Value{}, true
}

// scalarResult collapses a lambda result that must be a single value.
func scalarResult(ctx Context, v value.Value) value.Value {
	v = ctx.Deref(v)
	if v.Kind() == value.KindArray {
		if v.Array().IsScalar() {
			return v.Array().At(0, 0)
		}
		return value.Error(value.ErrCalc)
	}
	return v
}

func fnMap(ctx Context, args []value.Value) value.Value {
	arrays := args[:len(args)-1]
	fn, errv, ok := lambdaArg(ctx, args[len(args)-1], len(arrays))
	if !ok {
		return errv
	}
	vals := derefAll(ctx, arrays)
	return BroadcastN(vals, func(xs []value.Value) value.Value {
		call := make([]value.Value, len(xs))
		copy(call, xs)
		return scalarResult(ctx, ctx.Apply(fn, call))
	})
}

func fnReduce(ctx Context, args []value.Value) value.Value {
	fn, errv, ok := lambdaArg(ctx, args[2], 2)
	if !ok {
		return errv
	}
	acc := ctx.Deref(args[0])
	for _, el := range elements(ctx, args[1]) {
		acc = ctx.Deref(ctx.Apply(fn, []value.Value{acc, el}))
	}
	return acc
}

func fnScan(ctx Context, args []value.Value) value.Value {
	fn, errv, ok := lambdaArg(ctx, args[2], 2)
	if !ok {
		return errv
	}
	src := grid(ctx, args[1])
	out := &value.Array{Rows: src.Rows, Cols: src.Cols, Data: make([]value.Value, len(src.Data))}
	acc := ctx.Deref(args[0])
	for i, el := range src.Data {
		acc = scalarResult(ctx, ctx.Apply(fn, []value.Value{acc, el}))
		out.Data[i] = acc
	}
	return arrayValue(out)
}

func byLine(byCol bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		fn, errv, ok := lambdaArg(ctx, args[1], 1)
		if !ok {
			return errv
		}
		src := grid(ctx, args[0])
		n := src.Rows
		if byCol {
			n = src.Cols
		}
		out := make([]value.Value, n)
		for i := range out {
			var line *value.Array
			if byCol {
				line = src.ColSlice(i)
			} else {
				line = src.RowSlice(i)
			}
			out[i] = scalarResult(ctx, ctx.Apply(fn, []value.Value{value.FromArray(line)}))
		}
		if byCol {
			return value.Row(out...)
		}
		return value.Column(out...)
	}
}

func fnMakeArray(ctx Context, args []value.Value) value.Value {
	rows, errv, ok := scalarInt(ctx, args, 0, 1)
	if !ok {
		return errv
	}
	cols, errv, ok := scalarInt(ctx, args, 1, 1)
	if !ok {
		return errv
	}
	fn, errv, ok := lambdaArg(ctx, args[2], 2)
	if !ok {
		return errv
	}
	if rows < 1 || cols < 1 {
		return value.Error(value.ErrValue)
	}
	out, ek := value.NewArray(rows, cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := ctx.Apply(fn, []value.Value{value.Number(float64(r + 1)), value.Number(float64(c + 1))})
			out.Set(r, c, scalarResult(ctx, v))
		}
	}
	return arrayValue(out)
}

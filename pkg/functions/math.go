package functions

import (
	"math"

	"github.com/cockroachdb/apd/v3"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("SUM", 1, -1, 0, fnSum)
	register("PRODUCT", 1, -1, 0, fnProduct)
	register("SUMPRODUCT", 1, -1, 0, fnSumProduct)
	register("ABS", 1, 1, 0, unaryMath(math.Abs))
	register("INT", 1, 1, 0, unaryMath(math.Floor))
	register("SIGN", 1, 1, 0, unaryMath(sign))
	register("EXP", 1, 1, 0, unaryMath(math.Exp))
	register("SQRT", 1, 1, 0, unaryMath(func(x float64) float64 {
		if x < 0 {
			return math.NaN()
		}
		return math.Sqrt(x)
	}))
	register("LN", 1, 1, 0, unaryMath(positive(math.Log)))
	register("LOG10", 1, 1, 0, unaryMath(positive(math.Log10)))
	register("PI", 0, 0, 0, func(Context, []value.Value) value.Value { return value.Number(math.Pi) })
	register("MOD", 2, 2, 0, lifted(fnMod))
	register("POWER", 2, 2, 0, lifted(func(args []value.Value) value.Value {
		return scalarBinary(OpPow, args[0], args[1])
	}))
	register("ROUND", 2, 2, 0, roundFunc(apd.RoundHalfUp))
	register("ROUNDUP", 2, 2, 0, roundFunc(apd.RoundUp))
	register("ROUNDDOWN", 2, 2, 0, roundFunc(apd.RoundDown))
}

func fnSum(ctx Context, args []value.Value) value.Value {
	nums, ek := collectNumbers(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Num(total)
}

func fnProduct(ctx Context, args []value.Value) value.Value {
	nums, ek := collectNumbers(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	if len(nums) == 0 {
		return value.Number(0)
	}
	p := 1.0
	for _, n := range nums {
		p *= n
	}
	return Num(p)
}

func fnSumProduct(ctx Context, args []value.Value) value.Value {
	grids := make([]*value.Array, len(args))
	for i, a := range args {
		grids[i] = grid(ctx, a)
		if grids[i].Rows != grids[0].Rows || grids[i].Cols != grids[0].Cols {
			return value.Error(value.ErrValue)
		}
	}
	total := 0.0
	for k := range grids[0].Data {
		p := 1.0
		for _, g := range grids {
			el := g.Data[k]
			switch el.Kind() {
			case value.KindError:
				return el
			case value.KindNumber:
				p *= el.Num()
			default:
				p = 0
			}
		}
		total += p
	}
	return Num(total)
}

func unaryMath(fn func(float64) float64) Func {
	return lifted(func(args []value.Value) value.Value {
		n, errv, ok := numberArg(args[0])
		if !ok {
			return errv
		}
		return Num(fn(n))
	})
}

func positive(fn func(float64) float64) func(float64) float64 {
	return func(x float64) float64 {
		if x <= 0 {
			return math.NaN()
		}
		return fn(x)
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func fnMod(args []value.Value) value.Value {
	n, errv, ok := numberArg(args[0])
	if !ok {
		return errv
	}
	d, errv, ok := numberArg(args[1])
	if !ok {
		return errv
	}
	if d == 0 {
		return value.Error(value.ErrDiv0)
	}
	return Num(n - d*math.Floor(n/d))
}

func roundFunc(mode apd.Rounder) Func {
	return lifted(func(args []value.Value) value.Value {
		x, errv, ok := numberArg(args[0])
		if !ok {
			return errv
		}
		digits, errv, ok := intArg(args[1])
		if !ok {
			return errv
		}
		return Num(roundDecimal(x, digits, mode))
	})
}

var roundContext = apd.BaseContext.WithPrecision(34)

// Round rounds x half away from zero to digits decimal places. Negative
// digits round to the left of the decimal point.
func Round(x float64, digits int) float64 {
	return roundDecimal(x, digits, apd.RoundHalfUp)
}

// roundDecimal rounds the shortest decimal spelling of x, so 2.675 rounds
// to 2.68 even though its binary value sits just below.
func roundDecimal(x float64, digits int, mode apd.Rounder) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	if digits > 15 {
		return x
	}
	d, err := new(apd.Decimal).SetFloat64(x)
	if err != nil {
		return x
	}
	ctx := *roundContext
	ctx.Rounding = mode
	var out apd.Decimal
	if _, err := ctx.Quantize(&out, d, int32(-digits)); err != nil {
		return x
	}
	f, err := out.Float64()
	if err != nil {
		return x
	}
	return f
}

package functions

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("AVERAGE", 1, -1, 0, fnAverage)
	register("COUNT", 1, -1, 0, fnCount)
	register("COUNTA", 1, -1, 0, fnCountA)
	register("COUNTBLANK", 1, 1, 0, fnCountBlank)
	register("MIN", 1, -1, 0, extremum(math.Min))
	register("MAX", 1, -1, 0, extremum(math.Max))
	register("MEDIAN", 1, -1, 0, fnMedian)
	register("VAR.S", 1, -1, 0, fnVarS)
	register("STDEV.S", 1, -1, 0, fnStdevS)
	register("BINOM.DIST", 4, 4, 0, lifted(fnBinomDist))
	register("NORM.DIST", 4, 4, 0, lifted(fnNormDist))
	register("NORM.S.DIST", 2, 2, 0, lifted(fnNormSDist))
	register("NORM.INV", 3, 3, 0, lifted(fnNormInv))
	register("POISSON.DIST", 3, 3, 0, lifted(fnPoissonDist))
	register("EXPON.DIST", 3, 3, 0, lifted(fnExponDist))
}

func fnAverage(ctx Context, args []value.Value) value.Value {
	nums, ek := collectNumbers(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	if len(nums) == 0 {
		return value.Error(value.ErrDiv0)
	}
	return Num(stat.Mean(nums, nil))
}

func fnCount(ctx Context, args []value.Value) value.Value {
	n := 0
	for _, a := range args {
		if isRange(a) {
			for _, el := range elements(ctx, a) {
				if el.Kind() == value.KindNumber {
					n++
				}
			}
			continue
		}
		if _, ek := value.ToNumber(ctx.Deref(a)); ek == value.NoError {
			n++
		}
	}
	return value.Number(float64(n))
}

func fnCountA(ctx Context, args []value.Value) value.Value {
	n := 0
	for _, a := range args {
		if isRange(a) {
			for _, el := range elements(ctx, a) {
				if !el.IsBlank() {
					n++
				}
			}
			continue
		}
		n++
	}
	return value.Number(float64(n))
}

func fnCountBlank(ctx Context, args []value.Value) value.Value {
	if args[0].Kind() != value.KindReference {
		return value.Error(value.ErrValue)
	}
	n := 0
	for _, el := range elements(ctx, args[0]) {
		if el.IsEmpty() {
			n++
		}
	}
	return value.Number(float64(n))
}

func extremum(pick func(a, b float64) float64) Func {
	return func(ctx Context, args []value.Value) value.Value {
		nums, ek := collectNumbers(ctx, args)
		if ek != value.NoError {
			return value.Error(ek)
		}
		if len(nums) == 0 {
			return value.Number(0)
		}
		out := nums[0]
		for _, n := range nums[1:] {
			out = pick(out, n)
		}
		return value.Number(out)
	}
}

func fnMedian(ctx Context, args []value.Value) value.Value {
	nums, ek := collectNumbers(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	if len(nums) == 0 {
		return value.Error(value.ErrNum)
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return value.Number(nums[mid])
	}
	return Num((nums[mid-1] + nums[mid]) / 2)
}

func sampleVariance(ctx Context, args []value.Value) (float64, value.ErrorKind) {
	nums, ek := collectNumbers(ctx, args)
	if ek != value.NoError {
		return 0, ek
	}
	if len(nums) < 2 {
		return 0, value.ErrDiv0
	}
	return stat.Variance(nums, nil), value.NoError
}

func fnVarS(ctx Context, args []value.Value) value.Value {
	v, ek := sampleVariance(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	return Num(v)
}

func fnStdevS(ctx Context, args []value.Value) value.Value {
	v, ek := sampleVariance(ctx, args)
	if ek != value.NoError {
		return value.Error(ek)
	}
	return Num(math.Sqrt(v))
}

// numbers coerces every argument, stopping at the first failure.
func numbers(args []value.Value) ([]float64, value.Value, bool) {
	out := make([]float64, len(args))
	for i, a := range args {
		n, errv, ok := numberArg(a)
		if !ok {
			return nil, errv, false
		}
		out[i] = n
	}
	return out, value.Value{}, true
}

func fnBinomDist(args []value.Value) value.Value {
	nums, errv, ok := numbers(args[:3])
	if !ok {
		return errv
	}
	cumulative, errv, ok := boolArg(args[3])
	if !ok {
		return errv
	}
	k, n, p := math.Trunc(nums[0]), math.Trunc(nums[1]), nums[2]
	if n < 0 || k < 0 || k > n || p < 0 || p > 1 {
		return value.Error(value.ErrNum)
	}

	// distuv.Binomial takes log(p) and log(1-p), which is NaN at the ends.
	switch p {
	case 0:
		if cumulative || k == 0 {
			return value.Number(1)
		}
		return value.Number(0)
	case 1:
		if k == n {
			return value.Number(1)
		}
		return value.Number(0)
	}

	d := distuv.Binomial{N: n, P: p}
	if cumulative {
		return Num(d.CDF(k))
	}
	return Num(d.Prob(k))
}

func fnNormDist(args []value.Value) value.Value {
	nums, errv, ok := numbers(args[:3])
	if !ok {
		return errv
	}
	cumulative, errv, ok := boolArg(args[3])
	if !ok {
		return errv
	}
	if nums[2] <= 0 {
		return value.Error(value.ErrNum)
	}
	d := distuv.Normal{Mu: nums[1], Sigma: nums[2]}
	if cumulative {
		return Num(d.CDF(nums[0]))
	}
	return Num(d.Prob(nums[0]))
}

func fnNormSDist(args []value.Value) value.Value {
	z, errv, ok := numberArg(args[0])
	if !ok {
		return errv
	}
	cumulative, errv, ok := boolArg(args[1])
	if !ok {
		return errv
	}
	if cumulative {
		return Num(distuv.UnitNormal.CDF(z))
	}
	return Num(distuv.UnitNormal.Prob(z))
}

func fnNormInv(args []value.Value) value.Value {
	nums, errv, ok := numbers(args)
	if !ok {
		return errv
	}
	p, mu, sigma := nums[0], nums[1], nums[2]
	if p <= 0 || p >= 1 || sigma <= 0 {
		return value.Error(value.ErrNum)
	}
	return Num(distuv.Normal{Mu: mu, Sigma: sigma}.Quantile(p))
}

func fnPoissonDist(args []value.Value) value.Value {
	nums, errv, ok := numbers(args[:2])
	if !ok {
		return errv
	}
	cumulative, errv, ok := boolArg(args[2])
	if !ok {
		return errv
	}
	x, mean := math.Trunc(nums[0]), nums[1]
	if x < 0 || mean < 0 {
		return value.Error(value.ErrNum)
	}
	if mean == 0 {
		if cumulative || x == 0 {
			return value.Number(1)
		}
		return value.Number(0)
	}
	d := distuv.Poisson{Lambda: mean}
	if cumulative {
		return Num(d.CDF(x))
	}
	return Num(d.Prob(x))
}

func fnExponDist(args []value.Value) value.Value {
	nums, errv, ok := numbers(args[:2])
	if !ok {
		return errv
	}
	cumulative, errv, ok := boolArg(args[2])
	if !ok {
		return errv
	}
	x, rate := nums[0], nums[1]
	if x < 0 || rate <= 0 {
		return value.Error(value.ErrNum)
	}
	d := distuv.Exponential{Rate: rate}
	if cumulative {
		return Num(d.CDF(x))
	}
	return Num(d.Prob(x))
}

package functions

import (
	"math"

	"github.com/gridcalc/gridcalc/pkg/criteria"
	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("SUMIF", 2, 3, 0, fnSumIf)
	register("AVERAGEIF", 2, 3, 0, fnAverageIf)
	register("COUNTIF", 2, 2, 0, fnCountIf)
	register("SUMIFS", 3, -1, 0, multiCriteria(aggSum, true))
	register("AVERAGEIFS", 3, -1, 0, multiCriteria(aggAverage, true))
	register("MAXIFS", 3, -1, 0, multiCriteria(aggMax, true))
	register("MINIFS", 3, -1, 0, multiCriteria(aggMin, true))
	register("COUNTIFS", 2, -1, 0, multiCriteria(aggCount, false))
}

// aggregate folds the matched cells of the value range.
type aggregate func(vals []value.Value) value.Value

func numericOnly(vals []value.Value) ([]float64, value.Value, bool) {
	var out []float64
	for _, v := range vals {
		switch v.Kind() {
		case value.KindNumber:
			out = append(out, v.Num())
		case value.KindError:
			return nil, v, false
		}
	}
	return out, value.Value{}, true
}

func aggSum(vals []value.Value) value.Value {
	nums, errv, ok := numericOnly(vals)
	if !ok {
		return errv
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Num(total)
}

func aggAverage(vals []value.Value) value.Value {
	nums, errv, ok := numericOnly(vals)
	if !ok {
		return errv
	}
	if len(nums) == 0 {
		return value.Error(value.ErrDiv0)
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Num(total / float64(len(nums)))
}

func aggExtremum(pick func(a, b float64) float64) aggregate {
	return func(vals []value.Value) value.Value {
		nums, errv, ok := numericOnly(vals)
		if !ok {
			return errv
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

var (
	aggMax = aggExtremum(math.Max)
	aggMin = aggExtremum(math.Min)
)

func aggCount(vals []value.Value) value.Value {
	return value.Number(float64(len(vals)))
}

// matching applies parsed criteria to parallel ranges and collects the
// corresponding cells of values (or the matched positions when values is
// nil).
func matching(ranges []*value.Array, crits []*criteria.Criteria, values *value.Array) []value.Value {
	first := ranges[0]
	var out []value.Value
	for r := 0; r < first.Rows; r++ {
		for c := 0; c < first.Cols; c++ {
			ok := true
			for i, rg := range ranges {
				if !crits[i].Matches(rg.At(r, c)) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
			if values == nil {
				out = append(out, value.Blank())
				continue
			}
			if r < values.Rows && c < values.Cols {
				out = append(out, values.At(r, c))
			}
		}
	}
	return out
}

// withCriteria parses every criteria argument, lifting over arrays so a
// criteria array produces an array of results.
func withCriteria(ctx Context, crits []value.Value, fn func(parsed []*criteria.Criteria) value.Value) value.Value {
	derefd := derefAll(ctx, crits)
	return BroadcastN(derefd, func(xs []value.Value) value.Value {
		parsed := make([]*criteria.Criteria, len(xs))
		for i, x := range xs {
			c, ek := criteria.Parse(x)
			if ek != value.NoError {
				return value.Error(ek)
			}
			parsed[i] = c
		}
		return fn(parsed)
	})
}

func singleCriteria(ctx Context, args []value.Value, agg aggregate) value.Value {
	rng := grid(ctx, args[0])
	values := rng
	if len(args) > 2 && !args[2].IsBlank() {
		values = grid(ctx, resized(ctx, args[2], rng.Rows, rng.Cols))
	}
	return withCriteria(ctx, args[1:2], func(parsed []*criteria.Criteria) value.Value {
		return agg(matching([]*value.Array{rng}, parsed, values))
	})
}

// resized anchors a value range at its top-left cell and stretches it to
// the criteria range's shape. Cells beyond the written range become
// observed precedents.
func resized(ctx Context, v value.Value, rows, cols int) value.Value {
	if v.Kind() != value.KindReference {
		return v
	}
	ref := v.Ref()
	start := ref.First().Start
	end, ok := start.Offset(int64(rows-1), int64(cols-1))
	if !ok {
		return v
	}
	out := value.NewReference(ref.Sheet, value.NewArea(start, end))
	if !out.Equal(ref) {
		ctx.Observe(out)
	}
	return value.FromReference(out)
}

func fnSumIf(ctx Context, args []value.Value) value.Value {
	return singleCriteria(ctx, args, aggSum)
}

func fnAverageIf(ctx Context, args []value.Value) value.Value {
	return singleCriteria(ctx, args, aggAverage)
}

func fnCountIf(ctx Context, args []value.Value) value.Value {
	rng := grid(ctx, args[0])
	return withCriteria(ctx, args[1:2], func(parsed []*criteria.Criteria) value.Value {
		return aggCount(matching([]*value.Array{rng}, parsed, nil))
	})
}

// multiCriteria implements the *IFS family. When hasValues is set the
// first argument is the range being aggregated.
func multiCriteria(agg aggregate, hasValues bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		var values *value.Array
		pairs := args
		if hasValues {
			values = grid(ctx, args[0])
			pairs = args[1:]
		}
		if len(pairs) == 0 || len(pairs)%2 != 0 {
			return value.Error(value.ErrValue)
		}
		ranges := make([]*value.Array, 0, len(pairs)/2)
		crits := make([]value.Value, 0, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			rg := grid(ctx, pairs[i])
			if len(ranges) > 0 && (rg.Rows != ranges[0].Rows || rg.Cols != ranges[0].Cols) {
				return value.Error(value.ErrValue)
			}
			ranges = append(ranges, rg)
			crits = append(crits, pairs[i+1])
		}
		if values != nil && (values.Rows != ranges[0].Rows || values.Cols != ranges[0].Cols) {
			return value.Error(value.ErrValue)
		}
		return withCriteria(ctx, crits, func(parsed []*criteria.Criteria) value.Value {
			return agg(matching(ranges, parsed, values))
		})
	}
}

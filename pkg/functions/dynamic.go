package functions

import (
	"sort"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("SEQUENCE", 1, 4, 0, fnSequence)
	register("TRANSPOSE", 1, 1, 0, fnTranspose)
	register("FILTER", 2, 3, 0, fnFilter)
	register("SORT", 1, 4, 0, fnSort)
	register("UNIQUE", 1, 3, 0, fnUnique)
}

func scalarInt(ctx Context, args []value.Value, i int, def float64) (int, value.Value, bool) {
	return intArg(value.Scalar(ctx.Deref(optArg(args, i, value.Number(def)))))
}

func fnSequence(ctx Context, args []value.Value) value.Value {
	rows, errv, ok := scalarInt(ctx, args, 0, 1)
	if !ok {
		return errv
	}
	cols, errv, ok := scalarInt(ctx, args, 1, 1)
	if !ok {
		return errv
	}
	start, errv, ok := numberArg(value.Scalar(ctx.Deref(optArg(args, 2, value.Number(1)))))
	if !ok {
		return errv
	}
	step, errv, ok := numberArg(value.Scalar(ctx.Deref(optArg(args, 3, value.Number(1)))))
	if !ok {
		return errv
	}
	if rows < 1 || cols < 1 {
		return value.Error(value.ErrCalc)
	}
	out, ek := value.NewArray(rows, cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	for i := range out.Data {
		out.Data[i] = value.Number(start + float64(i)*step)
	}
	return arrayValue(out)
}

func fnTranspose(ctx Context, args []value.Value) value.Value {
	v := ctx.Deref(args[0])
	if v.Kind() != value.KindArray {
		return v
	}
	return value.FromArray(v.Array().Transpose())
}

func fnFilter(ctx Context, args []value.Value) value.Value {
	src := grid(ctx, args[0])
	include := grid(ctx, args[1])

	var keepRows bool
	switch {
	case include.Cols == 1 && include.Rows == src.Rows:
		keepRows = true
	case include.Rows == 1 && include.Cols == src.Cols:
		keepRows = false
	default:
		return value.Error(value.ErrValue)
	}

	var picked []int
	for i, v := range include.Data {
		b, errv, ok := boolArg(v)
		if !ok {
			return errv
		}
		if b {
			picked = append(picked, i)
		}
	}
	if len(picked) == 0 {
		if len(args) > 2 && !args[2].IsBlank() {
			return ctx.Deref(args[2])
		}
		return value.Error(value.ErrCalc)
	}

	var out *value.Array
	var ek value.ErrorKind
	if keepRows {
		out, ek = value.NewArray(len(picked), src.Cols)
		if ek != value.NoError {
			return value.Error(ek)
		}
		for r, i := range picked {
			for c := 0; c < src.Cols; c++ {
				out.Set(r, c, src.At(i, c))
			}
		}
	} else {
		out, ek = value.NewArray(src.Rows, len(picked))
		if ek != value.NoError {
			return value.Error(ek)
		}
		for c, i := range picked {
			for r := 0; r < src.Rows; r++ {
				out.Set(r, c, src.At(r, i))
			}
		}
	}
	return arrayValue(out)
}

// lines returns the rows of arr, or its columns when byCol is set, as
// 1-D slices.
func lines(arr *value.Array, byCol bool) [][]value.Value {
	if byCol {
		arr = arr.Transpose()
	}
	out := make([][]value.Value, arr.Rows)
	for r := range out {
		out[r] = arr.RowSlice(r).Data
	}
	return out
}

func fromLines(ls [][]value.Value, byCol bool) value.Value {
	arr, ek := value.ArrayFrom(ls)
	if ek != value.NoError {
		return value.Error(ek)
	}
	if byCol {
		arr = arr.Transpose()
	}
	return arrayValue(arr)
}

func fnSort(ctx Context, args []value.Value) value.Value {
	src := grid(ctx, args[0])
	key, errv, ok := scalarInt(ctx, args, 1, 1)
	if !ok {
		return errv
	}
	order, errv, ok := scalarInt(ctx, args, 2, 1)
	if !ok {
		return errv
	}
	byCol, errv, ok := boolArg(value.Scalar(ctx.Deref(optArg(args, 3, value.Bool(false)))))
	if !ok {
		return errv
	}
	if order != 1 && order != -1 {
		return value.Error(value.ErrValue)
	}
	ls := lines(src, byCol)
	if key < 1 || key > len(ls[0]) {
		return value.Error(value.ErrValue)
	}
	sort.SliceStable(ls, func(i, j int) bool {
		c := value.Compare(ls[i][key-1], ls[j][key-1])
		if order < 0 {
			return c > 0
		}
		return c < 0
	})
	return fromLines(ls, byCol)
}

func fnUnique(ctx Context, args []value.Value) value.Value {
	src := grid(ctx, args[0])
	byCol, errv, ok := boolArg(value.Scalar(ctx.Deref(optArg(args, 1, value.Bool(false)))))
	if !ok {
		return errv
	}
	once, errv, ok := boolArg(value.Scalar(ctx.Deref(optArg(args, 2, value.Bool(false)))))
	if !ok {
		return errv
	}

	ls := lines(src, byCol)
	counts := make(map[string]int, len(ls))
	keys := make([]string, len(ls))
	for i, l := range ls {
		keys[i] = lineKey(l)
		counts[keys[i]]++
	}
	var out [][]value.Value
	seen := make(map[string]bool, len(ls))
	for i, l := range ls {
		k := keys[i]
		if seen[k] || (once && counts[k] > 1) {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return value.Error(value.ErrCalc)
	}
	return fromLines(out, byCol)
}

// lineKey builds a case-insensitive identity for a row of values.
func lineKey(l []value.Value) string {
	var sb strings.Builder
	for _, v := range l {
		sb.WriteByte(byte('0' + v.Kind()))
		if v.Kind() == value.KindText {
			sb.WriteString(value.FoldText(v.Str()))
		} else {
			sb.WriteString(v.String())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}

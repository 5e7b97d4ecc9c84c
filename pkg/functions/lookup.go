package functions

import (
	"github.com/gridcalc/gridcalc/pkg/criteria"
	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("INDEX", 2, 4, 0, fnIndex)
	register("MATCH", 2, 3, 0, fnMatch)
	register("VLOOKUP", 3, 4, 0, fnVLookup)
	register("XLOOKUP", 3, 6, 0, fnXLookup)
	register("CHOOSE", 2, -1, Lazy, fnChoose)
	register("ROW", 0, 1, 0, position(func(a value.Addr) uint32 { return a.Row }, true))
	register("COLUMN", 0, 1, 0, position(func(a value.Addr) uint32 { return a.Col }, false))
	register("ROWS", 1, 1, 0, dimension(func(r, c int) int { return r }))
	register("COLUMNS", 1, 1, 0, dimension(func(r, c int) int { return c }))
	register("INDIRECT", 1, 2, Volatile|Dynamic, fnIndirect)
	register("OFFSET", 3, 5, Volatile|Dynamic, fnOffset)
}

func fnIndex(ctx Context, args []value.Value) value.Value {
	row, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 1, value.Number(0)))))
	if !ok {
		return errv
	}
	col, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 2, value.Number(0)))))
	if !ok {
		return errv
	}
	if row < 0 || col < 0 {
		return value.Error(value.ErrValue)
	}

	if args[0].Kind() == value.KindReference {
		ref := args[0].Ref()
		areaNum, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 3, value.Number(1)))))
		if !ok {
			return errv
		}
		if areaNum < 1 || areaNum > len(ref.Areas) {
			return value.Error(value.ErrRef)
		}
		area := ref.Areas[areaNum-1]
		if len(args) < 3 && area.Rows() == 1 && row > 0 {
			row, col = 1, row
		}
		sub, ok := subArea(area, row, col)
		if !ok {
			return value.Error(value.ErrRef)
		}
		return value.FromReference(value.NewReference(ref.Sheet, sub))
	}

	v := ctx.Deref(args[0])
	if v.IsError() {
		return v
	}
	arr := grid(ctx, v)
	if len(args) < 3 && arr.Rows == 1 && row > 0 {
		row, col = 1, row
	}
	if row > arr.Rows || col > arr.Cols {
		return value.Error(value.ErrRef)
	}
	switch {
	case row == 0 && col == 0:
		return arrayValue(arr)
	case row == 0:
		return arrayValue(arr.ColSlice(col - 1))
	case col == 0:
		if arr.Cols == 1 {
			return arr.At(row-1, 0)
		}
		return arrayValue(arr.RowSlice(row - 1))
	}
	return arr.At(row-1, col-1)
}

// subArea selects a row, column or cell of area using 1-based indexes,
// where 0 selects the whole dimension.
func subArea(area value.Area, row, col int) (value.Area, bool) {
	if row > area.Rows() || col > area.Cols() {
		return value.Area{}, false
	}
	out := area
	if row > 0 {
		out.Start.Row = area.Start.Row + uint32(row-1)
		out.End.Row = out.Start.Row
	}
	if col > 0 {
		out.Start.Col = area.Start.Col + uint32(col-1)
		out.End.Col = out.Start.Col
	}
	return out, true
}

// vector returns the values of a one-dimensional lookup range.
func vector(ctx Context, v value.Value) ([]value.Value, bool, bool) {
	arr := grid(ctx, v)
	switch {
	case arr.Cols == 1:
		return arr.Data, true, true
	case arr.Rows == 1:
		return arr.Data, false, true
	}
	return nil, false, false
}

func exactIndex(x value.Value, items []value.Value, wildcard bool) int {
	if wildcard && x.Kind() == value.KindText {
		c := criteria.Wildcard(x.Str())
		for i, el := range items {
			if el.Kind() == value.KindText && c.Matches(el) {
				return i
			}
		}
		return -1
	}
	for i, el := range items {
		if el.Kind() == x.Kind() && value.Compare(el, x) == 0 {
			return i
		}
	}
	return -1
}

// approxIndex finds the position of the largest item not above x
// (or, for descending data, the smallest item not below x).
func approxIndex(x value.Value, items []value.Value, descending bool) int {
	found := -1
	for i, el := range items {
		if el.Kind() != x.Kind() {
			continue
		}
		c := value.Compare(el, x)
		if descending {
			c = -c
		}
		if c > 0 {
			break
		}
		found = i
	}
	return found
}

// nearestIndex finds an exact match or the closest item on one side of x,
// without assuming any ordering.
func nearestIndex(x value.Value, items []value.Value, larger bool) int {
	if i := exactIndex(x, items, false); i >= 0 {
		return i
	}
	found := -1
	for i, el := range items {
		if el.Kind() != x.Kind() {
			continue
		}
		c := value.Compare(el, x)
		if larger && c > 0 && (found < 0 || value.Compare(el, items[found]) < 0) {
			found = i
		}
		if !larger && c < 0 && (found < 0 || value.Compare(el, items[found]) > 0) {
			found = i
		}
	}
	return found
}

func fnMatch(ctx Context, args []value.Value) value.Value {
	x := value.Scalar(ctx.Deref(args[0]))
	if x.IsError() {
		return x
	}
	items, _, ok := vector(ctx, args[1])
	if !ok {
		return value.Error(value.ErrNA)
	}
	mode, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 2, value.Number(1)))))
	if !ok {
		return errv
	}
	var i int
	switch {
	case mode == 0:
		i = exactIndex(x, items, true)
	case mode > 0:
		i = approxIndex(x, items, false)
	default:
		i = approxIndex(x, items, true)
	}
	if i < 0 {
		return value.Error(value.ErrNA)
	}
	return value.Number(float64(i + 1))
}

func fnVLookup(ctx Context, args []value.Value) value.Value {
	x := value.Scalar(ctx.Deref(args[0]))
	if x.IsError() {
		return x
	}
	table := grid(ctx, args[1])
	col, errv, ok := intArg(value.Scalar(ctx.Deref(args[2])))
	if !ok {
		return errv
	}
	if col < 1 {
		return value.Error(value.ErrValue)
	}
	if col > table.Cols {
		return value.Error(value.ErrRef)
	}
	approx, errv, ok := boolArg(value.Scalar(ctx.Deref(optArg(args, 3, value.Bool(true)))))
	if !ok {
		return errv
	}
	keys := table.ColSlice(0).Data
	var i int
	if approx {
		i = approxIndex(x, keys, false)
	} else {
		i = exactIndex(x, keys, true)
	}
	if i < 0 {
		return value.Error(value.ErrNA)
	}
	return table.At(i, col-1)
}

func fnXLookup(ctx Context, args []value.Value) value.Value {
	x := value.Scalar(ctx.Deref(args[0]))
	if x.IsError() {
		return x
	}
	items, vertical, ok := vector(ctx, args[1])
	if !ok {
		return value.Error(value.ErrValue)
	}
	ret := grid(ctx, args[2])
	if (vertical && ret.Rows != len(items)) || (!vertical && ret.Cols != len(items)) {
		return value.Error(value.ErrValue)
	}
	matchMode, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 4, value.Number(0)))))
	if !ok {
		return errv
	}
	searchMode, errv, ok := intArg(value.Scalar(ctx.Deref(optArg(args, 5, value.Number(1)))))
	if !ok {
		return errv
	}
	if searchMode != 1 && searchMode != -1 {
		return value.Error(value.ErrValue)
	}

	search := items
	if searchMode == -1 {
		search = make([]value.Value, len(items))
		for i, el := range items {
			search[len(items)-1-i] = el
		}
	}
	var i int
	switch matchMode {
	case 0:
		i = exactIndex(x, search, false)
	case 2:
		i = exactIndex(x, search, true)
	case -1:
		i = nearestIndex(x, search, false)
	case 1:
		i = nearestIndex(x, search, true)
	default:
		return value.Error(value.ErrValue)
	}
	if i >= 0 && searchMode == -1 {
		i = len(items) - 1 - i
	}
	if i < 0 {
		if len(args) > 3 && args[3].Kind() != value.KindBlank {
			return args[3]
		}
		return value.Error(value.ErrNA)
	}
	if vertical {
		return arrayValue(ret.RowSlice(i))
	}
	return arrayValue(ret.ColSlice(i))
}

// ChooseIndex converts a scalar CHOOSE selector into a zero-based index
// among n choices.
func ChooseIndex(v value.Value, n int) (int, value.Value, bool) {
	i, errv, ok := intArg(v)
	if !ok {
		return 0, errv, false
	}
	if i < 1 || i > n {
		return 0, value.Error(value.ErrValue), false
	}
	return i - 1, value.Value{}, true
}

func fnChoose(ctx Context, args []value.Value) value.Value {
	idx := ctx.Deref(args[0])
	choices := args[1:]
	pick := func(v value.Value) value.Value {
		n, errv, ok := ChooseIndex(v, len(choices))
		if !ok {
			return errv
		}
		return choices[n]
	}
	if idx.Kind() != value.KindArray {
		return pick(idx)
	}
	return Map(idx, func(v value.Value) value.Value {
		return value.Scalar(ctx.Deref(pick(v)))
	})
}

func position(coord func(value.Addr) uint32, rows bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		if len(args) == 0 || args[0].IsBlank() {
			return value.Number(float64(coord(ctx.Caller().Addr)) + 1)
		}
		if args[0].Kind() != value.KindReference {
			return value.Error(value.ErrValue)
		}
		area := args[0].Ref().First()
		n := area.Cols()
		if rows {
			n = area.Rows()
		}
		if n == 1 {
			return value.Number(float64(coord(area.Start)) + 1)
		}
		out, ek := value.NewArray(1, n)
		if rows {
			out, ek = value.NewArray(n, 1)
		}
		if ek != value.NoError {
			return value.Error(ek)
		}
		for i := range out.Data {
			out.Data[i] = value.Number(float64(coord(area.Start)) + 1 + float64(i))
		}
		return value.FromArray(out)
	}
}

func dimension(pick func(rows, cols int) int) Func {
	return func(ctx Context, args []value.Value) value.Value {
		if args[0].Kind() == value.KindReference {
			ref := args[0].Ref()
			if len(ref.Areas) > 1 {
				return value.Error(value.ErrRef)
			}
			a := ref.First()
			return value.Number(float64(pick(a.Rows(), a.Cols())))
		}
		v := ctx.Deref(args[0])
		if v.IsError() {
			return v
		}
		r, c := value.Shape(v)
		return value.Number(float64(pick(r, c)))
	}
}

func fnIndirect(ctx Context, args []value.Value) value.Value {
	text, errv, ok := textArg(value.Scalar(ctx.Deref(args[0])))
	if !ok {
		return errv
	}
	a1, errv, ok := boolArg(value.Scalar(ctx.Deref(optArg(args, 1, value.Bool(true)))))
	if !ok {
		return errv
	}
	ref, ok := ParseReferenceText(ctx, text, a1)
	if !ok {
		return value.Error(value.ErrRef)
	}
	ctx.Observe(ref)
	return value.FromReference(ref)
}

func fnOffset(ctx Context, args []value.Value) value.Value {
	if args[0].Kind() != value.KindReference {
		return value.Error(value.ErrValue)
	}
	base := args[0].Ref().First()
	nums := make([]int, 4)
	defaults := []int{0, 0, base.Rows(), base.Cols()}
	for i := range nums {
		if i+1 >= len(args) || args[i+1].IsBlank() {
			nums[i] = defaults[i]
			continue
		}
		n, errv, ok := intArg(value.Scalar(ctx.Deref(args[i+1])))
		if !ok {
			return errv
		}
		nums[i] = n
	}
	dRow, dCol, height, width := nums[0], nums[1], nums[2], nums[3]
	if height == 0 || width == 0 {
		return value.Error(value.ErrRef)
	}
	start, ok := base.Start.Offset(int64(dRow), int64(dCol))
	if !ok {
		return value.Error(value.ErrRef)
	}
	end, ok := start.Offset(int64(height-sign1(height)), int64(width-sign1(width)))
	if !ok {
		return value.Error(value.ErrRef)
	}
	sheet := args[0].Ref().Sheet
	rows, cols := ctx.SheetDimensions(sheet)
	area := value.NewArea(start, end)
	if area.End.Row >= rows || area.End.Col >= cols {
		return value.Error(value.ErrRef)
	}
	ref := value.NewReference(sheet, area)
	ctx.Observe(ref)
	return value.FromReference(ref)
}

func sign1(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}

package functions

import (
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Broadcast2 combines two values elementwise. A dimension of size 1
// stretches to match the other operand; where the operands disagree and
// neither is 1, the cells beyond the shorter operand are #N/A.
func Broadcast2(a, b value.Value, fn func(x, y value.Value) value.Value) value.Value {
	ar, ac := value.Shape(a)
	br, bc := value.Shape(b)
	rows, cols := max(ar, br), max(ac, bc)

	out, ek := value.NewArray(rows, cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			x, okA := elementAt(a, ar, ac, r, c)
			y, okB := elementAt(b, br, bc, r, c)
			if !okA || !okB {
				out.Set(r, c, value.Error(value.ErrNA))
				continue
			}
			out.Set(r, c, fn(x, y))
		}
	}
	return value.FromArray(out)
}

// BroadcastN combines several values elementwise with the same rules as
// Broadcast2.
func BroadcastN(vals []value.Value, fn func(xs []value.Value) value.Value) value.Value {
	rows, cols := 1, 1
	anyArray := false
	for _, v := range vals {
		r, c := value.Shape(v)
		rows, cols = max(rows, r), max(cols, c)
		if v.Kind() == value.KindArray {
			anyArray = true
		}
	}
	if !anyArray {
		return fn(vals)
	}
	out, ek := value.NewArray(rows, cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	xs := make([]value.Value, len(vals))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			missing := false
			for i, v := range vals {
				vr, vc := value.Shape(v)
				x, ok := elementAt(v, vr, vc, r, c)
				if !ok {
					missing = true
					break
				}
				xs[i] = x
			}
			if missing {
				out.Set(r, c, value.Error(value.ErrNA))
				continue
			}
			out.Set(r, c, fn(xs))
		}
	}
	return value.FromArray(out)
}

// Map applies fn to every element of v, or to v itself when it is a
// scalar.
func Map(v value.Value, fn func(value.Value) value.Value) value.Value {
	if v.Kind() != value.KindArray {
		return fn(v)
	}
	src := v.Array()
	out := &value.Array{Rows: src.Rows, Cols: src.Cols, Data: make([]value.Value, len(src.Data))}
	for i, el := range src.Data {
		out.Data[i] = fn(el)
	}
	return value.FromArray(out)
}

func elementAt(v value.Value, rows, cols, r, c int) (value.Value, bool) {
	if v.Kind() != value.KindArray {
		return v, true
	}
	if rows == 1 {
		r = 0
	}
	if cols == 1 {
		c = 0
	}
	if r >= rows || c >= cols {
		return value.Value{}, false
	}
	return v.Array().At(r, c), true
}

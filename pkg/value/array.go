package value

import "sync/atomic"

// DefaultMaxArrayCells is the default ceiling on the number of elements an
// array or spill may hold.
const DefaultMaxArrayCells = 1 << 22

var maxArrayCells atomic.Int64

func init() {
	maxArrayCells.Store(DefaultMaxArrayCells)
}

// MaxArrayCells returns the active array ceiling.
func MaxArrayCells() int {
	return int(maxArrayCells.Load())
}

// SetMaxArrayCells replaces the array ceiling. Non-positive values restore
// the default.
func SetMaxArrayCells(n int) {
	if n <= 0 {
		n = DefaultMaxArrayCells
	}
	maxArrayCells.Store(int64(n))
}

// Array is a row-major two-dimensional grid of values. Element (0, 0) is
// the value used when the array is coerced to a scalar.
type Array struct {
	Rows int
	Cols int
	Data []Value
}

// NewArray allocates a rows x cols array of Blank values. It fails with
// #CALC! for empty shapes and #NUM! when the ceiling would be exceeded.
func NewArray(rows, cols int) (*Array, ErrorKind) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrCalc
	}
	if int64(rows)*int64(cols) > int64(MaxArrayCells()) {
		return nil, ErrNum
	}
	return &Array{Rows: rows, Cols: cols, Data: make([]Value, rows*cols)}, NoError
}

// ArrayFrom builds an array from nested rows. Ragged input is padded with
// #N/A the way array literals of unequal width are.
func ArrayFrom(rows [][]Value) (*Array, ErrorKind) {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	arr, ek := NewArray(len(rows), cols)
	if ek != NoError {
		return nil, ek
	}
	for r, row := range rows {
		for c := 0; c < cols; c++ {
			if c < len(row) {
				arr.Set(r, c, row[c])
			} else {
				arr.Set(r, c, Error(ErrNA))
			}
		}
	}
	return arr, NoError
}

// Row builds a 1 x n array.
func Row(vals ...Value) Value {
	arr, ek := ArrayFrom([][]Value{vals})
	if ek != NoError {
		return Error(ek)
	}
	return FromArray(arr)
}

// Column builds an n x 1 array.
func Column(vals ...Value) Value {
	rows := make([][]Value, len(vals))
	for i, v := range vals {
		rows[i] = []Value{v}
	}
	arr, ek := ArrayFrom(rows)
	if ek != NoError {
		return Error(ek)
	}
	return FromArray(arr)
}

// At returns the element at (r, c). Out-of-range positions yield #N/A.
func (a *Array) At(r, c int) Value {
	if r < 0 || c < 0 || r >= a.Rows || c >= a.Cols {
		return Error(ErrNA)
	}
	return a.Data[r*a.Cols+c]
}

// Set stores v at (r, c).
func (a *Array) Set(r, c int, v Value) {
	a.Data[r*a.Cols+c] = v
}

// Scalar returns the top-left element.
func (a *Array) Scalar() Value {
	if len(a.Data) == 0 {
		return Error(ErrCalc)
	}
	return a.Data[0]
}

// Clone copies the array.
func (a *Array) Clone() *Array {
	out := &Array{Rows: a.Rows, Cols: a.Cols, Data: make([]Value, len(a.Data))}
	copy(out.Data, a.Data)
	return out
}

// Transpose returns the transposed array.
func (a *Array) Transpose() *Array {
	out := &Array{Rows: a.Cols, Cols: a.Rows, Data: make([]Value, len(a.Data))}
	for r := 0; r < a.Rows; r++ {
		for c := 0; c < a.Cols; c++ {
			out.Data[c*out.Cols+r] = a.Data[r*a.Cols+c]
		}
	}
	return out
}

// IsScalar reports whether the array holds exactly one element.
func (a *Array) IsScalar() bool {
	return a.Rows == 1 && a.Cols == 1
}

// RowSlice returns row r as a 1 x Cols array.
func (a *Array) RowSlice(r int) *Array {
	out := &Array{Rows: 1, Cols: a.Cols, Data: make([]Value, a.Cols)}
	copy(out.Data, a.Data[r*a.Cols:(r+1)*a.Cols])
	return out
}

// ColSlice returns column c as a Rows x 1 array.
func (a *Array) ColSlice(c int) *Array {
	out := &Array{Rows: a.Rows, Cols: 1, Data: make([]Value, a.Rows)}
	for r := 0; r < a.Rows; r++ {
		out.Data[r] = a.Data[r*a.Cols+c]
	}
	return out
}

// Shape returns the dimensions of v: arrays report their size, every other
// value is 1 x 1.
func Shape(v Value) (rows, cols int) {
	if v.kind == KindArray {
		return v.arr.Rows, v.arr.Cols
	}
	return 1, 1
}

// Scalar collapses an array to its top-left element; other values pass
// through.
func Scalar(v Value) Value {
	if v.kind == KindArray {
		return v.arr.Scalar()
	}
	return v
}

// Elements returns the values of v in row-major order. Scalars yield a
// single element.
func Elements(v Value) []Value {
	if v.kind == KindArray {
		return v.arr.Data
	}
	return []Value{v}
}

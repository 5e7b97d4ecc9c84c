package eval

import (
	"time"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Host is the workbook as evaluation sees it.
type Host interface {
	// CellValue returns the current value of a cell. Spilled cells read
	// through to their origin's array.
	CellValue(c value.CellRef) value.Value

	// UsedRange returns one past the last used row and column of a sheet.
	UsedRange(sheet value.SheetID) (rows, cols uint32)

	SheetID(name string) (value.SheetID, bool)
	SheetDimensions(id value.SheetID) (rows, cols uint32)

	// ResolveName returns the compiled definition of a defined name.
	// Qualified lookups only match names scoped to sheet; others fall
	// back to workbook scope.
	ResolveName(sheet value.SheetID, name string, qualified bool) (compiler.Expr, bool)

	// ResolveTable places a structured reference.
	ResolveTable(spec formula.TableSpec, caller value.CellRef) (*value.Reference, bool)

	// SpillExtent returns the current spill range of an origin cell.
	SpillExtent(origin value.CellRef) (*value.Reference, bool)

	DateSystem() functions.DateSystem
	Now() time.Time
}

// Frame is the state of one formula evaluation. It implements
// functions.Context and is shared by the VM and the tree walker. A Frame
// must not be used from more than one goroutine.
type Frame struct {
	host     Host
	caller   value.CellRef
	maxDepth int
	maxCells int
	depth    int
	observed []*value.Reference
}

// Observed returns the references recorded at run time.
func (f *Frame) Observed() []*value.Reference { return f.observed }

func (f *Frame) Caller() value.CellRef { return f.caller }

func (f *Frame) Observe(ref *value.Reference) {
	if ref != nil {
		f.observed = append(f.observed, ref)
	}
}

func (f *Frame) SheetID(name string) (value.SheetID, bool) { return f.host.SheetID(name) }

func (f *Frame) SheetDimensions(id value.SheetID) (uint32, uint32) {
	return f.host.SheetDimensions(id)
}

func (f *Frame) DateSystem() functions.DateSystem { return f.host.DateSystem() }

func (f *Frame) Now() time.Time { return f.host.Now() }

// Deref reads the cells of a reference. Whole-row and whole-column
// areas stop at the sheet's used range.
func (f *Frame) Deref(v value.Value) value.Value {
	if v.Kind() != value.KindReference {
		return v
	}
	ref := v.Ref()
	if len(ref.Areas) != 1 {
		return value.Error(value.ErrValue)
	}
	area := f.clip(ref.Sheet, ref.First())
	if area.Start == area.End {
		return f.host.CellValue(value.CellRef{Sheet: ref.Sheet, Addr: area.Start})
	}
	if !f.fits(area.Rows(), area.Cols()) {
		return value.Error(value.ErrNum)
	}
	out, ek := value.NewArray(area.Rows(), area.Cols())
	if ek != value.NoError {
		return value.Error(ek)
	}
	for r := 0; r < out.Rows; r++ {
		for c := 0; c < out.Cols; c++ {
			cell := value.Cell(ref.Sheet, area.Start.Row+uint32(r), area.Start.Col+uint32(c))
			out.Set(r, c, f.host.CellValue(cell))
		}
	}
	return value.FromArray(out)
}

// Limit replaces an array above the evaluation's ceiling with #NUM!.
func (f *Frame) Limit(v value.Value) value.Value {
	if v.Kind() == value.KindArray {
		if a := v.Array(); !f.fits(a.Rows, a.Cols) {
			return value.Error(value.ErrNum)
		}
	}
	return v
}

func (f *Frame) fits(rows, cols int) bool {
	return int64(rows)*int64(cols) <= int64(f.maxCells)
}

func (f *Frame) clip(sheet value.SheetID, area value.Area) value.Area {
	rows, cols := f.host.SheetDimensions(sheet)
	fullCols := area.Start.Row == 0 && area.End.Row+1 >= rows
	fullRows := area.Start.Col == 0 && area.End.Col+1 >= cols
	if !fullCols && !fullRows {
		return area
	}
	usedRows, usedCols := f.host.UsedRange(sheet)
	if fullCols && usedRows <= area.End.Row {
		area.End.Row = max(usedRows, 1) - 1
	}
	if fullRows && usedCols <= area.End.Col {
		area.End.Col = max(usedCols, 1) - 1
	}
	return area
}

// Ref places a static reference at the caller.
func (f *Frame) Ref(r compiler.Ref) value.Value {
	ref, ok := r.Resolve(f.caller)
	if !ok {
		return value.Error(value.ErrRef)
	}
	rows, cols := f.host.SheetDimensions(ref.Sheet)
	if end := ref.First().End; end.Row >= rows || end.Col >= cols {
		return value.Error(value.ErrRef)
	}
	if f.depth > 0 {
		// Inside a name or lambda body, which may come from a definition
		// outside the caller's own formula.
		f.Observe(ref)
	}
	return value.FromReference(ref)
}

// Name evaluates a defined name in this frame. Self-referencing names
// run into the depth limit.
func (f *Frame) Name(n compiler.Name) value.Value {
	expr, ok := f.host.ResolveName(n.Sheet, n.Name, n.Qualified)
	if !ok {
		return value.Error(value.ErrName)
	}
	if f.depth >= f.maxDepth {
		return value.Error(value.ErrCalc)
	}
	f.depth++
	defer func() { f.depth-- }()
	return f.eval(expr, nil)
}

// Table resolves a structured reference and records it, since tables can
// change size without the formula changing.
func (f *Frame) Table(spec formula.TableSpec) value.Value {
	ref, ok := f.host.ResolveTable(spec, f.caller)
	if !ok {
		return value.Error(value.ErrRef)
	}
	f.Observe(ref)
	return value.FromReference(ref)
}

// Spill resolves the # operator applied to origin.
func (f *Frame) Spill(origin value.Value) value.Value {
	if origin.IsError() {
		return origin
	}
	if origin.Kind() != value.KindReference || !origin.Ref().IsSingleCell() {
		return value.Error(value.ErrRef)
	}
	ref, ok := f.host.SpillExtent(origin.Ref().TopLeft())
	if !ok {
		return value.Error(value.ErrRef)
	}
	f.Observe(ref)
	return value.FromReference(ref)
}

// Range builds the bounding range of two references computed at run time.
func (f *Frame) Range(l, r value.Value) value.Value {
	for _, v := range []value.Value{l, r} {
		if v.IsError() {
			return v
		}
		if v.Kind() != value.KindReference {
			return value.Error(value.ErrValue)
		}
	}
	a, b := l.Ref(), r.Ref()
	if a.Sheet != b.Sheet {
		return value.Error(value.ErrRef)
	}
	x, y := a.First(), b.First()
	start := value.Addr{Row: min(x.Start.Row, y.Start.Row), Col: min(x.Start.Col, y.Start.Col)}
	end := value.Addr{Row: max(x.End.Row, y.End.Row), Col: max(x.End.Col, y.End.Col)}
	ref := value.NewReference(a.Sheet, value.NewArea(start, end))
	f.Observe(ref)
	return value.FromReference(ref)
}

// Union joins references on one sheet.
func (f *Frame) Union(items []value.Value) value.Value {
	var out *value.Reference
	for _, v := range items {
		if v.IsError() {
			return v
		}
		if v.Kind() != value.KindReference {
			return value.Error(value.ErrValue)
		}
		if out == nil {
			out = v.Ref()
			continue
		}
		if out = out.Union(v.Ref()); out == nil {
			return value.Error(value.ErrRef)
		}
	}
	if out == nil {
		return value.Error(value.ErrValue)
	}
	return value.FromReference(out)
}

// Apply calls a lambda value.
func (f *Frame) Apply(fn value.Value, args []value.Value) value.Value {
	if fn.IsError() {
		return fn
	}
	if fn.Kind() != value.KindLambda {
		return value.Error(value.ErrValue)
	}
	lam := fn.Lambda()
	body, ok := lam.Body.(compiler.Expr)
	if !ok {
		return value.Error(value.ErrCalc)
	}
	if len(args) != lam.Arity() {
		return value.Error(value.ErrValue)
	}
	if f.depth >= f.maxDepth {
		return value.Error(value.ErrCalc)
	}
	f.depth++
	defer func() { f.depth-- }()

	sc := lam.Env
	for i, p := range lam.Params {
		sc = sc.Bind(p, args[i])
	}
	return f.eval(body, sc)
}

// Result finishes an evaluation for cell storage: a top-level reference
// is read and lambdas become #CALC!.
func (f *Frame) Result(v value.Value) value.Value {
	return value.Sanitize(f.Deref(v))
}

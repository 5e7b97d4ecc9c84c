package engine

import (
	"time"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/eval"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Resolver is the read side of a workbook: what formulas see.
type Resolver interface {
	SheetExists(id value.SheetID) bool
	SheetCount() int
	SheetDimensions(id value.SheetID) (rows, cols uint32)

	// CellValue returns what a formula reading c sees.
	CellValue(c value.CellRef) value.Value

	SheetName(id value.SheetID) (string, bool)
	SheetID(name string) (value.SheetID, bool)

	// ResolveName returns the compiled definition of a defined name.
	ResolveName(sheet value.SheetID, name string, qualified bool) (compiler.Expr, bool)

	// ResolveStructuredRef places a structured reference for the formula
	// in caller.
	ResolveStructuredRef(spec formula.TableSpec, caller value.CellRef) (*value.Reference, error)

	// ExternalValue returns the host override for c, if any.
	ExternalValue(c value.CellRef) (value.Value, bool)
}

var (
	_ Resolver         = (*view)(nil)
	_ eval.Host        = (*view)(nil)
	_ compiler.Catalog = (*view)(nil)
)

// view reads workbook state without locking. Evaluation runs while the
// workbook lock is held by Recalculate, and parallel workers share the
// view while nothing mutates.
type view struct {
	w *Workbook
}

func (v *view) SheetExists(id value.SheetID) bool {
	return v.w.sheet(id) != nil
}

func (v *view) SheetCount() int {
	return len(v.w.sheets)
}

func (v *view) SheetDimensions(id value.SheetID) (uint32, uint32) {
	sh := v.w.sheet(id)
	if sh == nil {
		return 0, 0
	}
	return sh.rows, sh.cols
}

func (v *view) UsedRange(id value.SheetID) (uint32, uint32) {
	sh := v.w.sheet(id)
	if sh == nil {
		return 0, 0
	}
	return sh.usedRows, sh.usedCols
}

func (v *view) SheetName(id value.SheetID) (string, bool) {
	sh := v.w.sheet(id)
	if sh == nil {
		return "", false
	}
	return sh.name, true
}

func (v *view) SheetID(name string) (value.SheetID, bool) {
	sh, ok := v.w.byName[value.FoldText(name)]
	if !ok {
		return 0, false
	}
	return sh.id, true
}

func (v *view) CellValue(c value.CellRef) value.Value {
	if ext, ok := v.ExternalValue(c); ok {
		return ext
	}
	sh := v.w.sheet(c.Sheet)
	if sh == nil {
		return value.Error(value.ErrRef)
	}
	key := c.Pack()
	if fc := sh.formulas[key]; fc != nil {
		return fc.value
	}
	if lit, ok := sh.values[key]; ok {
		return lit
	}
	if origin, ok := v.w.spills.owner(c); ok {
		return v.w.spilledValue(origin, c)
	}
	return value.Blank()
}

func (v *view) ExternalValue(c value.CellRef) (value.Value, bool) {
	if ext, ok := v.w.external[c]; ok {
		return ext, true
	}
	if v.w.opts.External != nil {
		return v.w.opts.External.ExternalValue(c)
	}
	return value.Value{}, false
}

func (v *view) ResolveName(sheet value.SheetID, name string, qualified bool) (compiler.Expr, bool) {
	dn, ok := v.w.lookupName(sheet, name, qualified)
	if !ok {
		return nil, false
	}
	return dn.expr, true
}

func (v *view) ResolveStructuredRef(spec formula.TableSpec, caller value.CellRef) (*value.Reference, error) {
	return v.w.resolveStructured(spec, caller)
}

func (v *view) ResolveTable(spec formula.TableSpec, caller value.CellRef) (*value.Reference, bool) {
	ref, err := v.w.resolveStructured(spec, caller)
	return ref, err == nil
}

func (v *view) TablesAt(sheet value.SheetID, addr value.Addr) []string {
	return v.w.tablesAt(sheet, addr)
}

func (v *view) SpillExtent(origin value.CellRef) (*value.Reference, bool) {
	area, ok := v.w.spills.extent(origin)
	if !ok {
		return nil, false
	}
	return value.NewReference(origin.Sheet, area), true
}

func (v *view) DateSystem() functions.DateSystem {
	return v.w.opts.DateSystem
}

func (v *view) Now() time.Time {
	return v.w.opts.Clock()
}

// spilledValue reads the element of origin's array that lands on c.
// Blank elements read as 0.
func (w *Workbook) spilledValue(origin, c value.CellRef) value.Value {
	fc := w.formulaAt(origin)
	if fc == nil || fc.result.Kind() != value.KindArray {
		return value.Blank()
	}
	el := fc.result.Array().At(int(c.Row-origin.Row), int(c.Col-origin.Col))
	if el.IsBlank() {
		return value.Number(0)
	}
	return el
}

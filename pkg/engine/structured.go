package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// TableDefinition places a named table on a sheet for structured
// references.
type TableDefinition struct {
	Name  string `yaml:"name" json:"name" validate:"required"`
	Sheet string `yaml:"sheet" json:"sheet" validate:"required"`
	// Range covers the header, data and totals rows, e.g. "A1:C10".
	Range  string `yaml:"range" json:"range" validate:"required"`
	Header bool   `yaml:"header" json:"header"`
	Totals bool   `yaml:"totals" json:"totals"`
	// Columns names the columns left to right. When empty they are read
	// from the header row, or numbered Column1, Column2, ...
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

type table struct {
	name    string
	sheet   value.SheetID
	area    value.Area
	header  bool
	totals  bool
	columns []string
}

// dataRows returns the first and last data row. ok is false for a table
// without data rows.
func (t *table) dataRows() (first, last uint32, ok bool) {
	first, last = t.area.Start.Row, t.area.End.Row
	if t.header {
		first++
	}
	if t.totals {
		if last == 0 {
			return 0, 0, false
		}
		last--
	}
	return first, last, first <= last
}

func (t *table) column(name string) (uint32, bool) {
	for i, col := range t.columns {
		if value.EqualFold(col, name) {
			return t.area.Start.Col + uint32(i), true
		}
	}
	return 0, false
}

// DefineTable registers a table. Redefining a table by name replaces it;
// tables on one sheet may not overlap.
func (w *Workbook) DefineTable(def TableDefinition) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !validName(def.Name) {
		return invalid("invalid table name %q", def.Name).WithOperation("DefineTable")
	}
	ref := def.Range
	if def.Sheet != "" {
		ref = formula.FormatSheetName(def.Sheet, false) + "!" + def.Range
	}
	sh, area, err := w.parseArea(ref)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return e.WithOperation("DefineTable").WithDetail("table", def.Name)
		}
		return err
	}
	rows := area.Rows()
	if def.Header {
		rows--
	}
	if def.Totals {
		rows--
	}
	if rows < 0 {
		return invalid("table %s is too short for its header and totals rows", def.Name).
			WithOperation("DefineTable")
	}

	fold := value.FoldText(def.Name)
	for key, other := range w.tables {
		if key != fold && other.sheet == sh.id && other.area.Intersects(area) {
			return invalid("table %s overlaps table %s", def.Name, other.name).
				WithOperation("DefineTable")
		}
	}

	columns, err := w.tableColumns(def, sh, area)
	if err != nil {
		return err
	}

	w.tables[fold] = &table{
		name:    def.Name,
		sheet:   sh.id,
		area:    area,
		header:  def.Header,
		totals:  def.Totals,
		columns: columns,
	}
	sh.grow(area)
	w.mutated = true
	for _, s := range w.sheets {
		for _, fc := range s.sortedFormulas() {
			for _, name := range fc.static.Tables {
				if value.EqualFold(name, def.Name) {
					w.markDirty(fc)
					break
				}
			}
		}
	}
	return nil
}

func (w *Workbook) tableColumns(def TableDefinition, sh *sheet, area value.Area) ([]string, error) {
	n := area.Cols()
	columns := make([]string, n)
	switch {
	case len(def.Columns) > 0:
		if len(def.Columns) != n {
			return nil, invalid("table %s has %d columns but %d names", def.Name, n, len(def.Columns)).
				WithOperation("DefineTable")
		}
		copy(columns, def.Columns)
	case def.Header:
		for i := range columns {
			c := value.Cell(sh.id, area.Start.Row, area.Start.Col+uint32(i))
			text, ek := value.ToText(w.view.CellValue(c))
			if ek != value.NoError || strings.TrimSpace(text) == "" {
				text = fmt.Sprintf("Column%d", i+1)
			}
			columns[i] = text
		}
	default:
		for i := range columns {
			columns[i] = fmt.Sprintf("Column%d", i+1)
		}
	}

	seen := make(map[string]bool, n)
	for _, col := range columns {
		key := value.FoldText(col)
		if seen[key] {
			return nil, invalid("table %s has duplicate column %q", def.Name, col).
				WithOperation("DefineTable")
		}
		seen[key] = true
	}
	return columns, nil
}

// Tables returns the table definitions, sorted by name.
func (w *Workbook) Tables() []TableDefinition {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]TableDefinition, 0, len(w.tables))
	for _, t := range w.tables {
		out = append(out, TableDefinition{
			Name:    t.name,
			Sheet:   w.sheet(t.sheet).name,
			Range:   t.area.String(),
			Header:  t.header,
			Totals:  t.totals,
			Columns: append([]string(nil), t.columns...),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (w *Workbook) tablesAt(sheet value.SheetID, addr value.Addr) []string {
	var out []string
	for _, t := range w.tables {
		if t.sheet == sheet && t.area.Contains(addr) {
			out = append(out, t.name)
		}
	}
	sort.Strings(out)
	return out
}

// resolveStructured places a structured reference. This-row references
// use the caller's row, which must be a data row of the table.
func (w *Workbook) resolveStructured(spec formula.TableSpec, caller value.CellRef) (*value.Reference, error) {
	t, ok := w.tables[value.FoldText(spec.Table)]
	if !ok {
		return nil, notFound("unknown table %q", spec.Table)
	}

	var top, bottom uint32
	switch spec.Section {
	case formula.SectionAll:
		top, bottom = t.area.Start.Row, t.area.End.Row
	case formula.SectionHeaders:
		if !t.header {
			return nil, notFound("table %s has no header row", t.name)
		}
		top, bottom = t.area.Start.Row, t.area.Start.Row
	case formula.SectionTotals:
		if !t.totals {
			return nil, notFound("table %s has no totals row", t.name)
		}
		top, bottom = t.area.End.Row, t.area.End.Row
	case formula.SectionThisRow:
		first, last, ok := t.dataRows()
		if !ok || caller.Sheet != t.sheet || caller.Row < first || caller.Row > last {
			return nil, invalid("row %d is not a data row of table %s", caller.Row+1, t.name)
		}
		top, bottom = caller.Row, caller.Row
	default:
		first, last, ok := t.dataRows()
		if !ok {
			return nil, notFound("table %s has no data rows", t.name)
		}
		top, bottom = first, last
	}

	left, right := t.area.Start.Col, t.area.End.Col
	if spec.ColumnStart != "" {
		start, ok := t.column(spec.ColumnStart)
		if !ok {
			return nil, notFound("table %s has no column %q", t.name, spec.ColumnStart)
		}
		end := start
		if spec.ColumnEnd != "" {
			if end, ok = t.column(spec.ColumnEnd); !ok {
				return nil, notFound("table %s has no column %q", t.name, spec.ColumnEnd)
			}
		}
		left, right = min(start, end), max(start, end)
	}

	area := value.NewArea(value.Addr{Row: top, Col: left}, value.Addr{Row: bottom, Col: right})
	return value.NewReference(t.sheet, area), nil
}

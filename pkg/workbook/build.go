package workbook

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/tables"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Result is what Build produces.
type Result struct {
	Workbook *engine.Workbook
	Models   *tables.Model
}

// Build creates a workbook from the document. A document locale replaces
// opts.Locale. Formulas are left dirty; callers recalculate.
func (d *Document) Build(opts engine.Options) (*Result, error) {
	if d.Locale != "" {
		loc, err := locale.ForTag(d.Locale)
		if err != nil {
			return nil, err
		}
		opts.Locale = loc
	}
	wb := engine.NewWorkbook(opts)

	for _, sh := range d.Sheets {
		if _, err := wb.AddSheet(sh.Name); err != nil {
			return nil, err
		}
	}

	for _, key := range d.sortedNames() {
		scope, name := splitName(key)
		if err := wb.DefineName(scope, name, d.Names[key]); err != nil {
			return nil, fmt.Errorf("name %s: %w", key, err)
		}
	}

	for _, sh := range d.Sheets {
		if err := d.fillSheet(wb, sh); err != nil {
			return nil, err
		}
	}

	// Tables read header cells, so they follow the cells.
	for _, t := range d.Tables {
		if err := wb.DefineTable(t); err != nil {
			return nil, fmt.Errorf("table %s: %w", t.Name, err)
		}
	}

	models, err := d.buildModels(opts)
	if err != nil {
		return nil, err
	}
	return &Result{Workbook: wb, Models: models}, nil
}

func (d *Document) fillSheet(wb *engine.Workbook, sh Sheet) error {
	addrs := make([]string, 0, len(sh.Cells))
	for a := range sh.Cells {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	prefix := "'" + strings.ReplaceAll(sh.Name, "'", "''") + "'!"
	for _, a := range addrs {
		ref, err := wb.Cell(prefix + a)
		if err != nil {
			return fmt.Errorf("sheet %s: %w", sh.Name, err)
		}
		raw := sh.Cells[a]
		if s, ok := raw.(string); ok && strings.HasPrefix(s, "=") {
			err = wb.SetFormula(ref, s)
		} else {
			var v value.Value
			v, err = literal(raw)
			if err == nil {
				err = wb.SetValue(ref, v)
			}
		}
		if err != nil {
			return fmt.Errorf("sheet %s cell %s: %w", sh.Name, a, err)
		}
	}
	return nil
}

// literal converts a decoded YAML scalar to a cell value.
func literal(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case nil:
		return value.Blank(), nil
	case bool:
		return value.Bool(v), nil
	case string:
		if strings.HasPrefix(v, "#") {
			if k, ok := value.ParseErrorKind(v); ok {
				return value.Error(k), nil
			}
		}
		return value.Text(v), nil
	}
	if n, ok := number(raw); ok {
		return value.Number(n), nil
	}
	return value.Value{}, fmt.Errorf("unsupported cell value %v (%T)", raw, raw)
}

func (d *Document) buildModels(opts engine.Options) (*tables.Model, error) {
	m := tables.NewModel(opts.Telemetry)
	for _, md := range d.Models {
		if err := m.CreateTable(md.Name, md.Columns); err != nil {
			return nil, err
		}
		cols := make([]string, 0, len(md.Definitions))
		for c := range md.Definitions {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			if err := m.AddCalculatedColumnDefinition(md.Name, c, md.Definitions[c]); err != nil {
				return nil, err
			}
		}
		for i, row := range md.Rows {
			vals := make([]value.Value, len(row))
			for j, raw := range row {
				v, err := literal(raw)
				if err != nil {
					return nil, fmt.Errorf("model %s row %d: %w", md.Name, i+1, err)
				}
				vals[j] = v
			}
			if err := m.InsertRow(md.Name, vals); err != nil {
				return nil, fmt.Errorf("model %s row %d: %w", md.Name, i+1, err)
			}
		}
	}
	return m, nil
}

package stores

import (
	"fmt"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Capture records the content of wb. Formula text is written in the
// workbook locale, which the snapshot names.
func Capture(wb *engine.Workbook, label string) *Snapshot {
	snap := &Snapshot{
		WorkbookID: wb.ID(),
		Label:      label,
		Locale:     wb.Locale().Tag.String(),
		Sheets:     wb.Sheets(),
		Names:      wb.NameDefinitions(),
		Tables:     wb.Tables(),
	}

	for _, c := range wb.Contents() {
		rec := CellRecord{
			Sheet: snap.Sheets[c.Cell.Sheet-1],
			Row:   c.Cell.Row,
			Col:   c.Cell.Col,
		}
		switch {
		case c.Formula != "":
			rec.Kind = CellKindFormula
			rec.Formula = c.Formula
		case c.Value.Kind() == value.KindNumber:
			rec.Kind = CellKindNumber
			rec.Number = c.Value.Num()
		case c.Value.Kind() == value.KindBool:
			rec.Kind = CellKindBool
			if c.Value.Truth() {
				rec.Number = 1
			}
		case c.Value.Kind() == value.KindError:
			rec.Kind = CellKindError
			rec.Text = c.Value.Err().String()
		default:
			rec.Kind = CellKindText
			rec.Text = c.Value.Str()
		}
		snap.Cells = append(snap.Cells, rec)
	}
	return snap
}

// Restore builds a workbook from the snapshot. opts.Locale is replaced by
// the snapshot's locale. The workbook still needs a Recalculate before
// formula values can be read.
func (snap *Snapshot) Restore(opts engine.Options) (*engine.Workbook, error) {
	loc, err := locale.ForTag(snap.Locale)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
	}
	opts.Locale = loc
	wb := engine.NewWorkbook(opts)

	sheets := make(map[string]value.SheetID, len(snap.Sheets))
	for _, name := range snap.Sheets {
		id, err := wb.AddSheet(name)
		if err != nil {
			return nil, fmt.Errorf("failed to restore sheet %s: %w", name, err)
		}
		sheets[name] = id
	}

	for _, n := range snap.Names {
		if err := wb.DefineName(n.Scope, n.Name, n.Formula); err != nil {
			return nil, fmt.Errorf("failed to restore name %s: %w", n.Name, err)
		}
	}

	for _, t := range snap.Tables {
		if err := wb.DefineTable(t); err != nil {
			return nil, fmt.Errorf("failed to restore table %s: %w", t.Name, err)
		}
	}

	for _, rec := range snap.Cells {
		id, ok := sheets[rec.Sheet]
		if !ok {
			return nil, fmt.Errorf("cell on unknown sheet %q: %w", rec.Sheet, ErrNotFound)
		}
		ref := value.Cell(id, rec.Row, rec.Col)

		if rec.Kind == CellKindFormula {
			err = wb.SetFormula(ref, rec.Formula)
		} else {
			var v value.Value
			v, err = rec.literal()
			if err == nil {
				err = wb.SetValue(ref, v)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", wb.CellName(ref), err)
		}
	}
	return wb, nil
}

func (rec CellRecord) literal() (value.Value, error) {
	switch rec.Kind {
	case CellKindNumber:
		return value.Number(rec.Number), nil
	case CellKindBool:
		return value.Bool(rec.Number != 0), nil
	case CellKindText:
		return value.Text(rec.Text), nil
	case CellKindError:
		k, ok := value.ParseErrorKind(rec.Text)
		if !ok {
			return value.Value{}, fmt.Errorf("unknown error literal %q", rec.Text)
		}
		return value.Error(k), nil
	}
	return value.Value{}, fmt.Errorf("unknown cell kind %q", rec.Kind)
}

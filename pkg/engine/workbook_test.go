package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func newTestBook(t *testing.T, sheets ...string) *Workbook {
	t.Helper()
	if len(sheets) == 0 {
		sheets = []string{"Sheet1"}
	}
	wb := NewWorkbook(DefaultOptions())
	for _, name := range sheets {
		if _, err := wb.AddSheet(name); err != nil {
			t.Fatalf("AddSheet(%q) failed: %v", name, err)
		}
	}
	return wb
}

func cell(t *testing.T, wb *Workbook, ref string) value.CellRef {
	t.Helper()
	c, err := wb.Cell(ref)
	if err != nil {
		t.Fatalf("Cell(%q) failed: %v", ref, err)
	}
	return c
}

func setNumber(t *testing.T, wb *Workbook, ref string, n float64) {
	t.Helper()
	if err := wb.SetValue(cell(t, wb, ref), value.Number(n)); err != nil {
		t.Fatalf("SetValue(%s) failed: %v", ref, err)
	}
}

func setText(t *testing.T, wb *Workbook, ref, s string) {
	t.Helper()
	if err := wb.SetValue(cell(t, wb, ref), value.Text(s)); err != nil {
		t.Fatalf("SetValue(%s) failed: %v", ref, err)
	}
}

func setFormula(t *testing.T, wb *Workbook, ref, text string) {
	t.Helper()
	if err := wb.SetFormula(cell(t, wb, ref), text); err != nil {
		t.Fatalf("SetFormula(%s, %s) failed: %v", ref, text, err)
	}
}

func recalc(t *testing.T, wb *Workbook, mode Mode) *Report {
	t.Helper()
	report, err := wb.Recalculate(context.Background(), mode)
	if err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	return report
}

func expectNumber(t *testing.T, wb *Workbook, ref string, want float64) {
	t.Helper()
	got := wb.Value(cell(t, wb, ref))
	if got.Kind() != value.KindNumber || got.Num() != want {
		t.Errorf("%s = %v, want %v", ref, got, want)
	}
}

func expectError(t *testing.T, wb *Workbook, ref string, want value.ErrorKind) {
	t.Helper()
	got := wb.Value(cell(t, wb, ref))
	if !got.IsError() || got.Err() != want {
		t.Errorf("%s = %v, want %v", ref, got, want)
	}
}

func TestWorkbook_AddSheet(t *testing.T) {
	wb := newTestBook(t)

	id, err := wb.AddSheet("Data")
	if err != nil {
		t.Fatalf("AddSheet failed: %v", err)
	}
	if id != 2 {
		t.Errorf("expected sheet id 2, got %d", id)
	}

	if _, err := wb.AddSheet("data"); !IsValidation(err) {
		t.Errorf("expected validation error for duplicate sheet, got %v", err)
	}
	if _, err := wb.AddSheet("bad!name"); !IsValidation(err) {
		t.Errorf("expected validation error for invalid name, got %v", err)
	}

	sheets := wb.Sheets()
	if len(sheets) != 2 || sheets[0] != "Sheet1" || sheets[1] != "Data" {
		t.Errorf("unexpected sheets %v", sheets)
	}
}

func TestWorkbook_CellParsing(t *testing.T) {
	wb := newTestBook(t, "Sheet1", "My Sheet")

	c := cell(t, wb, "'My Sheet'!$B$2")
	if c.Sheet != 2 || c.Row != 1 || c.Col != 1 {
		t.Errorf("unexpected cell %v", c)
	}
	if got := wb.CellName(c); got != "'My Sheet'!B2" {
		t.Errorf("CellName = %q", got)
	}
	if c := cell(t, wb, "C3"); c.Sheet != 1 {
		t.Errorf("expected the first sheet, got %d", c.Sheet)
	}
	if _, err := wb.Cell("Nope!A1"); !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestWorkbook_SetValueRejectsArrays(t *testing.T) {
	wb := newTestBook(t)

	arr := value.Row(value.Number(1), value.Number(2))
	err := wb.SetValue(cell(t, wb, "A1"), arr)
	if !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var e *Error
	if !errors.As(err, &e) || e.Cell != "Sheet1!A1" {
		t.Errorf("expected error to name Sheet1!A1, got %v", err)
	}
}

func TestWorkbook_SetFormulaErrors(t *testing.T) {
	wb := newTestBook(t)

	if err := wb.SetFormula(cell(t, wb, "A1"), "=1+"); !IsParse(err) {
		t.Errorf("expected parse error, got %v", err)
	}
	if err := wb.SetFormula(cell(t, wb, "A1"), "=ABS(1, 2, 3)"); !IsCompile(err) {
		t.Errorf("expected compile error, got %v", err)
	}
	if _, ok := wb.Formula(cell(t, wb, "A1")); ok {
		t.Error("a rejected formula must not be stored")
	}
}

func TestWorkbook_FormulaText(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=SUM(1, 2.5)")

	text, ok := wb.Formula(cell(t, wb, "A1"))
	if !ok || text != "=SUM(1,2.5)" {
		t.Errorf("Formula = %q, %v", text, ok)
	}
}

func TestWorkbook_StateTransitions(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setFormula(t, wb, "B1", "=A1+1")

	if s, _ := wb.State(cell(t, wb, "B1")); s != StateDirty {
		t.Errorf("expected dirty before recalc, got %s", s)
	}
	recalc(t, wb, SingleThreaded)
	if s, _ := wb.State(cell(t, wb, "B1")); s != StateClean {
		t.Errorf("expected clean after recalc, got %s", s)
	}

	setNumber(t, wb, "A1", 5)
	if s, _ := wb.State(cell(t, wb, "B1")); s != StateDirty {
		t.Errorf("expected dirty after precedent write, got %s", s)
	}
	if _, ok := wb.State(cell(t, wb, "A1")); ok {
		t.Error("literal cells have no state")
	}
}

func TestWorkbook_ClearFormula(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=2")
	setFormula(t, wb, "B1", "=A1*3")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 6)

	if err := wb.ClearFormula(cell(t, wb, "A1")); err != nil {
		t.Fatalf("ClearFormula failed: %v", err)
	}
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 0)
	if v := wb.Value(cell(t, wb, "A1")); !v.IsBlank() {
		t.Errorf("expected blank A1, got %v", v)
	}
}

func TestWorkbook_ExternalOverride(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setFormula(t, wb, "B1", "=A1*10")
	recalc(t, wb, SingleThreaded)

	if err := wb.SetExternalValue(cell(t, wb, "A1"), value.Number(4)); err != nil {
		t.Fatalf("SetExternalValue failed: %v", err)
	}
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 40)

	wb.ClearExternalValue(cell(t, wb, "A1"))
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 10)
}

func TestWorkbook_ProgramsAreShared(t *testing.T) {
	wb := newTestBook(t)
	for row := 1; row <= 10; row++ {
		setNumber(t, wb, "A"+itoa(row), float64(row))
		setFormula(t, wb, "B"+itoa(row), "=A"+itoa(row)+"*2")
	}
	recalc(t, wb, SingleThreaded)

	if n := wb.ProgramCount(); n != 1 {
		t.Errorf("expected 1 shared program for copied formulas, got %d", n)
	}
	expectNumber(t, wb, "B7", 14)

	for row := 1; row <= 10; row++ {
		if err := wb.ClearFormula(cell(t, wb, "B"+itoa(row))); err != nil {
			t.Fatal(err)
		}
	}
	if n := wb.ProgramCount(); n != 0 {
		t.Errorf("expected programs to be released, got %d", n)
	}
}

func TestWorkbook_DefinedNames(t *testing.T) {
	wb := newTestBook(t, "Sheet1", "Sheet2")

	if err := wb.DefineName("", "Rate", "=0.5"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	if err := wb.DefineName("Sheet2", "Rate", "=2"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	setFormula(t, wb, "Sheet1!A1", "=Rate*10")
	setFormula(t, wb, "Sheet2!A1", "=Rate*10")
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "Sheet1!A1", 5)
	expectNumber(t, wb, "Sheet2!A1", 20)

	if err := wb.DefineName("", "Rate", "=0.1"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "Sheet1!A1", 1)

	if err := wb.RemoveName("Sheet2", "Rate"); err != nil {
		t.Fatalf("RemoveName failed: %v", err)
	}
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "Sheet2!A1", 1)

	names := wb.Names()
	if len(names) != 1 || names[0] != "Rate" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestWorkbook_NameRangesTrackPrecedents(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setNumber(t, wb, "A2", 2)
	if err := wb.DefineName("", "Inputs", "=Sheet1!$A$1:$A$2"); err != nil {
		t.Fatalf("DefineName failed: %v", err)
	}
	setFormula(t, wb, "B1", "=SUM(Inputs)")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 3)

	setNumber(t, wb, "A2", 10)
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "B1", 11)
}

func TestWorkbook_InvalidNames(t *testing.T) {
	wb := newTestBook(t)

	for _, name := range []string{"", "A1", "TRUE", "R1C1", "1abc", "has space"} {
		if err := wb.DefineName("", name, "=1"); !IsValidation(err) {
			t.Errorf("DefineName(%q): expected validation error, got %v", name, err)
		}
	}
	if err := wb.DefineName("Nope", "X", "=1"); !IsNotFound(err) {
		t.Errorf("expected not found for unknown scope, got %v", err)
	}
}

func TestWorkbook_RecursiveNamedLambda(t *testing.T) {
	wb := newTestBook(t)
	if err := wb.DefineName("", "FACT", "=LAMBDA(n, IF(n<=1, 1, n*FACT(n-1)))"); err != nil {
		t.Fatal(err)
	}
	if err := wb.DefineName("", "F", "=LAMBDA(n, F(n))"); err != nil {
		t.Fatal(err)
	}
	setFormula(t, wb, "A1", "=FACT(5)")
	setFormula(t, wb, "A2", "=F(1)")
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "A1", 120)
	expectError(t, wb, "A2", value.ErrCalc)
}

func TestWorkbook_StructuredReferences(t *testing.T) {
	wb := newTestBook(t)
	setText(t, wb, "A1", "Item")
	setText(t, wb, "B1", "Qty")
	setText(t, wb, "A2", "bolt")
	setText(t, wb, "A3", "nut")
	setText(t, wb, "A4", "washer")
	setNumber(t, wb, "B2", 2)
	setNumber(t, wb, "B3", 3)
	setNumber(t, wb, "B4", 4)

	err := wb.DefineTable(TableDefinition{Name: "Orders", Sheet: "Sheet1", Range: "A1:B4", Header: true})
	if err != nil {
		t.Fatalf("DefineTable failed: %v", err)
	}
	setFormula(t, wb, "D1", "=SUM(Orders[Qty])")
	setFormula(t, wb, "C3", "=Orders[@Qty]*10")
	setFormula(t, wb, "D2", "=ROWS(Orders[#All])")
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "D1", 9)
	expectNumber(t, wb, "C3", 30)
	expectNumber(t, wb, "D2", 4)

	setNumber(t, wb, "B3", 30)
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 36)
	expectNumber(t, wb, "C3", 300)

	tables := wb.Tables()
	if len(tables) != 1 || tables[0].Columns[1] != "Qty" {
		t.Errorf("unexpected tables %+v", tables)
	}
}

func TestWorkbook_DefineTableRejectsOverlap(t *testing.T) {
	wb := newTestBook(t)
	if err := wb.DefineTable(TableDefinition{Name: "T1", Sheet: "Sheet1", Range: "A1:B4"}); err != nil {
		t.Fatal(err)
	}
	err := wb.DefineTable(TableDefinition{Name: "T2", Sheet: "Sheet1", Range: "B2:C5"})
	if !IsValidation(err) {
		t.Errorf("expected validation error for overlap, got %v", err)
	}
	err = wb.DefineTable(TableDefinition{Name: "T3", Sheet: "Sheet1", Range: "E1:F2", Columns: []string{"a", "A"}})
	if !IsValidation(err) {
		t.Errorf("expected validation error for duplicate columns, got %v", err)
	}
}

func TestWorkbook_DependencyDOT(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setFormula(t, wb, "B1", "=A1+1")
	setFormula(t, wb, "C1", "=B1+1")

	dot := wb.DependencyDOT()
	for _, want := range []string{"digraph Dependencies", "cluster_level_0", "cluster_level_1", `"Sheet1!B1" -> "Sheet1!C1"`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q:\n%s", want, dot)
		}
	}
}

func itoa(n int) string {
	return value.FormatNumber(float64(n))
}


func TestWorkbook_Contents(t *testing.T) {
	wb := newTestBook(t, "Sheet1", "Data")
	setFormula(t, wb, "Sheet1!B1", "=SEQUENCE(2)")
	setNumber(t, wb, "Sheet1!A2", 3)
	setText(t, wb, "Data!A1", "x")
	recalc(t, wb, SingleThreaded)

	got := wb.Contents()
	if len(got) != 3 {
		t.Fatalf("Expected 3 stored cells without spilled values, got %d", len(got))
	}
	if got[0].Formula != "=SEQUENCE(2)" || got[0].Cell != cell(t, wb, "Sheet1!B1") {
		t.Errorf("Expected the formula first, got %+v", got[0])
	}
	if got[1].Formula != "" || got[1].Value.Num() != 3 {
		t.Errorf("Expected the literal 3 second, got %+v", got[1])
	}
	if got[2].Value.Str() != "x" {
		t.Errorf("Expected Data!A1 last, got %+v", got[2])
	}
}

func TestWorkbook_NameDefinitions(t *testing.T) {
	wb := newTestBook(t, "Sheet1", "Data")
	if err := wb.DefineName("", "Rate", "=0.2"); err != nil {
		t.Fatal(err)
	}
	if err := wb.DefineName("Data", "Local", "=Data!A1"); err != nil {
		t.Fatal(err)
	}

	defs := wb.NameDefinitions()
	if len(defs) != 2 {
		t.Fatalf("Expected 2 names, got %+v", defs)
	}
	if defs[0].Scope != "" || defs[0].Name != "Rate" || defs[0].Formula != "=0.2" {
		t.Errorf("Expected workbook name Rate first, got %+v", defs[0])
	}
	if defs[1].Scope != "Data" || defs[1].Name != "Local" {
		t.Errorf("Expected sheet name Data!Local, got %+v", defs[1])
	}
}

func TestWorkbook_ArrayCeilingIsPerWorkbook(t *testing.T) {
	for _, mode := range []Mode{SingleThreaded, Parallel} {
		t.Run(mode.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.MaxArrayCells = 4
			small := NewWorkbook(opts)
			if _, err := small.AddSheet("Sheet1"); err != nil {
				t.Fatal(err)
			}
			wide := newTestBook(t)

			for _, wb := range []*Workbook{small, wide} {
				setFormula(t, wb, "A1", "=SUM(SEQUENCE(3,3))")
				setFormula(t, wb, "B1", "=SEQUENCE(2,2)")
			}
			recalc(t, wide, mode)
			recalc(t, small, mode)

			expectError(t, small, "A1", value.ErrNum)
			expectNumber(t, small, "C2", 4)
			expectNumber(t, wide, "A1", 45)
			expectNumber(t, wide, "C2", 4)
			if value.MaxArrayCells() != value.DefaultMaxArrayCells {
				t.Errorf("Expected the process ceiling to stay at %d, got %d", value.DefaultMaxArrayCells, value.MaxArrayCells())
			}
		})
	}
}

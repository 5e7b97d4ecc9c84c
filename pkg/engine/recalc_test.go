package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gridcalc/gridcalc/pkg/value"
)

func TestRecalculate_SumIf(t *testing.T) {
	wb := newTestBook(t)
	for i, n := range []float64{1, 2, 3, 4} {
		setNumber(t, wb, fmt.Sprintf("A%d", i+1), n)
		setNumber(t, wb, fmt.Sprintf("B%d", i+1), n*10)
	}
	setFormula(t, wb, "C1", `=SUMIF(A1:A4, ">2", B1:B4)`)
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "C1", 70)
}

func TestRecalculate_IfsWithoutMatch(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=IFS(FALSE, 1, FALSE, 2)")
	recalc(t, wb, SingleThreaded)

	expectError(t, wb, "A1", value.ErrNA)
}

func TestRecalculate_IsIncremental(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setFormula(t, wb, "B1", "=A1*2")
	setFormula(t, wb, "C1", "=B1+1")
	setFormula(t, wb, "D1", "=5")

	first := recalc(t, wb, SingleThreaded)
	if first.Evaluated != 3 {
		t.Errorf("expected 3 evaluations, got %d", first.Evaluated)
	}

	again := recalc(t, wb, SingleThreaded)
	if again.Evaluated != 0 || len(again.Changed) != 0 {
		t.Errorf("a clean workbook must not re-evaluate: %+v", again)
	}

	setNumber(t, wb, "A1", 10)
	third := recalc(t, wb, SingleThreaded)
	if third.Dirty != 2 || third.Evaluated != 2 {
		t.Errorf("expected only B1 and C1 to run, got dirty=%d evaluated=%d", third.Dirty, third.Evaluated)
	}
	expectNumber(t, wb, "C1", 21)
	if len(third.Changed) != 2 {
		t.Errorf("expected 2 changed cells, got %v", third.Changed)
	}
}

func TestRecalculate_EvaluatesPrecedentsFirst(t *testing.T) {
	wb := newTestBook(t)
	// Cell order is the reverse of dependency order.
	setFormula(t, wb, "A1", "=A2+1")
	setFormula(t, wb, "A2", "=A3+1")
	setFormula(t, wb, "A3", "=1")

	report := recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "A1", 3)
	if report.Evaluated != 3 {
		t.Errorf("each cell should run once, got %d evaluations", report.Evaluated)
	}
}

func TestRecalculate_Spill(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=SEQUENCE(2, 2, 1, 1)")
	setFormula(t, wb, "D1", "=SUM(A1#)")
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "A1", 1)
	expectNumber(t, wb, "B1", 2)
	expectNumber(t, wb, "A2", 3)
	expectNumber(t, wb, "B2", 4)
	expectNumber(t, wb, "D1", 10)

	origin := cell(t, wb, "A1")
	extent, ok := wb.SpillExtent(origin)
	if !ok || extent.First() != value.NewArea(value.Addr{}, value.Addr{Row: 1, Col: 1}) {
		t.Errorf("unexpected spill extent %v", extent)
	}
	if got, ok := wb.SpillOrigin(cell(t, wb, "B2")); !ok || got != origin {
		t.Errorf("SpillOrigin(B2) = %v, %v", got, ok)
	}
	if _, ok := wb.SpillOrigin(cell(t, wb, "C3")); ok {
		t.Error("C3 is outside the spill")
	}
}

func TestRecalculate_SpillShrinks(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "C1", 3)
	setFormula(t, wb, "A1", "=SEQUENCE(C1)")
	setFormula(t, wb, "D1", "=COUNT(A1:A5)")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 3)

	setNumber(t, wb, "C1", 2)
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 2)
	if v := wb.Value(cell(t, wb, "A3")); !v.IsBlank() {
		t.Errorf("A3 should be released, got %v", v)
	}
}

func TestRecalculate_BlockedSpill(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=SEQUENCE(3)")
	setNumber(t, wb, "A2", 5)

	report := recalc(t, wb, SingleThreaded)
	expectError(t, wb, "A1", value.ErrSpill)
	expectNumber(t, wb, "A2", 5)
	if len(report.SpillsBlocked) != 1 || report.SpillsBlocked[0] != cell(t, wb, "A1") {
		t.Errorf("expected A1 to be reported blocked, got %v", report.SpillsBlocked)
	}

	if err := wb.ClearCell(cell(t, wb, "A2")); err != nil {
		t.Fatalf("ClearCell failed: %v", err)
	}
	report = recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "A1", 1)
	expectNumber(t, wb, "A2", 2)
	expectNumber(t, wb, "A3", 3)
	if len(report.SpillsBlocked) != 0 {
		t.Errorf("expected no blocked spills, got %v", report.SpillsBlocked)
	}
}

func TestRecalculate_WriteIntoSpillBlocksIt(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=SEQUENCE(3)")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "A3", 3)

	setFormula(t, wb, "A3", "=7")
	recalc(t, wb, SingleThreaded)
	expectError(t, wb, "A1", value.ErrSpill)
	expectNumber(t, wb, "A3", 7)
	if v := wb.Value(cell(t, wb, "A2")); !v.IsBlank() {
		t.Errorf("A2 should be released, got %v", v)
	}
}

func TestRecalculate_SpillOffTheSheet(t *testing.T) {
	opts := DefaultOptions()
	opts.Rows = 4
	wb := NewWorkbook(opts)
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	setFormula(t, wb, "A3", "=SEQUENCE(5)")
	recalc(t, wb, SingleThreaded)

	expectError(t, wb, "A3", value.ErrSpill)
}

func TestRecalculate_SpillBlockedByExternalOverride(t *testing.T) {
	wb := newTestBook(t)
	if err := wb.SetExternalValue(cell(t, wb, "B1"), value.Text("pinned")); err != nil {
		t.Fatal(err)
	}
	setFormula(t, wb, "A1", "=SEQUENCE(1, 3)")
	recalc(t, wb, SingleThreaded)
	expectError(t, wb, "A1", value.ErrSpill)

	wb.ClearExternalValue(cell(t, wb, "B1"))
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "C1", 3)
}

func TestRecalculate_Cycle(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=B1+1")
	setFormula(t, wb, "B1", "=A1+1")
	setFormula(t, wb, "C1", "=A1*2")
	setFormula(t, wb, "D1", "=42")

	report := recalc(t, wb, SingleThreaded)
	if !IsCycle(report.Err()) {
		t.Fatalf("expected cycle error, got %v", report.Err())
	}
	if len(report.Cycles) != 1 {
		t.Fatalf("expected one cycle, got %d", len(report.Cycles))
	}
	if !strings.Contains(report.Cycles[0].Message, "Sheet1!A1 -> Sheet1!B1 -> Sheet1!A1") {
		t.Errorf("unexpected cycle message %q", report.Cycles[0].Message)
	}
	expectError(t, wb, "A1", value.ErrCalc)
	expectError(t, wb, "B1", value.ErrCalc)
	expectError(t, wb, "C1", value.ErrCalc)
	expectNumber(t, wb, "D1", 42)
	if s, _ := wb.State(cell(t, wb, "A1")); s != StateError {
		t.Errorf("expected error state, got %s", s)
	}

	setFormula(t, wb, "B1", "=5")
	report = recalc(t, wb, SingleThreaded)
	if report.Err() != nil {
		t.Errorf("cycle should be gone: %v", report.Err())
	}
	expectNumber(t, wb, "A1", 6)
	expectNumber(t, wb, "C1", 12)
}

func TestRecalculate_SelfReference(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=A1+1")

	report := recalc(t, wb, SingleThreaded)
	if len(report.Cycles) != 1 {
		t.Fatalf("expected one cycle, got %v", report.Cycles)
	}
	var e *Error
	if !errors.As(report.Err(), &e) || e.Cell != "Sheet1!A1" {
		t.Errorf("expected cycle at Sheet1!A1, got %v", report.Err())
	}
	expectError(t, wb, "A1", value.ErrCalc)
}

func TestRecalculate_DynamicReferences(t *testing.T) {
	wb := newTestBook(t)
	setNumber(t, wb, "A1", 1)
	setNumber(t, wb, "B1", 2)
	setText(t, wb, "C1", "A1")
	setFormula(t, wb, "D1", "=INDIRECT(C1)*10")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 10)

	if deps := wb.Dependents(cell(t, wb, "A1")); len(deps) != 1 || deps[0] != cell(t, wb, "D1") {
		t.Errorf("expected D1 to depend on A1, got %v", deps)
	}

	setText(t, wb, "C1", "B1")
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 20)

	if deps := wb.Dependents(cell(t, wb, "A1")); len(deps) != 0 {
		t.Errorf("stale dynamic edge on A1: %v", deps)
	}

	setNumber(t, wb, "B1", 7)
	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "D1", 70)
}

func TestRecalculate_DynamicPrecedentEvaluatedFirst(t *testing.T) {
	wb := newTestBook(t)
	setText(t, wb, "A1", "C1")
	// B1 sorts before C1 and only finds it at run time.
	setFormula(t, wb, "B1", "=INDIRECT(A1)+1")
	setFormula(t, wb, "C1", "=100")
	recalc(t, wb, SingleThreaded)

	expectNumber(t, wb, "B1", 101)
}

func TestRecalculate_VolatileAfterMutation(t *testing.T) {
	clock := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	opts := DefaultOptions()
	opts.Clock = func() time.Time { return clock }
	wb := NewWorkbook(opts)
	if _, err := wb.AddSheet("Sheet1"); err != nil {
		t.Fatal(err)
	}
	setFormula(t, wb, "A1", "=NOW()")
	recalc(t, wb, SingleThreaded)
	before := wb.Value(cell(t, wb, "A1"))

	clock = clock.Add(24 * time.Hour)
	if r := recalc(t, wb, SingleThreaded); r.Evaluated != 0 {
		t.Errorf("volatile cells wait for a mutation, got %d evaluations", r.Evaluated)
	}

	setNumber(t, wb, "Z1", 1)
	recalc(t, wb, SingleThreaded)
	after := wb.Value(cell(t, wb, "A1"))
	if after.Num()-before.Num() != 1 {
		t.Errorf("expected NOW to advance one day, got %v -> %v", before, after)
	}
}

func TestRecalculate_ParallelMatchesSingle(t *testing.T) {
	build := func() *Workbook {
		wb := newTestBook(t, "Sheet1", "Data")
		for row := 1; row <= 20; row++ {
			setNumber(t, wb, fmt.Sprintf("Data!A%d", row), float64(row))
			setFormula(t, wb, fmt.Sprintf("B%d", row), fmt.Sprintf("=Data!A%d*2", row))
			setFormula(t, wb, fmt.Sprintf("C%d", row), fmt.Sprintf("=B%d+SUM(Data!A$1:A%d)", row, row))
		}
		setFormula(t, wb, "D1", "=SUM(C1:C20)")
		setFormula(t, wb, "D2", "=SEQUENCE(3)")
		setFormula(t, wb, "E1", "=SUM(D2#)+D1")
		setText(t, wb, "F1", "C5")
		setFormula(t, wb, "F2", "=INDIRECT(F1)")
		if err := wb.DefineName("", "Total", "=Sheet1!$D$1"); err != nil {
			t.Fatal(err)
		}
		setFormula(t, wb, "F3", "=Total/2")
		return wb
	}

	single, parallel := build(), build()
	recalc(t, single, SingleThreaded)
	report := recalc(t, parallel, Parallel)
	if report.Levels == 0 {
		t.Error("expected the parallel pass to build levels")
	}

	for _, ref := range []string{"B20", "C20", "D1", "D2", "D3", "D4", "E1", "F2", "F3"} {
		a := single.Value(cell(t, single, ref))
		b := parallel.Value(cell(t, parallel, ref))
		if !value.Identical(a, b) {
			t.Errorf("%s: single=%v parallel=%v", ref, a, b)
		}
	}

	// Incremental parallel pass.
	setNumber(t, single, "Data!A1", 100)
	setNumber(t, parallel, "Data!A1", 100)
	recalc(t, single, SingleThreaded)
	recalc(t, parallel, Parallel)
	for _, ref := range []string{"C1", "C20", "D1", "E1", "F3"} {
		a := single.Value(cell(t, single, ref))
		b := parallel.Value(cell(t, parallel, ref))
		if !value.Identical(a, b) {
			t.Errorf("after edit %s: single=%v parallel=%v", ref, a, b)
		}
	}
}

func TestRecalculate_ParallelCycle(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=B1")
	setFormula(t, wb, "B1", "=A1")
	setFormula(t, wb, "C1", "=1+1")

	report := recalc(t, wb, Parallel)
	if !IsCycle(report.Err()) {
		t.Errorf("expected cycle, got %v", report.Err())
	}
	expectError(t, wb, "A1", value.ErrCalc)
	expectNumber(t, wb, "C1", 2)
}

func TestRecalculate_CancelledContext(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wb.Recalculate(ctx, SingleThreaded)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s, _ := wb.State(cell(t, wb, "A1")); s != StateDirty {
		t.Errorf("expected A1 to stay dirty, got %s", s)
	}

	recalc(t, wb, SingleThreaded)
	expectNumber(t, wb, "A1", 1)
}

func TestRecalculate_ReportCountsPaths(t *testing.T) {
	wb := newTestBook(t)
	setFormula(t, wb, "A1", "=1+2")
	setFormula(t, wb, "A2", "=LET(x, 2, x*A1)")

	report := recalc(t, wb, SingleThreaded)
	if report.VM+report.Tree != report.Evaluated {
		t.Errorf("path counts %d+%d do not add up to %d", report.VM, report.Tree, report.Evaluated)
	}
	if report.PassID == "" {
		t.Error("expected a pass id")
	}
	expectNumber(t, wb, "A2", 6)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"single", SingleThreaded, false},
		{"parallel", Parallel, false},
		{"PARALLEL", Parallel, false},
		{"threads", SingleThreaded, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseMode(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.err && got != tt.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package engine_test

import (
	"context"
	"fmt"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/value"
)

func Example() {
	wb := engine.NewWorkbook(engine.DefaultOptions())
	sheet, _ := wb.AddSheet("Sheet1")

	_ = wb.SetValue(value.Cell(sheet, 0, 0), value.Number(2))
	_ = wb.SetFormula(value.Cell(sheet, 0, 1), "=A1*21")

	report, err := wb.Recalculate(context.Background(), engine.SingleThreaded)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(wb.Value(value.Cell(sheet, 0, 1)), report.Evaluated)
	// Output: 42 1
}

func ExampleWorkbook_SpillExtent() {
	wb := engine.NewWorkbook(engine.DefaultOptions())
	sheet, _ := wb.AddSheet("Sheet1")

	origin := value.Cell(sheet, 0, 0)
	_ = wb.SetFormula(origin, "=SEQUENCE(3)")
	_, _ = wb.Recalculate(context.Background(), engine.SingleThreaded)

	extent, _ := wb.SpillExtent(origin)
	fmt.Println(extent, wb.Value(value.Cell(sheet, 2, 0)))
	// Output: 1!A1:A3 3
}

func ExampleReport_Err() {
	wb := engine.NewWorkbook(engine.DefaultOptions())
	sheet, _ := wb.AddSheet("Sheet1")

	_ = wb.SetFormula(value.Cell(sheet, 0, 0), "=B1+1")
	_ = wb.SetFormula(value.Cell(sheet, 0, 1), "=A1+1")

	report, _ := wb.Recalculate(context.Background(), engine.SingleThreaded)
	fmt.Println(report.Err())
	fmt.Println(wb.Value(value.Cell(sheet, 0, 0)))
	// Output:
	// [CYCLE] circular reference: Sheet1!A1 -> Sheet1!B1 -> Sheet1!A1 (cell=Sheet1!A1, operation=Recalculate)
	// #CALC!
}

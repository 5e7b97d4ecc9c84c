// Package engine holds workbook state and recalculates it incrementally.
//
// # Overview
//
// A Workbook is a set of sheets holding literal values and formulas.
// Every mutation marks the formulas that may read the changed cell dirty;
// Recalculate evaluates the dirty cells and leaves the graph clean:
//
//	wb := engine.NewWorkbook(engine.DefaultOptions())
//	sheet, _ := wb.AddSheet("Sheet1")
//	_ = wb.SetValue(value.Cell(sheet, 0, 0), value.Number(2))
//	_ = wb.SetFormula(value.Cell(sheet, 0, 1), "=A1*21")
//	report, err := wb.Recalculate(ctx, engine.SingleThreaded)
//
// # Dependencies
//
// Static precedents come from the compiled formula. References that are
// only known at run time, such as INDIRECT, OFFSET, defined names and
// lambdas, are recorded as dynamic edges when the cell is evaluated and
// replaced on every evaluation.
//
// # Recalculation Modes
//
//   - SingleThreaded visits dirty cells depth-first, evaluating
//     precedents first and detecting cycles on the visit stack.
//   - Parallel groups dirty cells into dependency levels and evaluates
//     each level on a worker pool. Cells with dynamic reads, and anything
//     a spill change invalidates, are finished single-threaded.
//
// Both modes produce the same values.
//
// # Spills
//
// A formula returning an array spills it into the cells right and below
// its origin. A spill blocked by a literal, a formula, an external
// override or another spill shows #SPILL! in the origin and spills again
// once the blocker is cleared.
//
// # Errors
//
// Mutations return *Error values carrying a code such as PARSE_ERROR or
// VALIDATION. Circular references surface in the Report as CYCLE errors
// and their cells show #CALC!.
package engine

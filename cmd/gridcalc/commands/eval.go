package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridcalc/gridcalc/pkg/engine"
)

const scratchSheet = "Eval"

func newEvalCommand() *cobra.Command {
	var (
		file string
		at   string
	)

	cmd := &cobra.Command{
		Use:   "eval <formula>",
		Short: "Evaluate a single formula",
		Long: `Evaluate a formula and print its value.

Without --file the formula runs in an empty workbook. With --file the
workbook document is loaded and recalculated first, and the formula is
written to a scratch sheet named Eval unless --at names a cell.

A formula that returns an array prints the spilled grid, one row per line.`,
		Example: `  # Evaluate a constant formula
  gridcalc eval "=SUM(1,2,3)"

  # Evaluate against a workbook document
  gridcalc eval --file book.yaml "=SUM(Sheet1!A1:A10)"

  # Evaluate in a sheet of the workbook
  gridcalc eval --file book.yaml --at Sheet1!Z1 "=A1*2"

  # German formula text
  gridcalc eval -c german.yaml "=SUMME(1;0,5)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cmd, "")
			if err != nil {
				return err
			}
			defer e.close(ctx)

			var wb *engine.Workbook
			if file != "" {
				res, err := e.load(ctx, file)
				if err != nil {
					return err
				}
				wb = res.Workbook
				if _, err := e.recalc(ctx, wb); err != nil {
					return err
				}
				if at == "" {
					if _, err := wb.AddSheet(scratchSheet); err != nil {
						return err
					}
				}
			} else {
				if wb, err = e.newWorkbook(scratchSheet); err != nil {
					return err
				}
			}
			if at == "" {
				at = scratchSheet + "!A1"
			}

			cell, err := wb.Cell(at)
			if err != nil {
				return err
			}
			e.log.WithCell(wb.CellName(cell)).WithField("formula", args[0]).Debug("Evaluating formula")

			if err := wb.SetFormula(cell, args[0]); err != nil {
				return err
			}
			if _, err := e.recalc(ctx, wb); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if ext, ok := wb.SpillExtent(cell); ok {
				return writeGrid(out, wb, cell.Sheet, ext.First())
			}
			v := wb.Value(cell)
			if jsonOutput {
				return writeJSON(out, cellResult{
					Cell:    wb.CellName(cell),
					Formula: args[0],
					Kind:    v.Kind().String(),
					Value:   v.String(),
				})
			}
			_, err = fmt.Fprintln(out, v.String())
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "workbook document to evaluate against")
	cmd.Flags().StringVar(&at, "at", "", "cell to write the formula to, e.g. Sheet1!Z1")

	return cmd
}

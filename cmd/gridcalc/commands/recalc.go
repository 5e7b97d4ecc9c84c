package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/stores"
	"github.com/gridcalc/gridcalc/pkg/tables"
)

func newRecalcCommand() *cobra.Command {
	var (
		only   string
		dbPath string
		models bool
	)

	cmd := &cobra.Command{
		Use:   "recalc <file>",
		Short: "Load a workbook document and recalculate it",
		Long: `Load a workbook document, run one full recalculation pass and print
the value of every formula cell.

The pass summary is logged to stderr. Circular references and blocked
spills are reported as warnings; they do not fail the command.`,
		Example: `  # Recalculate and print every formula cell
  gridcalc recalc book.yaml

  # Only cells on Sheet1 column B, in parallel mode
  gridcalc recalc --mode parallel --only 'Sheet1!B*' book.yaml

  # Record the pass in a snapshot database
  gridcalc recalc --db gridcalc.db book.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter, err := compileFilter(only)
			if err != nil {
				return err
			}

			e, err := newEnv(cmd, "")
			if err != nil {
				return err
			}
			defer e.close(ctx)

			res, err := e.load(ctx, args[0])
			if err != nil {
				return err
			}
			report, err := e.recalc(ctx, res.Workbook)
			if err != nil {
				return err
			}

			if dbPath != "" {
				if err := recordPass(ctx, dbPath, res.Workbook, report); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if err := writeResults(out, formulaResults(res.Workbook, filter)); err != nil {
				return err
			}
			if models {
				return writeModels(out, res.Models)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "glob over Sheet!A1 cell names to print, case-insensitive")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to record the pass in")
	cmd.Flags().BoolVar(&models, "models", false, "also print calculated-column model tables")

	return cmd
}

// openStore opens and migrates the snapshot database at path.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func recordPass(ctx context.Context, path string, wb *engine.Workbook, report *engine.Report) error {
	store, err := openStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordPass(ctx, wb.ID(), report)
}

// writeModels prints each model table with its header row.
func writeModels(w io.Writer, m *tables.Model) error {
	for _, name := range m.Tables() {
		cols, err := m.Columns(name)
		if err != nil {
			return err
		}
		rows, err := m.Rows(name)
		if err != nil {
			return err
		}

		if jsonOutput {
			records := make([]map[string]string, len(rows))
			for i, row := range rows {
				rec := make(map[string]string, len(cols))
				for j, c := range cols {
					rec[c.Name] = row[j].String()
				}
				records[i] = rec
			}
			if err := writeJSON(w, map[string]any{"table": name, "rows": records}); err != nil {
				return err
			}
			continue
		}

		header := make([]string, len(cols))
		for i, c := range cols {
			header[i] = c.Name
		}
		fmt.Fprintf(w, "\n%s\n%s\n", name, strings.Join(header, "\t"))
		for _, row := range rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = v.String()
			}
			fmt.Fprintln(w, strings.Join(cells, "\t"))
		}
	}
	return nil
}

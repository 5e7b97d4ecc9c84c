package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gobwas/glob"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// cellResult is one formula cell as printed by recalc and watch.
type cellResult struct {
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
	Spill   string `json:"spill,omitempty"`
}

// compileFilter compiles an --only pattern. Matching ignores case; an
// empty pattern matches everything.
func compileFilter(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(strings.ToUpper(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid --only pattern %q: %w", pattern, err)
	}
	return g, nil
}

// formulaResults lists the formula cells of wb that match filter.
func formulaResults(wb *engine.Workbook, filter glob.Glob) []cellResult {
	var out []cellResult
	for _, c := range wb.Contents() {
		if c.Formula == "" {
			continue
		}
		name := wb.CellName(c.Cell)
		if filter != nil && !filter.Match(strings.ToUpper(name)) {
			continue
		}
		v := wb.Value(c.Cell)
		res := cellResult{
			Cell:    name,
			Formula: c.Formula,
			Kind:    v.Kind().String(),
			Value:   v.String(),
		}
		if ext, ok := wb.SpillExtent(c.Cell); ok {
			res.Spill = ext.First().String()
		}
		out = append(out, res)
	}
	return out
}

func writeResults(w io.Writer, results []cellResult) error {
	if jsonOutput {
		return writeJSON(w, results)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CELL\tVALUE\tFORMULA\tSPILL")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Cell, r.Value, r.Formula, r.Spill)
	}
	return tw.Flush()
}

// writeGrid prints the cells of area row by row, tab separated.
func writeGrid(w io.Writer, wb *engine.Workbook, sheet value.SheetID, area value.Area) error {
	if jsonOutput {
		rows := make([][]string, 0, area.End.Row-area.Start.Row+1)
		for r := area.Start.Row; r <= area.End.Row; r++ {
			row := make([]string, 0, area.End.Col-area.Start.Col+1)
			for c := area.Start.Col; c <= area.End.Col; c++ {
				row = append(row, wb.Value(value.Cell(sheet, r, c)).String())
			}
			rows = append(rows, row)
		}
		return writeJSON(w, rows)
	}
	for r := area.Start.Row; r <= area.End.Row; r++ {
		cells := make([]string, 0, area.End.Col-area.Start.Col+1)
		for c := area.Start.Col; c <= area.End.Col; c++ {
			cells = append(cells, wb.Value(value.Cell(sheet, r, c)).String())
		}
		if _, err := fmt.Fprintln(w, strings.Join(cells, "\t")); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

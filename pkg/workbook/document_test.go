package workbook

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

const salesDoc = `
locale: en-US
sheets:
  - name: Sheet1
    cells:
      A1: 1
      A2: 2.5
      A3: true
      A4: "#N/A"
      A5: plain text
      B1: "=SEQUENCE(2,2)"
      C4: "=SUM(Sales[Amount])*Rate"
  - name: Data
    cells:
      A1: Region
      B1: Amount
      A2: North
      B2: 100
      A3: South
      B3: 50
names:
  Rate: "=0.5"
  Data!Local: "=Data!B2"
tables:
  - name: Sales
    sheet: Data
    range: A1:B3
    header: true
models:
  - name: Orders
    columns:
      - name: Qty
      - name: Price
      - name: Total
        calculated: true
    definitions:
      Total: "[Qty] * [Price]"
    rows:
      - [2, 5]
      - [3, 1.5]
`

func build(t *testing.T, src string) *Result {
	t.Helper()
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	res, err := doc.Build(engine.Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := res.Workbook.Recalculate(context.Background(), engine.SingleThreaded); err != nil {
		t.Fatalf("Recalculate failed: %v", err)
	}
	return res
}

func valueAt(t *testing.T, wb *engine.Workbook, ref string) value.Value {
	t.Helper()
	c, err := wb.Cell(ref)
	if err != nil {
		t.Fatalf("Cell(%s) failed: %v", ref, err)
	}
	return wb.Value(c)
}

func TestDocument_Build(t *testing.T) {
	res := build(t, salesDoc)
	wb := res.Workbook

	tests := []struct {
		ref  string
		want value.Value
	}{
		{"Sheet1!A1", value.Number(1)},
		{"Sheet1!A2", value.Number(2.5)},
		{"Sheet1!A3", value.Bool(true)},
		{"Sheet1!A4", value.Error(value.ErrNA)},
		{"Sheet1!A5", value.Text("plain text")},
		{"Sheet1!B2", value.Number(3)},
		{"Sheet1!C2", value.Number(4)},
		{"Sheet1!C4", value.Number(75)},
		{"Data!A2", value.Text("North")},
	}
	for _, tt := range tests {
		if got := valueAt(t, wb, tt.ref); !value.Identical(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.ref, tt.want, got)
		}
	}

	if names := wb.Names(); len(names) != 2 {
		t.Errorf("Expected 2 names, got %v", names)
	}
	if tbls := wb.Tables(); len(tbls) != 1 || tbls[0].Columns[1] != "Amount" {
		t.Errorf("Expected table Sales with header columns, got %+v", tbls)
	}

	total, err := res.Models.Column("Orders", "Total")
	if err != nil {
		t.Fatalf("Column failed: %v", err)
	}
	if len(total) != 2 || total[0].Num() != 10 || total[1].Num() != 4.5 {
		t.Errorf("Expected Total [10 4.5], got %v", total)
	}
}

func TestDocument_Locale(t *testing.T) {
	res := build(t, `
locale: de-DE
sheets:
  - name: Blatt1
    cells:
      A1: 2
      A2: "=SUMME(A1;0,5)"
`)
	if res.Workbook.Locale() != locale.German() {
		t.Fatalf("Expected German locale, got %v", res.Workbook.Locale().Tag)
	}
	if got := valueAt(t, res.Workbook, "Blatt1!A2"); got.Num() != 2.5 {
		t.Errorf("Expected 2.5, got %v", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no sheets", `locale: en-US`, "Sheets"},
		{"unnamed sheet", "sheets:\n  - cells: {A1: 1}\n", "Name"},
		{"duplicate sheet", "sheets:\n  - name: S\n  - name: s\n", "appears twice"},
		{"unknown field", "sheets:\n  - name: S\ncolour: red\n", "colour"},
		{"bad locale", "locale: \"not a tag\"\nsheets:\n  - name: S\n", "Locale"},
		{"bad yaml", "sheets: [", "invalid workbook document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDocument_BuildErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad address", "sheets:\n  - name: S\n    cells:\n      ZZZZZ0: 1\n"},
		{"bad formula", "sheets:\n  - name: S\n    cells:\n      A1: \"=SUM(\"\n"},
		{"list value", "sheets:\n  - name: S\n    cells:\n      A1: [1, 2]\n"},
		{"failing row", "sheets:\n  - name: S\nmodels:\n  - name: M\n    columns: [{name: A}, {name: B, calculated: true}]\n    definitions: {B: \"1 / [A]\"}\n    rows: [[0]]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.src))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if _, err := doc.Build(engine.Options{}); err == nil {
				t.Error("Expected Build to fail")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.yaml")
	if err := os.WriteFile(path, []byte(salesDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Sheets) != 2 || doc.Sheets[1].Name != "Data" {
		t.Errorf("Expected sheets Sheet1 and Data, got %+v", doc.Sheets)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		key, scope, name string
	}{
		{"Rate", "", "Rate"},
		{"Data!Local", "Data", "Local"},
		{"'My Sheet'!Local", "My Sheet", "Local"},
		{"'It''s'!X", "It's", "X"},
	}
	for _, tt := range tests {
		scope, name := splitName(tt.key)
		if scope != tt.scope || name != tt.name {
			t.Errorf("splitName(%q) = %q, %q; expected %q, %q", tt.key, scope, name, tt.scope, tt.name)
		}
	}
}

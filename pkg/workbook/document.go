package workbook

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/gridcalc/gridcalc/pkg/engine"
	"github.com/gridcalc/gridcalc/pkg/tables"
)

// Document is a workbook described in YAML:
//
//	locale: en-US
//	sheets:
//	  - name: Sheet1
//	    cells:
//	      A1: 1
//	      B1: "=SEQUENCE(2,2)"
//	names:
//	  Rate: "=0.2"
//	  Sheet1!Local: "=Sheet1!A1"
//	tables:
//	  - name: Sales
//	    sheet: Sheet1
//	    range: D1:E4
//	    header: true
//	models:
//	  - name: Orders
//	    columns:
//	      - name: Qty
//	      - name: Total
//	        calculated: true
//	    definitions:
//	      Total: "[Qty] * 2"
//	    rows:
//	      - [3]
//
// Cell strings starting with "=" are formulas, error literals such as
// "#N/A" are errors and other strings are text.
type Document struct {
	Locale string                   `yaml:"locale" validate:"omitempty,bcp47_language_tag"`
	Sheets []Sheet                  `yaml:"sheets" validate:"required,min=1,dive"`
	Names  map[string]string        `yaml:"names" validate:"dive,keys,required,endkeys,required"`
	Tables []engine.TableDefinition `yaml:"tables" validate:"dive"`
	Models []Model                  `yaml:"models" validate:"dive"`
}

// Sheet holds the cells of one sheet keyed by A1 address.
type Sheet struct {
	Name  string         `yaml:"name" validate:"required"`
	Cells map[string]any `yaml:"cells"`
}

// Model is a table with calculated columns, kept apart from the grid.
type Model struct {
	Name        string              `yaml:"name" validate:"required"`
	Columns     []tables.ColumnSpec `yaml:"columns" validate:"required,min=1,dive"`
	Definitions map[string]string   `yaml:"definitions"`
	Rows        [][]any             `yaml:"rows"`
}

var validate = validator.New()

// Load reads and validates a document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid workbook document: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks field constraints and that sheet names are unique.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid workbook document: %s failed %s", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid workbook document: %w", err)
	}
	seen := make(map[string]bool, len(d.Sheets))
	for _, sh := range d.Sheets {
		key := strings.ToLower(sh.Name)
		if seen[key] {
			return fmt.Errorf("invalid workbook document: sheet %q appears twice", sh.Name)
		}
		seen[key] = true
	}
	return nil
}

// sortedNames returns the names in a stable order.
func (d *Document) sortedNames() []string {
	out := make([]string, 0, len(d.Names))
	for k := range d.Names {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// splitName splits "Sheet!Name" into scope and name. Quoted sheet names
// are unquoted.
func splitName(key string) (scope, name string) {
	i := strings.LastIndexByte(key, '!')
	if i < 0 {
		return "", key
	}
	scope = key[:i]
	if len(scope) >= 2 && scope[0] == '\'' && scope[len(scope)-1] == '\'' {
		scope = strings.ReplaceAll(scope[1:len(scope)-1], "''", "'")
	}
	return scope, key[i+1:]
}

// number converts YAML numerics, reporting false for anything else.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

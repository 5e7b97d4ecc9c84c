package tables

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gridcalc/gridcalc/pkg/telemetry"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// ColumnSpec declares a column. Calculated columns hold a slot in every
// row before their definition is registered.
type ColumnSpec struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Calculated bool   `yaml:"calculated" json:"calculated"`
}

// Definition is a registered calculated column.
type Definition struct {
	Table   string
	Column  string
	Formula string
	Expr    Expr
	// DependsOn lists the columns of the same table the formula reads.
	DependsOn []string
}

// Table is a named set of columns and rows.
type Table struct {
	name    string
	columns []ColumnSpec
	index   map[string]int
	defs    map[int]*Definition
	// order lists defined calculated columns so that each comes after
	// the columns it reads.
	order []int
	rows  [][]value.Value
}

func (t *Table) column(name string) (int, bool) {
	i, ok := t.index[value.FoldText(name)]
	return i, ok
}

// Model holds the tables of a tabular data model.
type Model struct {
	mu     sync.RWMutex
	tables map[string]*Table
	tel    *telemetry.Telemetry
	log    *telemetry.Logger
}

// NewModel creates an empty model. A nil tel disables telemetry.
func NewModel(tel *telemetry.Telemetry) *Model {
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Model{
		tables: make(map[string]*Table),
		tel:    tel,
		log:    tel.Logger.NewComponentLogger("tables"),
	}
}

// CreateTable adds a table with the given columns.
func (m *Model) CreateTable(name string, columns []ColumnSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return tableError("create", name, "", fmt.Errorf("%w: empty table name", ErrInvalid))
	}
	if _, exists := m.tables[value.FoldText(name)]; exists {
		return tableError("create", name, "", fmt.Errorf("%w: table already exists", ErrInvalid))
	}
	if len(columns) == 0 {
		return tableError("create", name, "", fmt.Errorf("%w: no columns", ErrInvalid))
	}

	t := &Table{
		name:    name,
		columns: append([]ColumnSpec(nil), columns...),
		index:   make(map[string]int, len(columns)),
		defs:    make(map[int]*Definition),
	}
	for i, col := range columns {
		key := value.FoldText(col.Name)
		if strings.TrimSpace(col.Name) == "" {
			return tableError("create", name, "", fmt.Errorf("%w: empty column name", ErrInvalid))
		}
		if _, dup := t.index[key]; dup {
			return tableError("create", name, col.Name, fmt.Errorf("%w: duplicate column", ErrInvalid))
		}
		t.index[key] = i
	}
	m.tables[value.FoldText(name)] = t
	m.log.WithTable(name).WithField("columns", len(columns)).Debug("Table created")
	return nil
}

func (m *Model) table(op, name string) (*Table, error) {
	t, ok := m.tables[value.FoldText(name)]
	if !ok {
		return nil, tableError(op, name, "", ErrUnknownTable)
	}
	return t, nil
}

// AddCalculatedColumnDefinition registers the formula of a calculated
// column and computes it for the existing rows. The definition is not
// committed if it would close a cycle or fails for any existing row.
func (m *Model) AddCalculatedColumnDefinition(table, column, formula string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "define"
	t, err := m.table(op, table)
	if err != nil {
		return err
	}
	idx, ok := t.column(column)
	if !ok {
		return tableError(op, t.name, column, ErrUnknownColumn)
	}
	if !t.columns[idx].Calculated {
		return tableError(op, t.name, column, fmt.Errorf("%w: column is not calculated", ErrInvalid))
	}

	expr, err := Parse(formula)
	if err != nil {
		return tableError(op, t.name, column, err)
	}
	def := &Definition{Table: t.name, Column: t.columns[idx].Name, Formula: formula, Expr: expr}
	for _, ref := range References(expr) {
		if ref.Table != "" && !value.EqualFold(ref.Table, t.name) {
			return tableError(op, t.name, column, fmt.Errorf("%w: reference to table %s", ErrInvalid, ref.Table))
		}
		dep, ok := t.column(ref.Column)
		if !ok {
			return tableError(op, t.name, ref.Column, ErrUnknownColumn)
		}
		def.DependsOn = append(def.DependsOn, t.columns[dep].Name)
	}
	if err := checkCalls(expr); err != nil {
		return tableError(op, t.name, column, err)
	}

	defs := make(map[int]*Definition, len(t.defs)+1)
	for k, v := range t.defs {
		defs[k] = v
	}
	defs[idx] = def
	order, err := t.sortDefinitions(defs)
	if err != nil {
		return tableError(op, t.name, column, err)
	}

	rows := make([][]value.Value, len(t.rows))
	for i, row := range t.rows {
		next := append([]value.Value(nil), row...)
		if err := t.compute(next, order, defs); err != nil {
			return tableError(op, t.name, column, fmt.Errorf("row %d: %w", i+1, err))
		}
		rows[i] = next
	}

	t.defs, t.order, t.rows = defs, order, rows
	m.log.WithTable(t.name).WithField("column", def.Column).Debug("Calculated column defined")
	return nil
}

// RemoveCalculatedColumnDefinition drops a definition. Its slot keeps the
// last computed values. Definitions reading the column must go first.
func (m *Model) RemoveCalculatedColumnDefinition(table, column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	const op = "undefine"
	t, err := m.table(op, table)
	if err != nil {
		return err
	}
	idx, ok := t.column(column)
	if !ok || t.defs[idx] == nil {
		return tableError(op, t.name, column, ErrUnknownColumn)
	}
	for other, def := range t.defs {
		if other == idx {
			continue
		}
		for _, dep := range def.DependsOn {
			if value.EqualFold(dep, column) {
				return tableError(op, t.name, column,
					fmt.Errorf("%w: column [%s] depends on it", ErrInvalid, def.Column))
			}
		}
	}
	defs := make(map[int]*Definition, len(t.defs))
	for k, v := range t.defs {
		if k != idx {
			defs[k] = v
		}
	}
	order, err := t.sortDefinitions(defs)
	if err != nil {
		return tableError(op, t.name, column, err)
	}
	t.defs, t.order = defs, order
	return nil
}

// InsertRow appends a row. values fill the non-calculated columns in
// schema order; calculated columns are then computed in dependency order.
// If any of them fails the row is not added.
func (m *Model) InsertRow(table string, values []value.Value) error {
	return m.InsertRowContext(context.Background(), table, values)
}

// InsertRowContext is InsertRow with a context for tracing.
func (m *Model) InsertRowContext(ctx context.Context, table string, values []value.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, span := m.tel.Tracer.StartRowInsertSpan(ctx, table)
	defer span.End()

	err := m.insertRow(table, values)
	if err != nil {
		telemetry.RecordError(span, err)
		status := "rejected"
		if errors.Is(err, ErrEvaluation) {
			status = "rolled_back"
			m.log.WithTable(table).WithError(err).Warn("Row insertion rolled back")
			if perr := m.tel.Events.PublishRowRolledBack(table, err.Error()); perr != nil {
				m.log.WithError(perr).Debug("Event dropped")
			}
		}
		m.tel.Metrics.RecordRowInsert(status)
		return err
	}
	telemetry.RecordSuccess(span)
	m.tel.Metrics.RecordRowInsert("committed")
	return nil
}

func (m *Model) insertRow(table string, values []value.Value) error {
	const op = "insert"
	t, err := m.table(op, table)
	if err != nil {
		return err
	}

	inputs := 0
	for _, col := range t.columns {
		if !col.Calculated {
			inputs++
		}
	}
	if len(values) != inputs {
		return tableError(op, t.name, "", fmt.Errorf("%w: expected %d values, got %d", ErrInvalid, inputs, len(values)))
	}

	row := make([]value.Value, len(t.columns))
	next := 0
	for i, col := range t.columns {
		if col.Calculated {
			continue
		}
		v := values[next]
		next++
		switch v.Kind() {
		case value.KindArray, value.KindReference, value.KindLambda, value.KindSpill:
			return tableError(op, t.name, col.Name, fmt.Errorf("%w: cannot store a %s value", ErrInvalid, v.Kind()))
		}
		row[i] = v
	}

	if err := t.compute(row, t.order, t.defs); err != nil {
		return tableError(op, t.name, "", err)
	}
	t.rows = append(t.rows, row)
	return nil
}

// compute fills the calculated columns of row in order.
func (t *Table) compute(row []value.Value, order []int, defs map[int]*Definition) error {
	rc := &rowContext{table: t, row: row}
	for _, idx := range order {
		def := defs[idx]
		v, err := rc.eval(def.Expr)
		if err != nil {
			return fmt.Errorf("%w: [%s]: %v", ErrEvaluation, def.Column, err)
		}
		if v.IsError() {
			return fmt.Errorf("%w: [%s] is %s", ErrEvaluation, def.Column, v)
		}
		row[idx] = v
	}
	return nil
}

// sortDefinitions orders the definitions so each follows the calculated
// columns it reads. Ties keep schema order.
func (t *Table) sortDefinitions(defs map[int]*Definition) ([]int, error) {
	deps := make(map[int][]int, len(defs))
	for idx, def := range defs {
		for _, name := range def.DependsOn {
			dep, _ := t.column(name)
			if _, calculated := defs[dep]; calculated {
				deps[idx] = append(deps[idx], dep)
			}
		}
	}

	keys := make([]int, 0, len(defs))
	for idx := range defs {
		keys = append(keys, idx)
	}
	sort.Ints(keys)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(defs))
	var order, stack []int
	var visit func(int) error
	visit = func(idx int) error {
		switch state[idx] {
		case done:
			return nil
		case visiting:
			path := []string{}
			for i := len(stack) - 1; i >= 0; i-- {
				path = append([]string{"[" + t.columns[stack[i]].Name + "]"}, path...)
				if stack[i] == idx {
					break
				}
			}
			path = append(path, "["+t.columns[idx].Name+"]")
			return fmt.Errorf("%w in table %s: %s", ErrCycle, t.name, strings.Join(path, " -> "))
		}
		state[idx] = visiting
		stack = append(stack, idx)
		sort.Ints(deps[idx])
		for _, dep := range deps[idx] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[idx] = done
		order = append(order, idx)
		return nil
	}
	for _, idx := range keys {
		if err := visit(idx); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Tables returns the table names in sorted order.
func (m *Model) Tables() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t.name)
	}
	sort.Strings(out)
	return out
}

// Columns returns the column specs of a table.
func (m *Model) Columns(table string) ([]ColumnSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table("columns", table)
	if err != nil {
		return nil, err
	}
	return append([]ColumnSpec(nil), t.columns...), nil
}

// Rows returns a copy of the rows of a table.
func (m *Model) Rows(table string) ([][]value.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table("rows", table)
	if err != nil {
		return nil, err
	}
	out := make([][]value.Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = append([]value.Value(nil), row...)
	}
	return out, nil
}

// Column returns the values of one column, top to bottom.
func (m *Model) Column(table, column string) ([]value.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table("column", table)
	if err != nil {
		return nil, err
	}
	idx, ok := t.column(column)
	if !ok {
		return nil, tableError("column", t.name, column, ErrUnknownColumn)
	}
	out := make([]value.Value, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Definitions returns the registered definitions of a table in
// evaluation order.
func (m *Model) Definitions(table string) ([]Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, err := m.table("definitions", table)
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(t.order))
	for _, idx := range t.order {
		out = append(out, *t.defs[idx])
	}
	return out, nil
}

// checkCalls rejects calls to unknown functions.
func checkCalls(expr Expr) error {
	var err error
	var walk func(Expr)
	walk = func(e Expr) {
		if err != nil {
			return
		}
		switch n := e.(type) {
		case Unary:
			walk(n.X)
		case Binary:
			walk(n.L)
			walk(n.R)
		case Let:
			for _, b := range n.Bindings {
				walk(b.Value)
			}
			walk(n.Body)
		case Call:
			if _, ok := arities[n.Name]; !ok && !controlFunctions[n.Name] {
				err = fmt.Errorf("%w: unknown function %s", ErrInvalid, n.Name)
				return
			}
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(expr)
	return err
}

var controlFunctions = map[string]bool{
	"IF": true, "AND": true, "OR": true, "NOT": true, "BLANK": true, "TRUE": true, "FALSE": true,
}

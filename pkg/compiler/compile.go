// Package compiler lowers parsed formulas into a normalized IR. It
// resolves sheet names, normalizes A1 and R1C1 references to one
// representation, decides what each identifier means and checks builtin
// arity. Compilation is pure: the same formula, position and catalog
// always produce the same IR.
package compiler

import (
	"strconv"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Style is the reference notation identifiers are read in.
type Style uint8

const (
	StyleA1 Style = iota
	StyleR1C1
)

// Mode selects how relative coordinates are stored.
type Mode uint8

const (
	// Absolute resolves every coordinate against the compiling cell, so
	// the IR is only valid for that cell.
	Absolute Mode = iota
	// Offsets keeps relative coordinates as offsets, so formulas filled
	// across a range share one IR.
	Offsets
)

// Catalog answers the workbook questions compilation needs.
type Catalog interface {
	SheetID(name string) (value.SheetID, bool)
	SheetDimensions(id value.SheetID) (rows, cols uint32)
	// TablesAt lists the tables whose range covers the cell.
	TablesAt(sheet value.SheetID, addr value.Addr) []string
}

// Env is the position and context a formula is compiled in. A nil
// Catalog knows no sheets or tables and uses the default grid size.
type Env struct {
	Sheet   value.SheetID
	Cell    value.Addr
	Style   Style
	Mode    Mode
	Catalog Catalog
}

// Base returns the compiling cell.
func (e Env) Base() value.CellRef {
	return value.CellRef{Sheet: e.Sheet, Addr: e.Cell}
}

func (e Env) dims(sheet value.SheetID) (uint32, uint32) {
	if e.Catalog == nil {
		return value.DefaultMaxRows, value.MaxCols
	}
	return e.Catalog.SheetDimensions(sheet)
}

func (e Env) sheetID(name string) (value.SheetID, bool) {
	if e.Catalog == nil {
		return 0, false
	}
	return e.Catalog.SheetID(name)
}

// Compile lowers an AST node.
func Compile(node formula.Node, env Env) (Expr, error) {
	c := &compiler{env: env}
	return c.compile(node, nil)
}

// CompileFormula lowers a parsed formula.
func CompileFormula(f *formula.Formula, env Env) (Expr, error) {
	return Compile(f.Root, env)
}

// scope is the chain of LET and LAMBDA names visible at a point.
type scope struct {
	parent *scope
	name   string
}

func (s *scope) with(name string) *scope {
	return &scope{parent: s, name: strings.ToUpper(name)}
}

func (s *scope) has(name string) bool {
	key := strings.ToUpper(name)
	for cur := s; cur != nil; cur = cur.parent {
		if cur.name == key {
			return true
		}
	}
	return false
}

type compiler struct {
	env Env
}

func refError() Expr { return &Literal{Value: value.Error(value.ErrRef)} }

func (c *compiler) compile(node formula.Node, sc *scope) (Expr, error) {
	switch n := node.(type) {
	case *formula.Number:
		return &Literal{Value: value.Number(n.Value)}, nil
	case *formula.String:
		return &Literal{Value: value.Text(n.Value)}, nil
	case *formula.Bool:
		return &Literal{Value: value.Bool(n.Value)}, nil
	case *formula.ErrorLit:
		return &Literal{Value: value.Error(n.Kind)}, nil
	case *formula.Missing:
		return &Literal{Value: value.Blank()}, nil
	case *formula.Ident:
		return c.ident(n, sc, c.env.Sheet, false), nil
	case *formula.SheetRef:
		return c.sheetRef(n, sc)
	case *formula.Range:
		return c.rangeExpr(n, sc)
	case *formula.Paren:
		return c.compile(n.Inner, sc)
	case *formula.Union:
		items, err := c.compileAll(n.Items, sc)
		if err != nil {
			return nil, err
		}
		return &Union{Items: items}, nil
	case *formula.Unary:
		x, err := c.compile(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		if n.Op == "+" {
			return x, nil
		}
		if lit, ok := x.(*Literal); ok && lit.Value.Kind() == value.KindNumber {
			return &Literal{Value: value.Number(-lit.Value.Num())}, nil
		}
		return &Unary{Op: functions.OpNeg, X: x}, nil
	case *formula.Postfix:
		x, err := c.compile(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		if n.Op == "#" {
			return &SpillRef{X: x}, nil
		}
		return &Unary{Op: functions.OpPercent, X: x}, nil
	case *formula.Binary:
		op, ok := functions.ParseBinaryOp(n.Op)
		if !ok {
			return nil, errorf(n.Offset, "unknown operator %q", n.Op)
		}
		l, err := c.compile(n.Left, sc)
		if err != nil {
			return nil, err
		}
		r, err := c.compile(n.Right, sc)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, L: l, R: r}, nil
	case *formula.Call:
		return c.call(n, sc)
	case *formula.Invoke:
		callee, err := c.compile(n.Callee, sc)
		if err != nil {
			return nil, err
		}
		args, err := c.compileAll(n.Args, sc)
		if err != nil {
			return nil, err
		}
		return &Invoke{Callee: callee, Args: args}, nil
	case *formula.Array:
		return c.array(n, sc)
	case *formula.StructRef:
		return c.tableRef(n)
	}
	return nil, errorf(node.Pos(), "unsupported expression %T", node)
}

func (c *compiler) compileAll(nodes []formula.Node, sc *scope) ([]Expr, error) {
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		e, err := c.compile(n, sc)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// ident decides between a local, a reference and a defined name.
func (c *compiler) ident(n *formula.Ident, sc *scope, sheet value.SheetID, qualified bool) Expr {
	if !qualified && sc.has(n.Name) {
		return &Local{Name: strings.ToUpper(n.Name)}
	}
	if ep, ok := c.endpoint(n.Name, sheet); ok {
		switch {
		case ep.kind == RefCell:
			if ep.invalid {
				return refError()
			}
			return &RefExpr{Ref: Ref{Sheet: sheet, Start: ep.at, End: ep.at, Kind: RefCell}}
		case c.env.Style == StyleR1C1:
			// R2 and C3 on their own are whole rows and columns.
			return c.span(sheet, ep, ep)
		}
	}
	return &Name{Sheet: sheet, Qualified: qualified, Name: strings.ToUpper(n.Name)}
}

func (c *compiler) sheetRef(n *formula.SheetRef, sc *scope) (Expr, error) {
	id, ok := c.env.sheetID(n.Sheet)
	if !ok {
		return refError(), nil
	}
	switch t := n.Target.(type) {
	case *formula.Ident:
		return c.ident(t, sc, id, true), nil
	case *formula.ErrorLit:
		return &Literal{Value: value.Error(t.Kind)}, nil
	case *formula.StructRef:
		return c.tableRef(t)
	}
	return nil, errorf(n.Offset, "invalid reference after %s!", n.Sheet)
}

// endpoint is one side of a reference as written.
type endpoint struct {
	at   CellCoord
	kind RefKind
	// invalid is set when a relative coordinate fell off the grid.
	invalid bool
}

func (c *compiler) endpoint(text string, sheet value.SheetID) (endpoint, bool) {
	if c.env.Style == StyleR1C1 {
		return c.r1c1Endpoint(text, sheet)
	}
	return c.a1Endpoint(text, sheet)
}

// a1Endpoint reads $A$1, A1, $A or $1.
func (c *compiler) a1Endpoint(text string, sheet value.SheetID) (endpoint, bool) {
	i := 0
	colAbs := i < len(text) && text[i] == '$'
	if colAbs {
		i++
	}
	j := i
	for j < len(text) && isLetter(text[j]) {
		j++
	}
	letters := text[i:j]
	rowAbs := j < len(text) && text[j] == '$'
	if rowAbs {
		j++
	}
	digits := text[j:]
	if letters == "" && !colAbs && rowAbs {
		return endpoint{}, false
	}
	if digits != "" && !allDigits(digits) {
		return endpoint{}, false
	}
	if letters == "" && digits == "" {
		return endpoint{}, false
	}
	rows, cols := c.env.dims(sheet)
	var ep endpoint
	switch {
	case letters != "" && digits != "":
		ep.kind = RefCell
	case letters != "":
		if rowAbs {
			return endpoint{}, false
		}
		ep.kind = RefColumns
	default:
		if colAbs && !rowAbs {
			// "$1" arrives with the $ in colAbs position.
			rowAbs, colAbs = true, false
		}
		ep.kind = RefRows
	}
	if letters != "" {
		col, ok := value.ColumnIndex(letters)
		if !ok || col >= cols {
			return endpoint{}, false
		}
		ep.at.Col = c.coordA1(int64(col), colAbs, c.env.Cell.Col)
	}
	if digits != "" {
		if digits[0] == '0' {
			return endpoint{}, false
		}
		row, err := strconv.ParseUint(digits, 10, 32)
		if err != nil || row > uint64(rows) {
			return endpoint{}, false
		}
		ep.at.Row = c.coordA1(int64(row-1), rowAbs, c.env.Cell.Row)
	}
	return ep, true
}

func (c *compiler) coordA1(index int64, abs bool, base uint32) Coord {
	if abs || c.env.Mode == Absolute {
		return Coord{N: index}
	}
	return Coord{N: index - int64(base), Rel: true}
}

// r1c1Endpoint reads RC, R2C3, R[-1]C[2], R, R2 and C[1].
func (c *compiler) r1c1Endpoint(text string, sheet value.SheetID) (endpoint, bool) {
	u := strings.ToUpper(text)
	rows, cols := c.env.dims(sheet)
	var ep endpoint
	hasRow, hasCol := false, false
	if strings.HasPrefix(u, "R") {
		coord, rest, bad, ok := c.r1c1Coord(u[1:], c.env.Cell.Row, int64(rows))
		if !ok {
			return endpoint{}, false
		}
		ep.at.Row, ep.invalid, u, hasRow = coord, bad, rest, true
	}
	if strings.HasPrefix(u, "C") {
		coord, rest, bad, ok := c.r1c1Coord(u[1:], c.env.Cell.Col, int64(cols))
		if !ok {
			return endpoint{}, false
		}
		ep.at.Col, u, hasCol = coord, rest, true
		ep.invalid = ep.invalid || bad
	}
	if u != "" || (!hasRow && !hasCol) {
		return endpoint{}, false
	}
	switch {
	case hasRow && hasCol:
		ep.kind = RefCell
	case hasRow:
		ep.kind = RefRows
	default:
		ep.kind = RefColumns
	}
	return ep, true
}

// r1c1Coord reads the number after R or C. A bare letter means offset 0.
// bad reports a relative offset that leaves the grid.
func (c *compiler) r1c1Coord(s string, base uint32, limit int64) (Coord, string, bool, bool) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return Coord{}, "", false, false
		}
		off, err := strconv.ParseInt(s[1:end], 10, 64)
		if err != nil {
			return Coord{}, "", false, false
		}
		target := int64(base) + off
		bad := target < 0 || target >= limit
		if c.env.Mode == Offsets {
			return Coord{N: off, Rel: true}, s[end+1:], bad, true
		}
		return Coord{N: target}, s[end+1:], bad, true
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		if c.env.Mode == Offsets {
			return Coord{Rel: true}, s, false, true
		}
		return Coord{N: int64(base)}, s, false, true
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil || n < 1 || n > limit {
		return Coord{}, "", false, false
	}
	return Coord{N: n - 1}, s[i:], false, true
}

// span builds a whole-row or whole-column reference between two endpoints.
func (c *compiler) span(sheet value.SheetID, a, b endpoint) Expr {
	if a.invalid || b.invalid {
		return refError()
	}
	rows, cols := c.env.dims(sheet)
	ref := Ref{Sheet: sheet, Start: a.at, End: b.at, Kind: a.kind}
	switch a.kind {
	case RefColumns:
		ref.Start.Row, ref.End.Row = Coord{N: 0}, Coord{N: int64(rows) - 1}
	case RefRows:
		ref.Start.Col, ref.End.Col = Coord{N: 0}, Coord{N: int64(cols) - 1}
	}
	return &RefExpr{Ref: ref}
}

// rangeExpr folds ref:ref into one static reference when both ends are
// written references on the same sheet. Anything else becomes a RangeOp.
func (c *compiler) rangeExpr(n *formula.Range, sc *scope) (Expr, error) {
	sheet, left, _, ok := c.rangeSide(n.Left, c.env.Sheet, sc)
	if !ok {
		return refError(), nil
	}
	rightSheet, right, hasSheet, ok := c.rangeSide(n.Right, sheet, sc)
	if !ok || (hasSheet && rightSheet != sheet) {
		return refError(), nil
	}
	if left != nil && right != nil && left.kind == right.kind {
		if left.kind == RefCell {
			if left.invalid || right.invalid {
				return refError(), nil
			}
			return &RefExpr{Ref: Ref{Sheet: sheet, Start: left.at, End: right.at, Kind: RefArea}}, nil
		}
		return c.span(sheet, *left, *right), nil
	}

	l, err := c.compileOn(n.Left, sheet, sc)
	if err != nil {
		return nil, err
	}
	r, err := c.compileOn(n.Right, sheet, sc)
	if err != nil {
		return nil, err
	}
	return &RangeOp{L: l, R: r}, nil
}

// rangeSide reads one side of a range as a static endpoint when it is
// one. It reports the sheet named by a prefix, if any.
func (c *compiler) rangeSide(node formula.Node, sheet value.SheetID, sc *scope) (value.SheetID, *endpoint, bool, bool) {
	qualified := false
	if sr, ok := node.(*formula.SheetRef); ok {
		id, found := c.env.sheetID(sr.Sheet)
		if !found {
			return 0, nil, true, false
		}
		sheet, node, qualified = id, sr.Target, true
	}
	switch t := node.(type) {
	case *formula.Ident:
		if !qualified && sc.has(t.Name) {
			return sheet, nil, qualified, true
		}
		if ep, ok := c.endpoint(t.Name, sheet); ok {
			return sheet, &ep, qualified, true
		}
	case *formula.Number:
		if c.env.Style == StyleA1 && allDigits(t.Raw) {
			if ep, ok := c.a1Endpoint(t.Raw, sheet); ok {
				return sheet, &ep, qualified, true
			}
		}
	}
	return sheet, nil, qualified, true
}

// compileOn compiles one side of a dynamic range so that bare
// references land on the range's sheet.
func (c *compiler) compileOn(node formula.Node, sheet value.SheetID, sc *scope) (Expr, error) {
	if id, ok := node.(*formula.Ident); ok && sheet != c.env.Sheet {
		return c.ident(id, sc, sheet, false), nil
	}
	return c.compile(node, sc)
}

func (c *compiler) call(n *formula.Call, sc *scope) (Expr, error) {
	switch n.Name {
	case "LET":
		return c.let(n, sc)
	case "LAMBDA":
		return c.lambda(n, sc)
	}
	args, err := c.compileAll(n.Args, sc)
	if err != nil {
		return nil, err
	}
	if sc.has(n.Name) {
		return &CallLocal{Name: strings.ToUpper(n.Name), Args: args}, nil
	}
	if b, ok := functions.Lookup(n.Name); ok {
		if !b.AcceptsArgs(len(args)) {
			return nil, errorf(n.Offset, "%s takes %s, got %d", n.Original, arity(b), len(args))
		}
		return &Call{Name: b.Name, Fn: b, Args: args}, nil
	}
	return &CallName{Name: Name{Sheet: c.env.Sheet, Name: strings.ToUpper(n.Name)}, Args: args}, nil
}

func arity(b *functions.Builtin) string {
	switch {
	case b.MaxArgs < 0:
		return "at least " + strconv.Itoa(b.MinArgs) + " arguments"
	case b.MinArgs == b.MaxArgs:
		return strconv.Itoa(b.MinArgs) + " arguments"
	default:
		return strconv.Itoa(b.MinArgs) + " to " + strconv.Itoa(b.MaxArgs) + " arguments"
	}
}

// bindingName checks that a LET or LAMBDA name is a plain identifier and
// not something that reads as a cell.
func (c *compiler) bindingName(n formula.Node, fn string) (string, error) {
	id, ok := n.(*formula.Ident)
	if !ok {
		return "", errorf(n.Pos(), "%s names must be identifiers", fn)
	}
	if strings.Contains(id.Name, "$") {
		return "", errorf(id.Offset, "%s name %q is not valid", fn, id.Name)
	}
	if ep, ok := c.endpoint(id.Name, c.env.Sheet); ok && ep.kind == RefCell {
		return "", errorf(id.Offset, "%s name %q looks like a cell reference", fn, id.Name)
	}
	return strings.ToUpper(id.Name), nil
}

func (c *compiler) let(n *formula.Call, sc *scope) (Expr, error) {
	if len(n.Args) < 3 || len(n.Args)%2 == 0 {
		return nil, errorf(n.Offset, "LET takes name/value pairs followed by a body, got %d arguments", len(n.Args))
	}
	out := &Let{}
	for i := 0; i+1 < len(n.Args); i += 2 {
		name, err := c.bindingName(n.Args[i], "LET")
		if err != nil {
			return nil, err
		}
		v, err := c.compile(n.Args[i+1], sc)
		if err != nil {
			return nil, err
		}
		out.Names = append(out.Names, name)
		out.Values = append(out.Values, v)
		sc = sc.with(name)
	}
	body, err := c.compile(n.Args[len(n.Args)-1], sc)
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func (c *compiler) lambda(n *formula.Call, sc *scope) (Expr, error) {
	if len(n.Args) == 0 {
		return nil, errorf(n.Offset, "LAMBDA needs a body")
	}
	params := make([]string, 0, len(n.Args)-1)
	seen := make(map[string]bool, len(n.Args))
	for _, a := range n.Args[:len(n.Args)-1] {
		name, err := c.bindingName(a, "LAMBDA")
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, errorf(a.Pos(), "duplicate LAMBDA parameter %s", name)
		}
		seen[name] = true
		params = append(params, name)
		sc = sc.with(name)
	}
	body, err := c.compile(n.Args[len(n.Args)-1], sc)
	if err != nil {
		return nil, err
	}
	return &Lambda{Params: params, Body: body}, nil
}

// array folds an all-constant literal into one array value.
func (c *compiler) array(n *formula.Array, sc *scope) (Expr, error) {
	if len(n.Rows) == 0 {
		return nil, errorf(n.Offset, "empty array literal")
	}
	cols := len(n.Rows[0])
	out := &ArrayLit{Rows: len(n.Rows), Cols: cols}
	constant := true
	for _, row := range n.Rows {
		if len(row) != cols {
			return nil, errorf(n.Offset, "array rows have different lengths")
		}
		for _, el := range row {
			e, err := c.compile(el, sc)
			if err != nil {
				return nil, err
			}
			if lit, ok := e.(*Literal); !ok || lit.Value.Kind() == value.KindArray {
				constant = false
			}
			out.Elems = append(out.Elems, e)
		}
	}
	if !constant {
		return out, nil
	}
	arr, ek := value.NewArray(out.Rows, out.Cols)
	if ek != value.NoError {
		return &Literal{Value: value.Error(ek)}, nil
	}
	for i, e := range out.Elems {
		arr.Data[i] = e.(*Literal).Value
	}
	return &Literal{Value: value.FromArray(arr)}, nil
}

func (c *compiler) tableRef(n *formula.StructRef) (Expr, error) {
	spec := n.Spec
	if spec.Table == "" {
		var tables []string
		if c.env.Catalog != nil {
			tables = c.env.Catalog.TablesAt(c.env.Sheet, c.env.Cell)
		}
		if len(tables) != 1 {
			return nil, errorf(n.Offset, "structured reference without a table name needs exactly one table at %s, found %d",
				c.env.Cell, len(tables))
		}
		spec.Table = tables[0]
	}
	return &TableRef{Spec: spec}, nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

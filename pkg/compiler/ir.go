package compiler

import (
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Expr is a node of the normalized IR. The set of node types is closed.
type Expr interface {
	expr()
}

// Coord is one row or column coordinate. A relative coordinate holds an
// offset from the base cell, an absolute one holds the index itself.
type Coord struct {
	N   int64
	Rel bool
}

func (c Coord) resolve(base uint32) (int64, bool) {
	if c.Rel {
		return int64(base) + c.N, true
	}
	return c.N, c.N >= 0
}

// CellCoord addresses one corner of a reference.
type CellCoord struct {
	Row Coord
	Col Coord
}

// RefKind tells how a reference was written.
type RefKind uint8

const (
	RefCell RefKind = iota
	RefArea
	RefColumns
	RefRows
)

func (k RefKind) String() string {
	switch k {
	case RefArea:
		return "area"
	case RefColumns:
		return "columns"
	case RefRows:
		return "rows"
	default:
		return "cell"
	}
}

// Ref is a static reference. Whole-column and whole-row references carry
// their full extent, taken from the sheet dimensions at compile time.
type Ref struct {
	Sheet      value.SheetID
	Start, End CellCoord
	Kind       RefKind
}

// Resolve places the reference relative to base. It fails when a relative
// coordinate lands outside the grid.
func (r Ref) Resolve(base value.CellRef) (*value.Reference, bool) {
	r1, ok1 := r.Start.Row.resolve(base.Row)
	c1, ok2 := r.Start.Col.resolve(base.Col)
	r2, ok3 := r.End.Row.resolve(base.Row)
	c2, ok4 := r.End.Col.resolve(base.Col)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, false
	}
	if r1 < 0 || r2 < 0 || c1 < 0 || c2 < 0 || c1 >= value.MaxCols || c2 >= value.MaxCols ||
		r1 > int64(^uint32(0)) || r2 > int64(^uint32(0)) {
		return nil, false
	}
	area := value.NewArea(
		value.Addr{Row: uint32(r1), Col: uint32(c1)},
		value.Addr{Row: uint32(r2), Col: uint32(c2)},
	)
	return value.NewReference(r.Sheet, area), true
}

// Literal is a constant value, errors included.
type Literal struct {
	Value value.Value
}

// RefExpr evaluates to a Reference value.
type RefExpr struct {
	Ref Ref
}

// Name is a defined name. Qualified names were written with a sheet
// prefix and only match names scoped to that sheet; unqualified ones try
// the current sheet first, then the workbook.
type Name struct {
	Sheet     value.SheetID
	Qualified bool
	Name      string
}

// Local is a LET or LAMBDA binding.
type Local struct {
	Name string
}

// TableRef is a structured reference with its table name filled in.
type TableRef struct {
	Spec formula.TableSpec
}

// Unary is negation or percent.
type Unary struct {
	Op functions.Op
	X  Expr
}

// Binary is an infix operator.
type Binary struct {
	Op   functions.Op
	L, R Expr
}

// Call invokes a builtin. Arity was checked when compiling.
type Call struct {
	Name string
	Fn   *functions.Builtin
	Args []Expr
}

// CallName invokes the lambda a defined name is bound to.
type CallName struct {
	Name Name
	Args []Expr
}

// CallLocal invokes the lambda a local is bound to.
type CallLocal struct {
	Name string
	Args []Expr
}

// Invoke calls whatever its callee evaluates to, as in LAMBDA(x,x)(1).
type Invoke struct {
	Callee Expr
	Args   []Expr
}

// Lambda builds a closure over the current scope.
type Lambda struct {
	Params []string
	Body   Expr
}

// Let binds names in order, each visible to the following values and the
// body.
type Let struct {
	Names  []string
	Values []Expr
	Body   Expr
}

// ArrayLit is an array literal with non-constant elements, row-major.
type ArrayLit struct {
	Rows, Cols int
	Elems      []Expr
}

// Union joins references on one sheet.
type Union struct {
	Items []Expr
}

// RangeOp is a range whose ends are only known at run time, such as
// A1:INDEX(B:B,3).
type RangeOp struct {
	L, R Expr
}

// SpillRef is the postfix # operator: the current spill extent of the
// origin cell X refers to.
type SpillRef struct {
	X Expr
}

func (*Literal) expr()   {}
func (*RefExpr) expr()   {}
func (*Name) expr()      {}
func (*Local) expr()     {}
func (*TableRef) expr()  {}
func (*Unary) expr()     {}
func (*Binary) expr()    {}
func (*Call) expr()      {}
func (*CallName) expr()  {}
func (*CallLocal) expr() {}
func (*Invoke) expr()    {}
func (*Lambda) expr()    {}
func (*Let) expr()       {}
func (*ArrayLit) expr()  {}
func (*Union) expr()     {}
func (*RangeOp) expr()   {}
func (*SpillRef) expr()  {}

// Walk visits e and its children depth-first. Returning false from fn
// skips the children of that node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Unary:
		Walk(n.X, fn)
	case *Binary:
		Walk(n.L, fn)
		Walk(n.R, fn)
	case *Call:
		walkAll(n.Args, fn)
	case *CallName:
		walkAll(n.Args, fn)
	case *CallLocal:
		walkAll(n.Args, fn)
	case *Invoke:
		Walk(n.Callee, fn)
		walkAll(n.Args, fn)
	case *Lambda:
		Walk(n.Body, fn)
	case *Let:
		walkAll(n.Values, fn)
		Walk(n.Body, fn)
	case *ArrayLit:
		walkAll(n.Elems, fn)
	case *Union:
		walkAll(n.Items, fn)
	case *RangeOp:
		Walk(n.L, fn)
		Walk(n.R, fn)
	case *SpillRef:
		Walk(n.X, fn)
	}
}

func walkAll(es []Expr, fn func(Expr) bool) {
	for _, e := range es {
		Walk(e, fn)
	}
}

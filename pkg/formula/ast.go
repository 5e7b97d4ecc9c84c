package formula

import (
	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Node is an expression in a parsed formula.
type Node interface {
	// Pos returns the byte offset of the node in the source text.
	Pos() int
	node()
}

// Number is a numeric literal. Raw keeps the source spelling.
type Number struct {
	Offset int
	Value  float64
	Raw    string
}

// String is a text literal.
type String struct {
	Offset int
	Value  string
}

// Bool is TRUE or FALSE.
type Bool struct {
	Offset int
	Value  bool
}

// ErrorLit is an error literal such as #N/A.
type ErrorLit struct {
	Offset int
	Kind   value.ErrorKind
}

// Ident is a bare identifier: a cell or column/row reference, an R1C1
// reference, a defined name or a lambda parameter. The compiler decides
// which.
type Ident struct {
	Offset int
	Name   string
}

// SheetRef qualifies Target with a sheet name, as in Sheet1!A1.
type SheetRef struct {
	Offset int
	Sheet  string
	Quoted bool
	Target Node
}

// Range is the ":" operator.
type Range struct {
	Offset int
	Left   Node
	Right  Node
}

// Union is a parenthesized list of references, as in (A1,B2:C3).
type Union struct {
	Offset int
	Items  []Node
}

// Paren is a parenthesized expression. It is kept so that text round-trips.
type Paren struct {
	Offset int
	Inner  Node
}

// Unary is a prefix + or -.
type Unary struct {
	Offset  int
	Op      string
	Operand Node
}

// Postfix is a postfix % or the spill-range operator #.
type Postfix struct {
	Offset  int
	Op      string
	Operand Node
}

// Binary is an infix arithmetic, concatenation or comparison operator.
type Binary struct {
	Offset int
	Op     string
	Left   Node
	Right  Node
}

// Call is a function call by name. Name is canonical English; Original is
// the spelling found in the source text.
type Call struct {
	Offset   int
	Name     string
	Original string
	Args     []Node
}

// Invoke calls the value of an expression, as in LAMBDA(x,x+1)(2).
type Invoke struct {
	Offset int
	Callee Node
	Args   []Node
}

// Array is an array literal such as {1,2;3,4}.
type Array struct {
	Offset int
	Rows   [][]Node
}

// Missing is an omitted function argument, as in IF(A1,,1).
type Missing struct {
	Offset int
}

// Section selects part of a table in a structured reference.
type Section uint8

const (
	SectionData Section = iota
	SectionAll
	SectionHeaders
	SectionTotals
	SectionThisRow
)

var sectionNames = map[Section]string{
	SectionAll:     "#All",
	SectionData:    "#Data",
	SectionHeaders: "#Headers",
	SectionTotals:  "#Totals",
	SectionThisRow: "#This Row",
}

func (s Section) String() string { return sectionNames[s] }

// TableSpec is the resolved content of a structured reference. An empty
// Table means the table is implied by the formula's position.
type TableSpec struct {
	Table       string
	Section     Section
	ColumnStart string
	ColumnEnd   string
}

// StructRef is a structured table reference such as Sales[Amount].
type StructRef struct {
	Offset int
	Spec   TableSpec
}

func (n *Number) Pos() int    { return n.Offset }
func (n *String) Pos() int    { return n.Offset }
func (n *Bool) Pos() int      { return n.Offset }
func (n *ErrorLit) Pos() int  { return n.Offset }
func (n *Ident) Pos() int     { return n.Offset }
func (n *SheetRef) Pos() int  { return n.Offset }
func (n *Range) Pos() int     { return n.Offset }
func (n *Union) Pos() int     { return n.Offset }
func (n *Paren) Pos() int     { return n.Offset }
func (n *Unary) Pos() int     { return n.Offset }
func (n *Postfix) Pos() int   { return n.Offset }
func (n *Binary) Pos() int    { return n.Offset }
func (n *Call) Pos() int      { return n.Offset }
func (n *Invoke) Pos() int    { return n.Offset }
func (n *Array) Pos() int     { return n.Offset }
func (n *Missing) Pos() int   { return n.Offset }
func (n *StructRef) Pos() int { return n.Offset }

func (*Number) node()    {}
func (*String) node()    {}
func (*Bool) node()      {}
func (*ErrorLit) node()  {}
func (*Ident) node()     {}
func (*SheetRef) node()  {}
func (*Range) node()     {}
func (*Union) node()     {}
func (*Paren) node()     {}
func (*Unary) node()     {}
func (*Postfix) node()   {}
func (*Binary) node()    {}
func (*Call) node()      {}
func (*Invoke) node()    {}
func (*Array) node()     {}
func (*Missing) node()   {}
func (*StructRef) node() {}

// Formula is an immutable parsed formula.
type Formula struct {
	Root   Node
	Source string
	Locale *locale.Locale
}

// String renders the formula as canonical text without the leading "=".
func (f *Formula) String() string {
	return Format(f.Root, locale.Canonical())
}

// Format renders the formula in the given locale without the leading "=".
func (f *Formula) Format(loc *locale.Locale) string {
	return Format(f.Root, loc)
}

// Walk calls fn for n and every descendant in depth-first order. Returning
// false from fn skips the children of that node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch t := n.(type) {
	case *SheetRef:
		Walk(t.Target, fn)
	case *Range:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *Union:
		for _, it := range t.Items {
			Walk(it, fn)
		}
	case *Paren:
		Walk(t.Inner, fn)
	case *Unary:
		Walk(t.Operand, fn)
	case *Postfix:
		Walk(t.Operand, fn)
	case *Binary:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *Call:
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *Invoke:
		Walk(t.Callee, fn)
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *Array:
		for _, row := range t.Rows {
			for _, el := range row {
				Walk(el, fn)
			}
		}
	}
}

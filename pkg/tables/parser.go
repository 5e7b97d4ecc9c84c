package tables

import (
	"strconv"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Expr is a node of a calculated-column formula.
type Expr interface {
	node()
}

type (
	NumberLit struct{ Value float64 }
	StringLit struct{ Value string }
	BoolLit   struct{ Value bool }

	// ColumnRef is [Col], Table[Col] or 'Table'[Col]. Table is empty for
	// the bare form.
	ColumnRef struct {
		Table  string
		Column string
	}

	// VarRef reads a VAR binding.
	VarRef struct{ Name string }

	Unary struct {
		Op string
		X  Expr
	}

	Binary struct {
		Op   string
		L, R Expr
	}

	Call struct {
		Name string
		Args []Expr
	}

	// Let is a VAR ... RETURN block. Each binding sees the ones before it.
	Let struct {
		Bindings []Binding
		Body     Expr
	}

	Binding struct {
		Name  string
		Value Expr
	}
)

func (NumberLit) node() {}
func (StringLit) node() {}
func (BoolLit) node()   {}
func (ColumnRef) node() {}
func (VarRef) node()    {}
func (Unary) node()     {}
func (Binary) node()    {}
func (Call) node()      {}
func (Let) node()       {}

// Parse parses a calculated-column formula. A leading "=" is optional.
// Bare identifiers must name an enclosing VAR binding.
func Parse(src string) (Expr, error) {
	text := strings.TrimSpace(src)
	offset := len(src) - len(strings.TrimLeft(src, " \t\r\n"))
	if strings.HasPrefix(text, "=") {
		text = text[1:]
		offset++
	}
	toks, err := tokenize(text)
	if err != nil {
		return nil, shift(err, offset)
	}
	p := &parser{toks: toks}
	e, err := p.expr(0)
	if err != nil {
		return nil, shift(err, offset)
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, shift(p.errorf(t, "unexpected "+describe(t)), offset)
	}
	return e, nil
}

func shift(err error, offset int) error {
	if pe, ok := err.(*ParseError); ok {
		return &ParseError{Offset: pe.Offset + offset, Message: pe.Message}
	}
	return err
}

type parser struct {
	toks  []token
	pos   int
	scope []string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, msg string) *ParseError {
	return &ParseError{Offset: t.offset, Message: msg}
}

func describe(t token) string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return strconv.Quote(t.text)
}

// Binding powers, loosest first.
func precedence(op string) int {
	switch op {
	case "||":
		return 1
	case "&&":
		return 2
	case "=", "==", "<>", "<", "<=", ">", ">=":
		return 3
	case "&":
		return 4
	case "+", "-":
		return 5
	case "*", "/":
		return 6
	case "^":
		return 8
	}
	return 0
}

func (p *parser) expr(min int) (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOp {
			return left, nil
		}
		prec := precedence(t.text)
		if prec <= min {
			return left, nil
		}
		p.advance()
		next := prec
		if t.text == "^" {
			next = prec - 1
		}
		right, err := p.expr(next)
		if err != nil {
			return nil, err
		}
		op := t.text
		if op == "==" {
			op = "="
		}
		left = Binary{Op: op, L: left, R: right}
	}
}

func (p *parser) unary() (Expr, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "-" || t.text == "+") {
		p.advance()
		// Unary minus binds tighter than everything but ^.
		x, err := p.expr(7)
		if err != nil {
			return nil, err
		}
		return Unary{Op: t.text, X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	t := p.advance()
	switch t.kind {
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number "+t.text)
		}
		return NumberLit{Value: n}, nil
	case tokString:
		return StringLit{Value: t.text}, nil
	case tokColumn:
		return ColumnRef{Column: t.text}, nil
	case tokTable:
		col := p.advance()
		if col.kind != tokColumn {
			return nil, p.errorf(col, "expected [column] after '"+t.text+"'")
		}
		return ColumnRef{Table: t.text, Column: col.text}, nil
	case tokLParen:
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if c := p.advance(); c.kind != tokRParen {
			return nil, p.errorf(c, "expected ) but found "+describe(c))
		}
		return e, nil
	case tokIdent:
		return p.identifier(t)
	}
	return nil, p.errorf(t, "unexpected "+describe(t))
}

func (p *parser) identifier(t token) (Expr, error) {
	upper := strings.ToUpper(t.text)
	next := p.peek()

	switch {
	case upper == "VAR":
		return p.let(t)
	case next.kind == tokColumn:
		p.advance()
		return ColumnRef{Table: t.text, Column: next.text}, nil
	case next.kind == tokLParen:
		p.advance()
		return p.call(t)
	case upper == "TRUE" || upper == "FALSE":
		return BoolLit{Value: upper == "TRUE"}, nil
	}

	for i := len(p.scope) - 1; i >= 0; i-- {
		if value.EqualFold(p.scope[i], t.text) {
			return VarRef{Name: p.scope[i]}, nil
		}
	}
	return nil, p.errorf(t, "unknown identifier "+t.text)
}

func (p *parser) call(name token) (Expr, error) {
	c := Call{Name: strings.ToUpper(name.text)}
	if p.peek().kind == tokRParen {
		p.advance()
		return c, nil
	}
	for {
		arg, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, arg)
		t := p.advance()
		switch t.kind {
		case tokComma:
			continue
		case tokRParen:
			return c, nil
		}
		return nil, p.errorf(t, "expected , or ) but found "+describe(t))
	}
}

// let parses VAR a = ... [VAR b = ...] RETURN body.
func (p *parser) let(first token) (Expr, error) {
	depth := len(p.scope)
	defer func() { p.scope = p.scope[:depth] }()

	var l Let
	for kw := first; ; kw = p.advance() {
		switch strings.ToUpper(kw.text) {
		case "VAR":
		case "RETURN":
			if len(l.Bindings) == 0 {
				return nil, p.errorf(kw, "RETURN without VAR")
			}
			body, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			l.Body = body
			return l, nil
		default:
			return nil, p.errorf(kw, "expected VAR or RETURN but found "+describe(kw))
		}

		name := p.advance()
		if name.kind != tokIdent {
			return nil, p.errorf(name, "expected variable name")
		}
		if eq := p.advance(); eq.kind != tokOp || eq.text != "=" {
			return nil, p.errorf(eq, "expected = after VAR "+name.text)
		}
		val, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		l.Bindings = append(l.Bindings, Binding{Name: name.text, Value: val})
		p.scope = append(p.scope, name.text)
	}
}

// References returns the columns expr reads, including those read by VAR
// bindings, in order of first appearance.
func References(expr Expr) []ColumnRef {
	var out []ColumnRef
	seen := make(map[[2]string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case ColumnRef:
			key := [2]string{value.FoldText(n.Table), value.FoldText(n.Column)}
			if !seen[key] {
				seen[key] = true
				out = append(out, n)
			}
		case Unary:
			walk(n.X)
		case Binary:
			walk(n.L)
			walk(n.R)
		case Call:
			for _, a := range n.Args {
				walk(a)
			}
		case Let:
			for _, b := range n.Bindings {
				walk(b.Value)
			}
			walk(n.Body)
		}
	}
	walk(expr)
	return out
}

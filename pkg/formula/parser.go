package formula

import (
	"strings"

	"github.com/gridcalc/gridcalc/pkg/locale"
)

// Parser builds an AST from formula tokens using a precedence-climbing
// descent: comparison < concatenation < additive < multiplicative <
// exponent < prefix sign < percent < range < postfix < primary.
type Parser struct {
	toks []Token
	pos  int
	loc  *locale.Locale
}

// Parse parses formula text written in loc. A leading "=" is optional. A
// nil locale means canonical text.
func Parse(text string, loc *locale.Locale) (*Formula, error) {
	if loc == nil {
		loc = locale.Canonical()
	}
	toks, err := Tokenize(text, loc)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, loc: loc}
	if t := p.peek(); t.Kind == TokOperator && t.Text == "=" {
		p.pos++
	}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != TokEOF {
		return nil, &ParseError{Kind: ErrTrailingInput, Offset: t.Pos, Found: t.String()}
	}
	return &Formula{Root: root, Source: text, Locale: loc}, nil
}

// MustParse parses canonical text and panics on error. It is meant for
// tests and static tables.
func MustParse(text string) *Formula {
	f, err := Parse(text, nil)
	if err != nil {
		panic(err)
	}
	return f
}

func (p *Parser) peek() Token {
	return p.toks[p.pos]
}

func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) isOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.Kind != TokOperator {
		return "", false
	}
	for _, op := range ops {
		if t.Text == op {
			return op, true
		}
	}
	return "", false
}

func (p *Parser) isSep(r rune) bool {
	t := p.peek()
	return t.Kind == TokSeparator && t.Sep == r
}

func (p *Parser) unexpected(t Token, expected string) error {
	if t.Kind == TokEOF {
		return &ParseError{Kind: ErrUnexpectedEOF, Offset: t.Pos, Expected: expected}
	}
	if expected != "" {
		return &ParseError{Kind: ErrExpectedChar, Offset: t.Pos, Expected: expected, Found: t.String()}
	}
	return &ParseError{Kind: ErrUnexpectedChar, Offset: t.Pos, Found: t.String()}
}

func (p *Parser) parseExpr() (Node, error) {
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Node, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("=", "<>", "<", "<=", ">", ">=")
		if !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		left = &Binary{Offset: t.Pos, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseConcat() (Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("&"); !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &Binary{Offset: t.Pos, Op: "&", Left: left, Right: right}
	}
}

func (p *Parser) parseAdditive() (Node, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("+", "-")
		if !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Offset: t.Pos, Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseMultiplicative() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.isOp("*", "/")
		if !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = &Binary{Offset: t.Pos, Op: op, Left: left, Right: right}
	}
}

// parsePower is left-associative: 2^3^2 is (2^3)^2.
func (p *Parser) parsePower() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("^"); !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Offset: t.Pos, Op: "^", Left: left, Right: right}
	}
}

// parseUnary binds tighter than "^", so -2^2 is 4.
func (p *Parser) parseUnary() (Node, error) {
	if op, ok := p.isOp("+", "-"); ok {
		t := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Offset: t.Pos, Op: op, Operand: operand}, nil
	}
	return p.parsePercent()
}

func (p *Parser) parsePercent() (Node, error) {
	x, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp("%"); !ok {
			return x, nil
		}
		t := p.next()
		x = &Postfix{Offset: t.Pos, Op: "%", Operand: x}
	}
}

func (p *Parser) parseRange() (Node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.isOp(":"); !ok {
			return left, nil
		}
		t := p.next()
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		left = &Range{Offset: t.Pos, Left: left, Right: right}
	}
}

func (p *Parser) parsePostfix() (Node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch {
		case t.Kind == TokOperator && t.Text == "#":
			p.next()
			x = &Postfix{Offset: t.Pos, Op: "#", Operand: x}
		case t.Kind == TokLParen && isInvocable(x) && p.toks[p.pos-1].End == t.Pos:
			p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &Invoke{Offset: t.Pos, Callee: x, Args: args}
		default:
			return x, nil
		}
	}
}

func isInvocable(n Node) bool {
	switch n.(type) {
	case *Call, *Paren, *Invoke:
		return true
	}
	return false
}

func (p *Parser) parsePrimary() (Node, error) {
	t := p.next()
	switch t.Kind {
	case TokNumber:
		return &Number{Offset: t.Pos, Value: t.Num, Raw: t.Text}, nil
	case TokString:
		return &String{Offset: t.Pos, Value: t.Text}, nil
	case TokError:
		return &ErrorLit{Offset: t.Pos, Kind: t.Err}, nil
	case TokQuotedName:
		if _, ok := p.isOp("!"); !ok {
			return nil, p.unexpected(p.peek(), "'!'")
		}
		p.next()
		target, err := p.parseRefTarget()
		if err != nil {
			return nil, err
		}
		return &SheetRef{Offset: t.Pos, Sheet: t.Text, Quoted: true, Target: target}, nil
	case TokIdent:
		return p.parseIdent(t)
	case TokBracket:
		spec, err := parseTableSpec("", t.Text, t.Pos)
		if err != nil {
			return nil, err
		}
		return &StructRef{Offset: t.Pos, Spec: spec}, nil
	case TokLParen:
		return p.parseParenOrUnion(t)
	case TokLBrace:
		return p.parseArray(t)
	}
	return nil, p.unexpected(t, "")
}

func (p *Parser) parseIdent(t Token) (Node, error) {
	nxt := p.peek()
	adjacent := nxt.Pos == t.End

	switch {
	case nxt.Kind == TokOperator && nxt.Text == "!":
		p.next()
		target, err := p.parseRefTarget()
		if err != nil {
			return nil, err
		}
		return &SheetRef{Offset: t.Pos, Sheet: t.Text, Target: target}, nil

	case nxt.Kind == TokLParen && adjacent:
		p.next()
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &Call{Offset: t.Pos, Name: canonicalFunctionName(t.Text, p.loc), Original: t.Text, Args: args}, nil

	case nxt.Kind == TokBracket && adjacent:
		p.next()
		spec, err := parseTableSpec(t.Text, nxt.Text, nxt.Pos)
		if err != nil {
			return nil, err
		}
		return &StructRef{Offset: t.Pos, Spec: spec}, nil
	}

	upper := strings.ToUpper(t.Text)
	switch upper {
	case p.loc.LocalName("TRUE"):
		return &Bool{Offset: t.Pos, Value: true}, nil
	case p.loc.LocalName("FALSE"):
		return &Bool{Offset: t.Pos, Value: false}, nil
	}
	return &Ident{Offset: t.Pos, Name: t.Text}, nil
}

// parseRefTarget parses what may follow "Sheet!": a cell, column or row
// reference, a name, or #REF!.
func (p *Parser) parseRefTarget() (Node, error) {
	t := p.next()
	switch t.Kind {
	case TokIdent:
		if nxt := p.peek(); nxt.Kind == TokBracket && nxt.Pos == t.End {
			p.next()
			spec, err := parseTableSpec(t.Text, nxt.Text, nxt.Pos)
			if err != nil {
				return nil, err
			}
			return &StructRef{Offset: t.Pos, Spec: spec}, nil
		}
		return &Ident{Offset: t.Pos, Name: t.Text}, nil
	case TokNumber:
		return &Number{Offset: t.Pos, Value: t.Num, Raw: t.Text}, nil
	case TokError:
		return &ErrorLit{Offset: t.Pos, Kind: t.Err}, nil
	}
	return nil, p.unexpected(t, "reference after '!'")
}

// parseArgs parses an argument list after its opening parenthesis.
func (p *Parser) parseArgs() ([]Node, error) {
	sep := p.loc.ArgumentSeparator
	if p.peek().Kind == TokRParen {
		p.next()
		return nil, nil
	}
	var args []Node
	for {
		t := p.peek()
		if t.Kind == TokRParen || (t.Kind == TokSeparator && t.Sep == sep) {
			args = append(args, &Missing{Offset: t.Pos})
		} else {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		t = p.next()
		switch {
		case t.Kind == TokRParen:
			return args, nil
		case t.Kind == TokSeparator && t.Sep == sep:
			continue
		}
		return nil, p.unexpected(t, "'"+string(sep)+"' or ')'")
	}
}

func (p *Parser) parseParenOrUnion(open Token) (Node, error) {
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.isSep(p.loc.ArgumentSeparator) {
		if t := p.next(); t.Kind != TokRParen {
			return nil, p.unexpected(t, "')'")
		}
		return &Paren{Offset: open.Pos, Inner: first}, nil
	}
	items := []Node{first}
	for p.isSep(p.loc.ArgumentSeparator) {
		p.next()
		item, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if t := p.next(); t.Kind != TokRParen {
		return nil, p.unexpected(t, "')'")
	}
	return &Union{Offset: open.Pos, Items: items}, nil
}

func (p *Parser) parseArray(open Token) (Node, error) {
	var rows [][]Node
	var row []Node
	for {
		el, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		row = append(row, el)

		t := p.next()
		switch {
		case t.Kind == TokSeparator && t.Sep == p.loc.ArrayColumnSeparator:
			continue
		case t.Kind == TokSeparator && t.Sep == p.loc.ArrayRowSeparator:
			rows = append(rows, row)
			row = nil
			continue
		case t.Kind == TokRBrace:
			rows = append(rows, row)
			width := len(rows[0])
			for _, r := range rows[1:] {
				if len(r) != width {
					return nil, &ParseError{Kind: ErrExpectedChar, Offset: open.Pos, Expected: "array rows of equal width"}
				}
			}
			return &Array{Offset: open.Pos, Rows: rows}, nil
		}
		return nil, p.unexpected(t, "'}'")
	}
}

func canonicalFunctionName(raw string, loc *locale.Locale) string {
	u := strings.ToUpper(raw)
	for {
		switch {
		case strings.HasPrefix(u, "_XLFN."):
			u = u[len("_XLFN."):]
		case strings.HasPrefix(u, "_XLWS."):
			u = u[len("_XLWS."):]
		default:
			return loc.CanonicalName(u)
		}
	}
}

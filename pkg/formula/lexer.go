package formula

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Lexer splits formula text into tokens according to a locale.
type Lexer struct {
	src string
	pos int
	loc *locale.Locale
}

// NewLexer creates a lexer over src. A nil locale means canonical text.
func NewLexer(src string, loc *locale.Locale) *Lexer {
	if loc == nil {
		loc = locale.Canonical()
	}
	return &Lexer{src: src, loc: loc}
}

// Tokenize lexes the whole input. The final token is always TokEOF.
func Tokenize(src string, loc *locale.Locale) ([]Token, error) {
	lx := NewLexer(src, loc)
	var out []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Kind == TokEOF {
			return out, nil
		}
	}
}

func (lx *Lexer) peek() (rune, int) {
	if lx.pos >= len(lx.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(lx.src[lx.pos:])
}

func (lx *Lexer) peekAt(off int) rune {
	if off >= len(lx.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(lx.src[off:])
	return r
}

// Next returns the next token.
func (lx *Lexer) Next() (Token, error) {
	for {
		r, size := lx.peek()
		if size == 0 || !unicode.IsSpace(r) {
			break
		}
		lx.pos += size
	}

	start := lx.pos
	r, size := lx.peek()
	if size == 0 {
		return Token{Kind: TokEOF, Pos: start, End: start}, nil
	}

	switch {
	case isDigit(r) || (r == lx.loc.DecimalSeparator && isDigit(lx.peekAt(lx.pos+size))):
		return lx.number()
	case r == '"':
		return lx.str()
	case r == '\'':
		return lx.quotedName()
	case r == '[':
		return lx.bracket()
	case r == '#':
		if tok, ok := lx.errorLiteral(); ok {
			return tok, nil
		}
		lx.pos += size
		return Token{Kind: TokOperator, Text: "#", Pos: start, End: lx.pos}, nil
	case isIdentStart(r):
		return lx.ident()
	case r == lx.loc.ArgumentSeparator || r == lx.loc.ArrayColumnSeparator || r == lx.loc.ArrayRowSeparator:
		lx.pos += size
		return Token{Kind: TokSeparator, Text: string(r), Sep: r, Pos: start, End: lx.pos}, nil
	case r == '(':
		lx.pos++
		return Token{Kind: TokLParen, Text: "(", Pos: start, End: lx.pos}, nil
	case r == ')':
		lx.pos++
		return Token{Kind: TokRParen, Text: ")", Pos: start, End: lx.pos}, nil
	case r == '{':
		lx.pos++
		return Token{Kind: TokLBrace, Text: "{", Pos: start, End: lx.pos}, nil
	case r == '}':
		lx.pos++
		return Token{Kind: TokRBrace, Text: "}", Pos: start, End: lx.pos}, nil
	}

	if op := lx.operator(); op != "" {
		lx.pos += len(op)
		return Token{Kind: TokOperator, Text: op, Pos: start, End: lx.pos}, nil
	}

	return Token{}, &ParseError{Kind: ErrUnexpectedChar, Offset: start, Found: strconv.QuoteRune(r)}
}

func (lx *Lexer) operator() string {
	rest := lx.src[lx.pos:]
	for _, op := range []string{"<>", "<=", ">="} {
		if strings.HasPrefix(rest, op) {
			return op
		}
	}
	switch rest[0] {
	case '+', '-', '*', '/', '^', '&', '=', '<', '>', '%', ':', '!':
		return rest[:1]
	}
	return ""
}

func (lx *Lexer) number() (Token, error) {
	start := lx.pos
	dec := lx.loc.DecimalSeparator
	group := lx.loc.GroupSeparator

	digits := func() {
		for lx.pos < len(lx.src) && isDigit(rune(lx.src[lx.pos])) {
			lx.pos++
		}
	}

	digits()
	for group != 0 && lx.pos > start {
		r, size := lx.peek()
		if r != group || !lx.threeDigitsAt(lx.pos+size) {
			break
		}
		lx.pos += size + 3
	}
	if r, size := lx.peek(); r == dec {
		lx.pos += size
		digits()
	}
	if r, _ := lx.peek(); r == 'e' || r == 'E' {
		save := lx.pos
		lx.pos++
		if r2, _ := lx.peek(); r2 == '+' || r2 == '-' {
			lx.pos++
		}
		if r3, _ := lx.peek(); !isDigit(r3) {
			lx.pos = save
			return Token{}, &ParseError{Kind: ErrInvalidNumber, Offset: start, Found: lx.src[start : save+1]}
		}
		digits()
	}

	raw := lx.src[start:lx.pos]
	n, err := strconv.ParseFloat(lx.loc.NormalizeNumber(raw), 64)
	if err != nil || math.IsInf(n, 0) {
		return Token{}, &ParseError{Kind: ErrInvalidNumber, Offset: start, Found: raw}
	}
	return Token{Kind: TokNumber, Text: raw, Num: n, Pos: start, End: lx.pos}, nil
}

func (lx *Lexer) threeDigitsAt(off int) bool {
	if off+3 > len(lx.src) {
		return false
	}
	for i := 0; i < 3; i++ {
		if !isDigit(rune(lx.src[off+i])) {
			return false
		}
	}
	return off+3 == len(lx.src) || !isDigit(rune(lx.src[off+3]))
}

func (lx *Lexer) str() (Token, error) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return Token{}, &ParseError{Kind: ErrUnexpectedEOF, Offset: len(lx.src), Expected: `closing '"'`}
		}
		ch := lx.src[lx.pos]
		if ch == '"' {
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '"' {
				sb.WriteByte('"')
				lx.pos += 2
				continue
			}
			lx.pos++
			return Token{Kind: TokString, Text: sb.String(), Pos: start, End: lx.pos}, nil
		}
		sb.WriteByte(ch)
		lx.pos++
	}
}

// quotedName lexes 'Sheet Name' with '' as an escaped quote.
func (lx *Lexer) quotedName() (Token, error) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return Token{}, &ParseError{Kind: ErrUnexpectedEOF, Offset: len(lx.src), Expected: "closing \"'\""}
		}
		ch := lx.src[lx.pos]
		if ch == '\'' {
			if lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '\'' {
				sb.WriteByte('\'')
				lx.pos += 2
				continue
			}
			lx.pos++
			return Token{Kind: TokQuotedName, Text: sb.String(), Pos: start, End: lx.pos}, nil
		}
		sb.WriteByte(ch)
		lx.pos++
	}
}

// bracket lexes a balanced [...] group. The token text keeps the inner
// content verbatim, nested brackets and ' escapes included.
func (lx *Lexer) bracket() (Token, error) {
	start := lx.pos
	depth := 0
	for lx.pos < len(lx.src) {
		ch := lx.src[lx.pos]
		switch ch {
		case '\'':
			lx.pos += 2
			continue
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				lx.pos++
				return Token{Kind: TokBracket, Text: lx.src[start+1 : lx.pos-1], Pos: start, End: lx.pos}, nil
			}
		}
		lx.pos++
	}
	return Token{}, &ParseError{Kind: ErrUnexpectedEOF, Offset: len(lx.src), Expected: "']'"}
}

func (lx *Lexer) errorLiteral() (Token, bool) {
	rest := lx.src[lx.pos:]
	for _, lit := range value.ErrorLiterals() {
		if len(rest) >= len(lit) && strings.EqualFold(rest[:len(lit)], lit) {
			kind, _ := value.ParseErrorKind(lit)
			start := lx.pos
			lx.pos += len(lit)
			return Token{Kind: TokError, Text: lit, Err: kind, Pos: start, End: lx.pos}, true
		}
	}
	return Token{}, false
}

func (lx *Lexer) ident() (Token, error) {
	start := lx.pos
	first, size := lx.peek()
	lx.pos += size
	if first == '\\' {
		if r, _ := lx.peek(); !isIdentPart(r) {
			return Token{}, &ParseError{Kind: ErrUnexpectedChar, Offset: start, Found: strconv.QuoteRune(first)}
		}
	}
	for {
		r, size := lx.peek()
		if size == 0 {
			break
		}
		if isIdentPart(r) {
			lx.pos += size
			continue
		}
		if r == '[' && isR1C1Prefix(lx.src[start:lx.pos]) {
			end := strings.IndexByte(lx.src[lx.pos:], ']')
			if end < 0 {
				return Token{}, &ParseError{Kind: ErrUnexpectedEOF, Offset: len(lx.src), Expected: "']'"}
			}
			inner := lx.src[lx.pos+1 : lx.pos+end]
			if _, err := strconv.Atoi(inner); err != nil {
				return Token{}, &ParseError{Kind: ErrInvalidNumber, Offset: lx.pos + 1, Found: inner}
			}
			lx.pos += end + 1
			continue
		}
		break
	}
	return Token{Kind: TokIdent, Text: lx.src[start:lx.pos], Pos: start, End: lx.pos}, nil
}

// isR1C1Prefix reports whether s is an R1C1 reference prefix that may be
// followed by a bracketed offset: "R", "C", "R2C", "R[1]C" and so on.
func isR1C1Prefix(s string) bool {
	u := strings.ToUpper(s)
	if u == "" {
		return false
	}
	last := u[len(u)-1]
	if last != 'R' && last != 'C' {
		return false
	}
	i := 0
	if u[0] == 'R' {
		i = 1
		i = skipRowColSpec(u, i)
		if i == len(u) {
			return last == 'R' && len(u) == 1
		}
	}
	if u[i] != 'C' {
		return false
	}
	return i == len(u)-1
}

func skipRowColSpec(u string, i int) int {
	if i < len(u) && u[i] == '[' {
		end := strings.IndexByte(u[i:], ']')
		if end < 0 {
			return len(u)
		}
		return i + end + 1
	}
	for i < len(u) && u[i] >= '0' && u[i] <= '9' {
		i++
	}
	return i
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || r == '\\' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || r == '.' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

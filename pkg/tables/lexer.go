package tables

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokColumn // [Name]
	tokTable  // 'Quoted Name'
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind   tokenKind
	text   string
	offset int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(offset int, msg string) *ParseError {
	return &ParseError{Offset: offset, Message: msg}
}

// tokenize splits src into tokens, ending with tokEOF.
func tokenize(src string) ([]token, error) {
	l := &lexer{src: src}
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, offset: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", offset: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", offset: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", offset: start}, nil
	case c == '"':
		s, err := l.quoted('"', '"')
		return token{kind: tokString, text: s, offset: start}, err
	case c == '\'':
		s, err := l.quoted('\'', '\'')
		return token{kind: tokTable, text: s, offset: start}, err
	case c == '[':
		s, err := l.quoted('[', ']')
		if err == nil && strings.TrimSpace(s) == "" {
			err = l.errorf(start, "empty column name")
		}
		return token{kind: tokColumn, text: s, offset: start}, err
	case c >= '0' && c <= '9' || c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		return l.number(), nil
	}

	if op := l.operator(); op != "" {
		return token{kind: tokOp, text: op, offset: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	if unicode.IsLetter(r) || r == '_' {
		for l.pos < len(l.src) {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '.' {
				break
			}
			l.pos += size
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], offset: start}, nil
	}
	return token{}, l.errorf(start, "unexpected character "+string(r))
}

// quoted reads text between open and close. A doubled close character
// stands for itself.
func (l *lexer) quoted(open, close byte) (string, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == close {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == close {
				sb.WriteByte(close)
				l.pos += 2
				continue
			}
			l.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return "", l.errorf(start, "unterminated "+string(open))
}

func (l *lexer) number() token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], offset: start}
}

var operators = []string{"&&", "||", "<>", "<=", ">=", "==", "+", "-", "*", "/", "^", "&", "=", "<", ">"}

func (l *lexer) operator() string {
	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

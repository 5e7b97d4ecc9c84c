package formula

import (
	"fmt"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// TokenKind identifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNumber
	TokString
	TokError
	TokIdent
	TokQuotedName
	TokBracket
	TokOperator
	TokSeparator
	TokLParen
	TokRParen
	TokLBrace
	TokRBrace
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "end of input"
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokError:
		return "error literal"
	case TokIdent:
		return "identifier"
	case TokQuotedName:
		return "quoted name"
	case TokBracket:
		return "bracket reference"
	case TokOperator:
		return "operator"
	case TokSeparator:
		return "separator"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	case TokLBrace:
		return "'{'"
	case TokRBrace:
		return "'}'"
	}
	return "token"
}

// Token is one lexeme. Pos and End are byte offsets into the source.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
	End  int

	// Num holds the parsed value of a number token.
	Num float64

	// Err holds the code of an error literal.
	Err value.ErrorKind

	// Sep holds the rune of a separator token.
	Sep rune
}

func (t Token) String() string {
	if t.Kind == TokEOF {
		return t.Kind.String()
	}
	return fmt.Sprintf("%q", t.Text)
}

// Package criteria parses the single-argument filter expressions used by
// conditional aggregates such as SUMIF and COUNTIFS (">5", "ap*", "<>",
// error literals) and matches candidate values against them.
package criteria

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Op is the comparison a criterion applies.
type Op uint8

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var opPrefixes = []struct {
	text string
	op   Op
}{
	{"<>", Ne},
	{"<=", Le},
	{">=", Ge},
	{"<", Lt},
	{">", Gt},
	{"=", Eq},
}

func (o Op) String() string {
	for _, p := range opPrefixes {
		if p.op == o {
			return p.text
		}
	}
	return "?"
}

// Criteria is a parsed predicate: an operator and a typed operand. It is
// built once per call and reused for every candidate.
type Criteria struct {
	Op      Op
	Operand value.Value

	folded  string
	pattern glob.Glob
}

// Parse builds a criterion from a raw argument value. Numbers, booleans,
// errors and Blank become equality tests; text may carry a leading
// comparison operator. References, arrays and lambdas are rejected with
// #VALUE!.
func Parse(v value.Value) (*Criteria, value.ErrorKind) {
	switch v.Kind() {
	case value.KindBlank, value.KindNumber, value.KindBool, value.KindError:
		return &Criteria{Op: Eq, Operand: v}, value.NoError
	case value.KindText:
		return parseText(v.Str())
	case value.KindArray, value.KindReference, value.KindLambda, value.KindSpill:
		return nil, value.ErrValue
	}
	return nil, value.ErrValue
}

func parseText(s string) (*Criteria, value.ErrorKind) {
	op, rest, explicit := Eq, s, false
	for _, p := range opPrefixes {
		if strings.HasPrefix(s, p.text) {
			op, rest, explicit = p.op, s[len(p.text):], true
			break
		}
	}

	if rest == "" {
		if explicit && op != Eq && op != Ne {
			return nil, value.ErrValue
		}
		return &Criteria{Op: op, Operand: value.Blank()}, value.NoError
	}
	if kind, ok := value.ParseErrorKind(rest); ok {
		return &Criteria{Op: op, Operand: value.Error(kind)}, value.NoError
	}
	if b, ok := exactBool(rest); ok {
		return &Criteria{Op: op, Operand: value.Bool(b)}, value.NoError
	}
	if n, ok := value.ParseNumberText(rest); ok {
		return &Criteria{Op: op, Operand: value.Number(n)}, value.NoError
	}

	c := &Criteria{Op: op, Operand: value.Text(rest)}
	if op == Eq || op == Ne {
		g, literal, err := compileWildcard(rest)
		if err != nil {
			return nil, value.ErrValue
		}
		c.pattern = g
		c.folded = literal
	} else {
		c.folded = value.FoldText(rest)
	}
	return c, value.NoError
}

// Wildcard builds an equality criterion that matches text against a
// pattern with * and ? wildcards, as exact-match lookups do.
func Wildcard(pattern string) *Criteria {
	c := &Criteria{Op: Eq, Operand: value.Text(pattern)}
	g, literal, err := compileWildcard(pattern)
	if err != nil {
		c.folded = value.FoldText(pattern)
		return c
	}
	c.pattern = g
	c.folded = literal
	return c
}

// compileWildcard translates * and ? wildcards with ~ escapes into a glob.
// When the pattern has no wildcards the glob is nil and the unescaped,
// case-folded literal is returned instead.
func compileWildcard(p string) (glob.Glob, string, error) {
	var pat, lit strings.Builder
	wild := false
	for i := 0; i < len(p); i++ {
		ch := p[i]
		switch {
		case ch == '~' && i+1 < len(p) && (p[i+1] == '*' || p[i+1] == '?' || p[i+1] == '~'):
			i++
			pat.WriteString(glob.QuoteMeta(string(p[i])))
			lit.WriteByte(p[i])
		case ch == '*' || ch == '?':
			wild = true
			pat.WriteByte(ch)
		default:
			pat.WriteString(glob.QuoteMeta(string(ch)))
			lit.WriteByte(ch)
		}
	}
	if !wild {
		return nil, value.FoldText(lit.String()), nil
	}
	g, err := glob.Compile(value.FoldText(pat.String()))
	if err != nil {
		return nil, "", err
	}
	return g, "", nil
}

// Matches reports whether candidate satisfies the criterion. The candidate
// is coerced to the operand's type: Blank reads as 0, FALSE or "", and
// text only counts as a boolean when it spells TRUE or FALSE.
func (c *Criteria) Matches(candidate value.Value) bool {
	candidate = value.Scalar(candidate)
	switch c.Operand.Kind() {
	case value.KindBlank:
		empty := candidate.IsEmpty()
		if c.Op == Ne {
			return !empty
		}
		return empty
	case value.KindNumber:
		n, ok := numberOf(candidate)
		if !ok {
			return c.Op == Ne
		}
		return c.compare(cmpFloat(n, c.Operand.Num()))
	case value.KindBool:
		b, ok := boolOf(candidate)
		if !ok {
			return c.Op == Ne
		}
		return c.compare(cmpBool(b, c.Operand.Truth()))
	case value.KindError:
		if !candidate.IsError() {
			return c.Op == Ne
		}
		return c.compare(cmpEq(candidate.Err() == c.Operand.Err()))
	case value.KindText:
		s, ok := textOf(candidate)
		if !ok {
			return c.Op == Ne
		}
		if c.Op == Eq || c.Op == Ne {
			return c.compare(cmpEq(c.matchText(s)))
		}
		return c.compare(strings.Compare(value.FoldText(s), c.folded))
	}
	return false
}

func (c *Criteria) matchText(s string) bool {
	folded := value.FoldText(s)
	if c.pattern != nil {
		return c.pattern.Match(folded)
	}
	return folded == c.folded
}

func (c *Criteria) compare(cmp int) bool {
	switch c.Op {
	case Eq:
		return cmp == 0
	case Ne:
		return cmp != 0
	case Lt:
		return cmp < 0
	case Le:
		return cmp <= 0
	case Gt:
		return cmp > 0
	case Ge:
		return cmp >= 0
	}
	return false
}

func numberOf(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindNumber:
		return v.Num(), true
	case value.KindBlank:
		return 0, true
	case value.KindText:
		return value.ParseNumberText(v.Str())
	}
	return 0, false
}

func boolOf(v value.Value) (bool, bool) {
	switch v.Kind() {
	case value.KindBool:
		return v.Truth(), true
	case value.KindBlank:
		return false, true
	case value.KindText:
		return exactBool(v.Str())
	}
	return false, false
}

// exactBool accepts only the upper-case spellings TRUE and FALSE.
func exactBool(s string) (bool, bool) {
	switch s {
	case "TRUE":
		return true, true
	case "FALSE":
		return false, true
	}
	return false, false
}

func textOf(v value.Value) (string, bool) {
	switch v.Kind() {
	case value.KindText:
		return v.Str(), true
	case value.KindBlank:
		return "", true
	}
	return "", false
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func cmpEq(eq bool) int {
	if eq {
		return 0
	}
	return 1
}

package formula

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/gridcalc/gridcalc/pkg/locale"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Format serializes n as formula text in loc without a leading "=".
// Function names are localized; numbers keep full precision.
func Format(n Node, loc *locale.Locale) string {
	if loc == nil {
		loc = locale.Canonical()
	}
	var sb strings.Builder
	w := &writer{sb: &sb, loc: loc}
	w.node(n)
	return sb.String()
}

type writer struct {
	sb  *strings.Builder
	loc *locale.Locale
}

func (w *writer) node(n Node) {
	switch t := n.(type) {
	case *Number:
		w.sb.WriteString(formatLiteral(t.Value, w.loc))
	case *String:
		w.sb.WriteString(`"` + strings.ReplaceAll(t.Value, `"`, `""`) + `"`)
	case *Bool:
		if t.Value {
			w.sb.WriteString(w.loc.LocalName("TRUE"))
		} else {
			w.sb.WriteString(w.loc.LocalName("FALSE"))
		}
	case *ErrorLit:
		w.sb.WriteString(t.Kind.String())
	case *Ident:
		w.sb.WriteString(t.Name)
	case *SheetRef:
		w.sb.WriteString(FormatSheetName(t.Sheet, t.Quoted))
		w.sb.WriteByte('!')
		w.node(t.Target)
	case *Range:
		w.node(t.Left)
		w.sb.WriteByte(':')
		w.node(t.Right)
	case *Union:
		w.sb.WriteByte('(')
		w.list(t.Items)
		w.sb.WriteByte(')')
	case *Paren:
		w.sb.WriteByte('(')
		w.node(t.Inner)
		w.sb.WriteByte(')')
	case *Unary:
		w.sb.WriteString(t.Op)
		w.node(t.Operand)
	case *Postfix:
		w.node(t.Operand)
		w.sb.WriteString(t.Op)
	case *Binary:
		w.node(t.Left)
		w.sb.WriteString(t.Op)
		w.node(t.Right)
	case *Call:
		w.sb.WriteString(w.loc.LocalName(t.Name))
		w.sb.WriteByte('(')
		w.list(t.Args)
		w.sb.WriteByte(')')
	case *Invoke:
		w.node(t.Callee)
		w.sb.WriteByte('(')
		w.list(t.Args)
		w.sb.WriteByte(')')
	case *Array:
		w.sb.WriteByte('{')
		for i, row := range t.Rows {
			if i > 0 {
				w.sb.WriteRune(w.loc.ArrayRowSeparator)
			}
			for j, el := range row {
				if j > 0 {
					w.sb.WriteRune(w.loc.ArrayColumnSeparator)
				}
				w.node(el)
			}
		}
		w.sb.WriteByte('}')
	case *Missing:
	case *StructRef:
		w.sb.WriteString(formatTableSpec(t.Spec))
	}
}

func (w *writer) list(nodes []Node) {
	for i, n := range nodes {
		if i > 0 {
			w.sb.WriteRune(w.loc.ArgumentSeparator)
		}
		w.node(n)
	}
}

// formatLiteral writes the shortest text that parses back to exactly v.
func formatLiteral(v float64, loc *locale.Locale) string {
	var s string
	abs := math.Abs(v)
	if v == 0 || (abs >= 1e-6 && abs < 1e21) {
		s = strconv.FormatFloat(v, 'f', -1, 64)
	} else {
		s = strconv.FormatFloat(v, 'E', -1, 64)
	}
	if loc.DecimalSeparator != '.' {
		s = strings.Replace(s, ".", string(loc.DecimalSeparator), 1)
	}
	return s
}

// FormatSheetName renders a sheet name for use before "!", quoting it
// when it is not a plain identifier.
func FormatSheetName(name string, quoted bool) string {
	if quoted || needsQuote(name) {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func needsQuote(name string) bool {
	if name == "" {
		return true
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) {
			return true
		}
		if !isIdentPart(r) || unicode.IsSpace(r) {
			return true
		}
	}
	if _, ok := value.ParseA1(strings.ReplaceAll(name, "$", "")); ok {
		return true
	}
	return isR1C1Prefix(name)
}

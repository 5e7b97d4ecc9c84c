package functions

import (
	"strconv"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// ParseReferenceText turns reference text such as "Sheet2!$A$1:B3",
// "'My Sheet'!C4" or, in R1C1 style, "R[-1]C2" into a Reference relative
// to the calling cell.
func ParseReferenceText(ctx Context, text string, a1 bool) (*value.Reference, bool) {
	text = strings.TrimSpace(text)
	caller := ctx.Caller()
	sheet := caller.Sheet
	if i := strings.LastIndexByte(text, '!'); i >= 0 {
		name := text[:i]
		if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
			name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
		}
		id, ok := ctx.SheetID(name)
		if !ok {
			return nil, false
		}
		sheet, text = id, text[i+1:]
	}
	if text == "" {
		return nil, false
	}

	parse := func(s string) (value.Addr, bool) {
		if a1 {
			return value.ParseA1(strings.ReplaceAll(s, "$", ""))
		}
		return parseR1C1(s, caller.Addr)
	}
	start, end := text, text
	if i := strings.IndexByte(text, ':'); i >= 0 {
		start, end = text[:i], text[i+1:]
	}
	from, ok := parse(start)
	if !ok {
		return nil, false
	}
	to, ok := parse(end)
	if !ok {
		return nil, false
	}
	rows, cols := ctx.SheetDimensions(sheet)
	area := value.NewArea(from, to)
	if area.End.Row >= rows || area.End.Col >= cols {
		return nil, false
	}
	return value.NewReference(sheet, area), true
}

// parseR1C1 parses "R2C3", "R[1]C[-2]" or "RC" relative to base.
func parseR1C1(s string, base value.Addr) (value.Addr, bool) {
	s = strings.ToUpper(s)
	if !strings.HasPrefix(s, "R") {
		return value.Addr{}, false
	}
	row, rest, ok := r1c1Part(s[1:], int64(base.Row))
	if !ok || !strings.HasPrefix(rest, "C") {
		return value.Addr{}, false
	}
	col, rest, ok := r1c1Part(rest[1:], int64(base.Col))
	if !ok || rest != "" {
		return value.Addr{}, false
	}
	if row < 0 || col < 0 || col >= value.MaxCols || row > int64(^uint32(0)) {
		return value.Addr{}, false
	}
	return value.Addr{Row: uint32(row), Col: uint32(col)}, true
}

func r1c1Part(s string, base int64) (int64, string, bool) {
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return 0, "", false
		}
		n, err := strconv.ParseInt(s[1:end], 10, 64)
		if err != nil {
			return 0, "", false
		}
		return base + n, s[end+1:], true
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return base, s, true
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil || n == 0 {
		return 0, "", false
	}
	return n - 1, s[i:], true
}

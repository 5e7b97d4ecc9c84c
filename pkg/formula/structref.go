package formula

import (
	"strings"
)

// parseTableSpec interprets the inside of a structured reference bracket:
// "", "Col", "@Col", "@[Col]", "#All", "[#Headers],[Col]", "[A]:[B]".
func parseTableSpec(table, inner string, offset int) (TableSpec, error) {
	spec := TableSpec{Table: table}
	fail := func(msg string) error {
		return &ParseError{Kind: ErrUnexpectedChar, Offset: offset, Found: msg}
	}

	trimmed := strings.TrimSpace(inner)
	switch {
	case trimmed == "":
		return spec, nil
	case strings.HasPrefix(trimmed, "@"):
		spec.Section = SectionThisRow
		rest := strings.TrimSpace(trimmed[1:])
		if rest == "" {
			return spec, nil
		}
		if strings.HasPrefix(rest, "[") {
			items, err := splitBracketItems(rest)
			if err != nil || len(items) != 1 {
				return spec, fail("invalid this-row reference [" + inner + "]")
			}
			rest = items[0]
		}
		spec.ColumnStart = unescapeColumn(rest)
		return spec, nil
	case strings.HasPrefix(trimmed, "#"):
		sec, ok := parseSection(trimmed)
		if !ok {
			return spec, fail("unknown table section " + trimmed)
		}
		spec.Section = sec
		return spec, nil
	case !strings.HasPrefix(trimmed, "["):
		spec.ColumnStart = unescapeColumn(inner)
		return spec, nil
	}

	// A list of bracketed items separated by "," or ";" with at most one
	// column range joined by ":".
	rest := trimmed
	sectionSet := false
	for rest != "" {
		item, n, err := nextBracketItem(rest)
		if err != nil {
			return spec, fail(err.Error())
		}
		rest = strings.TrimSpace(rest[n:])

		if strings.HasPrefix(item, "#") {
			sec, ok := parseSection(item)
			if !ok || sectionSet {
				return spec, fail("unexpected section " + item)
			}
			spec.Section, sectionSet = sec, true
		} else {
			if spec.ColumnStart != "" {
				return spec, fail("more than one column in [" + inner + "]")
			}
			spec.ColumnStart = unescapeColumn(item)
			if strings.HasPrefix(rest, ":") {
				end, n, err := nextBracketItem(strings.TrimSpace(rest[1:]))
				if err != nil {
					return spec, fail(err.Error())
				}
				spec.ColumnEnd = unescapeColumn(end)
				rest = strings.TrimSpace(strings.TrimSpace(rest[1:])[n:])
			}
		}

		if rest == "" {
			break
		}
		if rest[0] != ',' && rest[0] != ';' {
			return spec, fail("unexpected " + rest)
		}
		rest = strings.TrimSpace(rest[1:])
	}
	return spec, nil
}

type bracketError string

func (e bracketError) Error() string { return string(e) }

// nextBracketItem reads one "[...]" item from the start of s, honoring '
// escapes, and returns its inner text and the number of bytes consumed.
func nextBracketItem(s string) (string, int, error) {
	if !strings.HasPrefix(s, "[") {
		return "", 0, bracketError("expected '[' in " + s)
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\'':
			i++
		case ']':
			return s[1:i], i + 1, nil
		}
	}
	return "", 0, bracketError("unterminated '[' in " + s)
}

func splitBracketItems(s string) ([]string, error) {
	var out []string
	for s != "" {
		item, n, err := nextBracketItem(s)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		s = strings.TrimLeft(s[n:], " ,;")
	}
	return out, nil
}

func parseSection(s string) (Section, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "#all":
		return SectionAll, true
	case "#data":
		return SectionData, true
	case "#headers":
		return SectionHeaders, true
	case "#totals":
		return SectionTotals, true
	case "#this row":
		return SectionThisRow, true
	}
	return 0, false
}

func unescapeColumn(s string) string {
	if !strings.ContainsRune(s, '\'') {
		return strings.TrimSpace(s)
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return strings.TrimSpace(sb.String())
}

func escapeColumn(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', ']', '#', '\'':
			sb.WriteByte('\'')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func formatTableSpec(spec TableSpec) string {
	var sb strings.Builder
	sb.WriteString(spec.Table)
	sb.WriteByte('[')
	switch {
	case spec.ColumnStart == "" && spec.Section == SectionData:
	case spec.ColumnStart == "":
		sb.WriteString(spec.Section.String())
	case spec.Section == SectionThisRow && spec.ColumnEnd == "":
		sb.WriteString("@[" + escapeColumn(spec.ColumnStart) + "]")
	case spec.Section == SectionData && spec.ColumnEnd == "":
		sb.WriteString("[" + escapeColumn(spec.ColumnStart) + "]")
	default:
		if spec.Section != SectionData {
			sb.WriteString("[" + spec.Section.String() + "],")
		}
		sb.WriteString("[" + escapeColumn(spec.ColumnStart) + "]")
		if spec.ColumnEnd != "" {
			sb.WriteString(":[" + escapeColumn(spec.ColumnEnd) + "]")
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

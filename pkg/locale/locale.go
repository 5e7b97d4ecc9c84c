// Package locale maps formulas between their canonical text form (English
// function names, "." decimal separator, "," argument separator) and a
// localized form with its own separators and function names.
package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Locale describes how formula text is written for one language.
type Locale struct {
	// Tag is the BCP 47 language tag, e.g. en-US or de-DE.
	Tag language.Tag

	// DecimalSeparator separates the integer and fraction of a number.
	DecimalSeparator rune

	// GroupSeparator groups thousands inside number literals. Zero
	// disables grouping.
	GroupSeparator rune

	// ArgumentSeparator separates function arguments and union members.
	ArgumentSeparator rune

	// ArrayColumnSeparator separates columns in an array literal.
	ArrayColumnSeparator rune

	// ArrayRowSeparator separates rows in an array literal.
	ArrayRowSeparator rune

	toCanonical map[string]string
	toLocal     map[string]string
}

// New builds a locale. names maps canonical function names to their
// localized spelling; both sides are case-insensitive.
func New(tag language.Tag, decimal, group, arg, arrayCol, arrayRow rune, names map[string]string) (*Locale, error) {
	l := &Locale{
		Tag:                  tag,
		DecimalSeparator:     decimal,
		GroupSeparator:       group,
		ArgumentSeparator:    arg,
		ArrayColumnSeparator: arrayCol,
		ArrayRowSeparator:    arrayRow,
		toCanonical:          make(map[string]string, len(names)),
		toLocal:              make(map[string]string, len(names)),
	}
	for canonical, local := range names {
		c := strings.ToUpper(canonical)
		loc := strings.ToUpper(local)
		if prev, dup := l.toCanonical[loc]; dup && prev != c {
			return nil, fmt.Errorf("localized name %s maps to both %s and %s", loc, prev, c)
		}
		l.toCanonical[loc] = c
		l.toLocal[c] = loc
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Validate checks that the separators are usable together.
func (l *Locale) Validate() error {
	if l.DecimalSeparator == 0 || l.ArgumentSeparator == 0 ||
		l.ArrayColumnSeparator == 0 || l.ArrayRowSeparator == 0 {
		return fmt.Errorf("locale %s: separators must be set", l.Tag)
	}
	if l.DecimalSeparator == l.ArgumentSeparator || l.DecimalSeparator == l.GroupSeparator {
		return fmt.Errorf("locale %s: decimal separator %q collides with another separator", l.Tag, l.DecimalSeparator)
	}
	if l.GroupSeparator != 0 && l.GroupSeparator == l.ArgumentSeparator {
		return fmt.Errorf("locale %s: group separator %q equals the argument separator", l.Tag, l.GroupSeparator)
	}
	if l.ArrayColumnSeparator == l.ArrayRowSeparator {
		return fmt.Errorf("locale %s: array row and column separators are both %q", l.Tag, l.ArrayRowSeparator)
	}
	for _, r := range []rune{l.DecimalSeparator, l.ArgumentSeparator, l.ArrayColumnSeparator, l.ArrayRowSeparator} {
		if strings.ContainsRune("()+-*/^&=<>\"'![]{}#%:", r) {
			return fmt.Errorf("locale %s: separator %q is an operator character", l.Tag, r)
		}
	}
	return nil
}

// Name returns the BCP 47 string of the locale tag.
func (l *Locale) Name() string { return l.Tag.String() }

// IsCanonical reports whether the locale writes canonical text.
func (l *Locale) IsCanonical() bool {
	return l.DecimalSeparator == '.' && l.ArgumentSeparator == ',' &&
		l.ArrayColumnSeparator == ',' && l.ArrayRowSeparator == ';' && len(l.toLocal) == 0
}

// CanonicalName translates a function name written in this locale to its
// canonical English spelling. Unknown names are upper-cased unchanged.
func (l *Locale) CanonicalName(name string) string {
	upper := strings.ToUpper(name)
	if c, ok := l.toCanonical[upper]; ok {
		return c
	}
	return upper
}

// LocalName translates a canonical function name into this locale.
func (l *Locale) LocalName(canonical string) string {
	upper := strings.ToUpper(canonical)
	if loc, ok := l.toLocal[upper]; ok {
		return loc
	}
	return upper
}

// FormatNumber renders n in the General format with the locale's decimal
// separator.
func (l *Locale) FormatNumber(n float64) string {
	s := value.FormatNumber(n)
	if l.DecimalSeparator != '.' {
		s = strings.Replace(s, ".", string(l.DecimalSeparator), 1)
	}
	return s
}

// NormalizeNumber rewrites a number literal written in this locale into
// the "."-decimal form strconv understands. Group separators are dropped.
func (l *Locale) NormalizeNumber(raw string) string {
	var sb strings.Builder
	for _, r := range raw {
		switch {
		case l.GroupSeparator != 0 && r == l.GroupSeparator:
		case r == l.DecimalSeparator:
			sb.WriteByte('.')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

package functions

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// MaxTextLength is the longest string a text function may produce.
const MaxTextLength = 32767

func init() {
	register("CONCAT", 1, -1, 0, fnConcat)
	register("CONCATENATE", 1, -1, 0, lifted(func(args []value.Value) value.Value {
		var sb strings.Builder
		for _, a := range args {
			s, errv, ok := textArg(a)
			if !ok {
				return errv
			}
			sb.WriteString(s)
		}
		return textResult(sb.String())
	}))
	register("TEXTJOIN", 3, -1, 0, fnTextJoin)
	register("LEN", 1, 1, 0, textFunc(func(s string) value.Value {
		return value.Number(float64(utf8.RuneCountInString(s)))
	}))
	register("UPPER", 1, 1, 0, textFunc(func(s string) value.Value { return value.Text(cases.Upper(language.Und).String(s)) }))
	register("LOWER", 1, 1, 0, textFunc(func(s string) value.Value { return value.Text(cases.Lower(language.Und).String(s)) }))
	register("TRIM", 1, 1, 0, textFunc(func(s string) value.Value {
		return value.Text(strings.Join(strings.Fields(s), " "))
	}))
	register("LEFT", 1, 2, 0, lifted(fnLeft))
	register("RIGHT", 1, 2, 0, lifted(fnRight))
	register("MID", 3, 3, 0, lifted(fnMid))
	register("REPT", 2, 2, 0, lifted(fnRept))
	register("EXACT", 2, 2, 0, lifted(func(args []value.Value) value.Value {
		a, errv, ok := textArg(args[0])
		if !ok {
			return errv
		}
		b, errv, ok := textArg(args[1])
		if !ok {
			return errv
		}
		return value.Bool(a == b)
	}))
	register("VALUE", 1, 1, 0, lifted(func(args []value.Value) value.Value {
		switch args[0].Kind() {
		case value.KindNumber:
			return args[0]
		case value.KindBlank:
			return value.Number(0)
		case value.KindText:
			if n, ok := value.ParseNumberText(args[0].Str()); ok {
				return value.Number(n)
			}
		case value.KindError:
			return args[0]
		}
		return value.Error(value.ErrValue)
	}))
}

func textResult(s string) value.Value {
	if utf8.RuneCountInString(s) > MaxTextLength {
		return value.Error(value.ErrValue)
	}
	return value.Text(s)
}

func textFunc(fn func(string) value.Value) Func {
	return lifted(func(args []value.Value) value.Value {
		s, errv, ok := textArg(args[0])
		if !ok {
			return errv
		}
		return fn(s)
	})
}

func fnConcat(ctx Context, args []value.Value) value.Value {
	var sb strings.Builder
	for _, a := range args {
		for _, el := range elements(ctx, a) {
			s, errv, ok := textArg(el)
			if !ok {
				return errv
			}
			sb.WriteString(s)
		}
	}
	return textResult(sb.String())
}

func fnTextJoin(ctx Context, args []value.Value) value.Value {
	delim, errv, ok := textArg(value.Scalar(ctx.Deref(args[0])))
	if !ok {
		return errv
	}
	skipEmpty, errv, ok := boolArg(value.Scalar(ctx.Deref(args[1])))
	if !ok {
		return errv
	}
	var parts []string
	for _, a := range args[2:] {
		for _, el := range elements(ctx, a) {
			s, errv, ok := textArg(el)
			if !ok {
				return errv
			}
			if skipEmpty && s == "" {
				continue
			}
			parts = append(parts, s)
		}
	}
	return textResult(strings.Join(parts, delim))
}

func countArg(args []value.Value, i int) (int, value.Value, bool) {
	n, errv, ok := intArg(optArg(args, i, value.Number(1)))
	if !ok {
		return 0, errv, false
	}
	if n < 0 {
		return 0, value.Error(value.ErrValue), false
	}
	return n, value.Value{}, true
}

func fnLeft(args []value.Value) value.Value {
	s, errv, ok := textArg(args[0])
	if !ok {
		return errv
	}
	n, errv, ok := countArg(args, 1)
	if !ok {
		return errv
	}
	r := []rune(s)
	return value.Text(string(r[:min(n, len(r))]))
}

func fnRight(args []value.Value) value.Value {
	s, errv, ok := textArg(args[0])
	if !ok {
		return errv
	}
	n, errv, ok := countArg(args, 1)
	if !ok {
		return errv
	}
	r := []rune(s)
	return value.Text(string(r[len(r)-min(n, len(r)):]))
}

func fnMid(args []value.Value) value.Value {
	s, errv, ok := textArg(args[0])
	if !ok {
		return errv
	}
	start, errv, ok := intArg(args[1])
	if !ok {
		return errv
	}
	n, errv, ok := intArg(args[2])
	if !ok {
		return errv
	}
	if start < 1 || n < 0 {
		return value.Error(value.ErrValue)
	}
	r := []rune(s)
	if start > len(r) {
		return value.Text("")
	}
	end := min(start-1+n, len(r))
	return value.Text(string(r[start-1 : end]))
}

func fnRept(args []value.Value) value.Value {
	s, errv, ok := textArg(args[0])
	if !ok {
		return errv
	}
	n, errv, ok := intArg(args[1])
	if !ok {
		return errv
	}
	if n < 0 {
		return value.Error(value.ErrValue)
	}
	if n > 0 && utf8.RuneCountInString(s)*n > MaxTextLength {
		return value.Error(value.ErrValue)
	}
	return value.Text(strings.Repeat(s, n))
}

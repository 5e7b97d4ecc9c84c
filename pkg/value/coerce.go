package value

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ToNumber coerces v to a number: Blank is 0, booleans are 0/1 and text
// must parse as a number. Arrays coerce through their top-left element.
func ToNumber(v Value) (float64, ErrorKind) {
	switch v.kind {
	case KindBlank:
		return 0, NoError
	case KindNumber:
		return v.num, NoError
	case KindBool:
		return v.num, NoError
	case KindText:
		n, ok := ParseNumberText(v.str)
		if !ok {
			return 0, ErrValue
		}
		return n, NoError
	case KindError:
		return 0, v.err
	case KindArray:
		return ToNumber(v.arr.Scalar())
	case KindReference, KindSpill:
		return 0, ErrValue
	case KindLambda:
		return 0, ErrCalc
	}
	return 0, ErrValue
}

// ToText coerces v to text using the General number format.
func ToText(v Value) (string, ErrorKind) {
	switch v.kind {
	case KindBlank:
		return "", NoError
	case KindNumber:
		return FormatNumber(v.num), NoError
	case KindText:
		return v.str, NoError
	case KindBool:
		if v.Truth() {
			return "TRUE", NoError
		}
		return "FALSE", NoError
	case KindError:
		return "", v.err
	case KindArray:
		return ToText(v.arr.Scalar())
	case KindReference, KindSpill:
		return "", ErrValue
	case KindLambda:
		return "", ErrCalc
	}
	return "", ErrValue
}

// ToBool coerces v to a boolean. Text is accepted only when it spells
// TRUE or FALSE exactly, ignoring case.
func ToBool(v Value) (bool, ErrorKind) {
	switch v.kind {
	case KindBlank:
		return false, NoError
	case KindNumber:
		return v.num != 0, NoError
	case KindBool:
		return v.Truth(), NoError
	case KindText:
		switch strings.ToUpper(v.str) {
		case "TRUE":
			return true, NoError
		case "FALSE":
			return false, NoError
		}
		return false, ErrValue
	case KindError:
		return false, v.err
	case KindArray:
		return ToBool(v.arr.Scalar())
	case KindReference, KindSpill:
		return false, ErrValue
	case KindLambda:
		return false, ErrCalc
	}
	return false, ErrValue
}

// ParseNumberText parses numeric text the way cell input is coerced:
// surrounding spaces, a sign, a decimal point, an exponent and a trailing
// percent sign are accepted. Hex, infinities and NaN are not.
func ParseNumberText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	scale := 1.0
	if strings.HasSuffix(s, "%") {
		scale = 0.01
		s = strings.TrimSpace(s[:len(s)-1])
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			digits++
		case ch == '.' || ch == 'e' || ch == 'E' || ch == '+' || ch == '-':
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n * scale, true
}

// FormatNumber renders n in the General format: integers below 1e15 print
// without a fraction, everything else keeps 15 significant digits.
func FormatNumber(n float64) string {
	if n == 0 {
		return "0"
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return ErrNum.String()
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'G', 15, 64)
}

// FoldText applies Unicode case folding.
func FoldText(s string) string {
	return cases.Fold().String(s)
}

// EqualFold compares two strings under Unicode case folding.
func EqualFold(a, b string) bool {
	if a == b {
		return true
	}
	return FoldText(a) == FoldText(b)
}

func typeRank(k Kind) int {
	switch k {
	case KindNumber:
		return 0
	case KindText:
		return 1
	case KindBool:
		return 2
	case KindError:
		return 3
	}
	return 4
}

// Compare orders two scalar values. Numbers sort before text, text before
// booleans; text compares case-insensitively. A Blank operand takes the
// zero value of the other operand's type.
func Compare(a, b Value) int {
	a, b = Scalar(a), Scalar(b)
	if a.kind == KindBlank && b.kind == KindBlank {
		return 0
	}
	if a.kind == KindBlank {
		a = zeroOf(b.kind)
	}
	if b.kind == KindBlank {
		b = zeroOf(a.kind)
	}
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindNumber, KindBool:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case KindText:
		return strings.Compare(FoldText(a.str), FoldText(b.str))
	case KindError:
		switch {
		case a.err < b.err:
			return -1
		case a.err > b.err:
			return 1
		}
		return 0
	}
	return 0
}

func zeroOf(k Kind) Value {
	switch k {
	case KindText:
		return Text("")
	case KindBool:
		return Bool(false)
	}
	return Number(0)
}

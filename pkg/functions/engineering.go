package functions

import (
	"math"
	"strconv"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// radix describes one of the fixed-width bases. Inputs and outputs are at
// most ten digits; a ten-digit input is read as two's complement.
type radix struct {
	base int
	// limit is 2^(bits-1) for the ten-digit two's complement width.
	limit int64
}

var (
	binary      = radix{base: 2, limit: 1 << 9}
	octal       = radix{base: 8, limit: 1 << 29}
	hexadecimal = radix{base: 16, limit: 1 << 39}
)

const maxDigits = 10

func init() {
	register("BIN2DEC", 1, 1, 0, lifted(toDecimal(binary)))
	register("OCT2DEC", 1, 1, 0, lifted(toDecimal(octal)))
	register("HEX2DEC", 1, 1, 0, lifted(toDecimal(hexadecimal)))
	register("DEC2BIN", 1, 2, 0, lifted(fromDecimal(binary)))
	register("DEC2OCT", 1, 2, 0, lifted(fromDecimal(octal)))
	register("DEC2HEX", 1, 2, 0, lifted(fromDecimal(hexadecimal)))
	register("BIN2HEX", 1, 2, 0, lifted(convert(binary, hexadecimal)))
	register("HEX2BIN", 1, 2, 0, lifted(convert(hexadecimal, binary)))
	register("BIN2OCT", 1, 2, 0, lifted(convert(binary, octal)))
	register("OCT2BIN", 1, 2, 0, lifted(convert(octal, binary)))
	register("OCT2HEX", 1, 2, 0, lifted(convert(octal, hexadecimal)))
	register("HEX2OCT", 1, 2, 0, lifted(convert(hexadecimal, octal)))
}

// parse reads digits in the radix. Exactly ten digits with the top bit set
// are negative; shorter inputs are always unsigned.
func (r radix) parse(v value.Value) (int64, value.ErrorKind) {
	var s string
	switch v.Kind() {
	case value.KindNumber:
		if v.Num() < 0 || v.Num() != math.Trunc(v.Num()) {
			return 0, value.ErrNum
		}
		s = strconv.FormatFloat(v.Num(), 'f', -1, 64)
	case value.KindBlank:
		return 0, value.NoError
	case value.KindBool:
		return 0, value.ErrValue
	default:
		text, ek := value.ToText(v)
		if ek != value.NoError {
			return 0, ek
		}
		s = strings.TrimSpace(text)
	}
	if s == "" {
		return 0, value.NoError
	}
	if len(s) > maxDigits {
		return 0, value.ErrNum
	}
	n, err := strconv.ParseInt(s, r.base, 64)
	if err != nil {
		return 0, value.ErrNum
	}
	width := r.limit * 2
	if len(s) == maxDigits && n >= r.limit {
		n -= width
	}
	return n, value.NoError
}

// format renders n, using the ten-digit two's complement form for
// negative values. places pads non-negative results.
func (r radix) format(n int64, places int) value.Value {
	if n < -r.limit || n >= r.limit {
		return value.Error(value.ErrNum)
	}
	if n < 0 {
		return value.Text(strings.ToUpper(strconv.FormatInt(n+2*r.limit, r.base)))
	}
	s := strings.ToUpper(strconv.FormatInt(n, r.base))
	if places > 0 {
		if places < len(s) || places > maxDigits {
			return value.Error(value.ErrNum)
		}
		s = strings.Repeat("0", places-len(s)) + s
	}
	return value.Text(s)
}

func placesArg(args []value.Value) (int, value.Value, bool) {
	if len(args) < 2 || args[1].IsBlank() {
		return 0, value.Value{}, true
	}
	p, errv, ok := numberArg(args[1])
	if !ok {
		return 0, errv, false
	}
	if p < 1 {
		return 0, value.Error(value.ErrNum), false
	}
	return int(p), value.Value{}, true
}

func toDecimal(r radix) func([]value.Value) value.Value {
	return func(args []value.Value) value.Value {
		n, ek := r.parse(args[0])
		if ek != value.NoError {
			return value.Error(ek)
		}
		return value.Number(float64(n))
	}
}

func fromDecimal(r radix) func([]value.Value) value.Value {
	return func(args []value.Value) value.Value {
		x, errv, ok := numberArg(args[0])
		if !ok {
			return errv
		}
		places, errv, ok := placesArg(args)
		if !ok {
			return errv
		}
		if math.Abs(x) > float64(2*r.limit) {
			return value.Error(value.ErrNum)
		}
		return r.format(int64(math.Trunc(x)), places)
	}
}

func convert(from, to radix) func([]value.Value) value.Value {
	return func(args []value.Value) value.Value {
		n, ek := from.parse(args[0])
		if ek != value.NoError {
			return value.Error(ek)
		}
		places, errv, ok := placesArg(args)
		if !ok {
			return errv
		}
		return to.format(n, places)
	}
}

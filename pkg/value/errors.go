package value

import "strings"

// ErrorKind is the fixed set of spreadsheet error codes carried by
// Error-tagged values.
type ErrorKind uint8

const (
	// NoError is the zero ErrorKind; it never appears inside a Value.
	NoError ErrorKind = iota
	ErrNull           // #NULL! - empty intersection
	ErrDiv0           // #DIV/0! - division by zero
	ErrValue          // #VALUE! - wrong type of argument or operand
	ErrRef            // #REF! - invalid cell reference
	ErrName           // #NAME? - unrecognized function or name
	ErrNum            // #NUM! - invalid numeric value or result too large
	ErrNA             // #N/A - value not available
	ErrSpill          // #SPILL! - array result could not be written
	ErrCalc           // #CALC! - calculation engine failure (empty arrays, lambdas in cells, recursion)
)

var errorLiterals = map[ErrorKind]string{
	ErrNull:  "#NULL!",
	ErrDiv0:  "#DIV/0!",
	ErrValue: "#VALUE!",
	ErrRef:   "#REF!",
	ErrName:  "#NAME?",
	ErrNum:   "#NUM!",
	ErrNA:    "#N/A",
	ErrSpill: "#SPILL!",
	ErrCalc:  "#CALC!",
}

// errorTypeNumbers follows the ERROR.TYPE numbering.
var errorTypeNumbers = map[ErrorKind]int{
	ErrNull:  1,
	ErrDiv0:  2,
	ErrValue: 3,
	ErrRef:   4,
	ErrName:  5,
	ErrNum:   6,
	ErrNA:    7,
	ErrSpill: 9,
	ErrCalc:  14,
}

// String returns the literal spelling of the error, e.g. "#DIV/0!".
func (k ErrorKind) String() string {
	if s, ok := errorLiterals[k]; ok {
		return s
	}
	return "#ERROR!"
}

// TypeNumber returns the ERROR.TYPE code of the error kind.
func (k ErrorKind) TypeNumber() int {
	return errorTypeNumbers[k]
}

// ParseErrorKind recognizes an error literal. Matching is
// case-insensitive, as it is in formula text.
func ParseErrorKind(s string) (ErrorKind, bool) {
	upper := strings.ToUpper(s)
	for kind, lit := range errorLiterals {
		if lit == upper {
			return kind, true
		}
	}
	return NoError, false
}

// ErrorLiterals returns every error literal, longest first, which is
// the order a lexer must try them in.
func ErrorLiterals() []string {
	return []string{"#DIV/0!", "#SPILL!", "#VALUE!", "#CALC!", "#NAME?", "#NULL!", "#NUM!", "#REF!", "#N/A"}
}

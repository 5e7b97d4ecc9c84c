package formula

import "fmt"

// ErrorKind classifies a parse failure.
type ErrorKind int

const (
	// ErrUnexpectedEOF means the input ended inside a construct.
	ErrUnexpectedEOF ErrorKind = iota + 1

	// ErrUnexpectedChar means a character or token cannot start or
	// continue an expression at this point.
	ErrUnexpectedChar

	// ErrExpectedChar means a specific delimiter was required.
	ErrExpectedChar

	// ErrInvalidNumber means a numeric literal could not be converted.
	ErrInvalidNumber

	// ErrTrailingInput means a complete expression was followed by more
	// input.
	ErrTrailingInput
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnexpectedEOF:
		return "UnexpectedEof"
	case ErrUnexpectedChar:
		return "UnexpectedChar"
	case ErrExpectedChar:
		return "ExpectedChar"
	case ErrInvalidNumber:
		return "InvalidNumber"
	case ErrTrailingInput:
		return "TrailingInput"
	default:
		return "Unknown"
	}
}

// ParseError reports why formula text could not be parsed. Offset is the
// byte position in the source text.
type ParseError struct {
	Kind     ErrorKind
	Offset   int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	switch {
	case e.Expected != "" && e.Found != "":
		return fmt.Sprintf("%s at offset %d: expected %s, found %s", e.Kind, e.Offset, e.Expected, e.Found)
	case e.Expected != "":
		return fmt.Sprintf("%s at offset %d: expected %s", e.Kind, e.Offset, e.Expected)
	case e.Found != "":
		return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Offset, e.Found)
	}
	return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
}

// Is matches parse errors by kind so callers can test with errors.Is.
func (e *ParseError) Is(target error) bool {
	t, ok := target.(*ParseError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

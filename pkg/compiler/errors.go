package compiler

import "fmt"

// CompileError reports a formula that parsed but cannot be compiled, such
// as a builtin called with the wrong number of arguments or a structured
// reference without a unique enclosing table.
type CompileError struct {
	Message string
	// Offset is the byte position in the formula text, or -1 when unknown.
	Offset int
}

func (e *CompileError) Error() string {
	if e.Offset < 0 {
		return "compile error: " + e.Message
	}
	return fmt.Sprintf("compile error at offset %d: %s", e.Offset, e.Message)
}

func errorf(offset int, format string, args ...any) *CompileError {
	return &CompileError{Message: fmt.Sprintf(format, args...), Offset: offset}
}

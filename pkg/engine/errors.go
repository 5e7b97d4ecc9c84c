package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies engine errors for programmatic handling.
type ErrorCode string

const (
	// ErrCodeParse indicates formula text that does not parse.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeCompile indicates a formula that parses but cannot be compiled,
	// such as a builtin called with the wrong number of arguments.
	ErrCodeCompile ErrorCode = "COMPILE_ERROR"

	// ErrCodeCycle indicates a circular reference found during recalculation.
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeNotFound indicates an unknown sheet, cell, name or table.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeValidation indicates invalid input to a mutation.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeSpillBlocked indicates a spill that could not be written.
	ErrCodeSpillBlocked ErrorCode = "SPILL_BLOCKED"

	// ErrCodeInternal indicates a broken engine invariant.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified engine error with cell context.
type Error struct {
	// Code is the error classification.
	Code ErrorCode `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Cell is the affected cell in Sheet!A1 form, if applicable.
	Cell string `json:"cell,omitempty"`

	// Operation is the mutation or query being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	switch {
	case e.Cell != "" && e.Operation != "":
		fmt.Fprintf(&sb, " (cell=%s, operation=%s)", e.Cell, e.Operation)
	case e.Cell != "":
		fmt.Fprintf(&sb, " (cell=%s)", e.Cell)
	case e.Operation != "":
		fmt.Fprintf(&sb, " (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// ErrorCode returns the classification as a string for metrics labels.
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: ErrCodeCycle})
// works without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an error with the given code.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// WithCell sets the affected cell.
func (e *Error) WithCell(cell string) *Error {
	e.Cell = cell
	return e
}

// WithOperation sets the operation.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithDetail adds a detail key-value pair.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCycle reports whether err carries a circular reference.
func IsCycle(err error) bool {
	return hasCode(err, ErrCodeCycle)
}

// IsNotFound reports whether err is a lookup failure.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsValidation reports whether err rejected invalid input.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsParse reports whether err is a formula syntax error.
func IsParse(err error) bool {
	return hasCode(err, ErrCodeParse)
}

// IsCompile reports whether err is a formula compile error.
func IsCompile(err error) bool {
	return hasCode(err, ErrCodeCompile)
}

// hasCode walks the whole tree, so joined errors match when any member
// carries the code.
func hasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &Error{Code: code})
}

func notFound(format string, args ...interface{}) *Error {
	return NewError(ErrCodeNotFound, fmt.Sprintf(format, args...), nil)
}

func invalid(format string, args ...interface{}) *Error {
	return NewError(ErrCodeValidation, fmt.Sprintf(format, args...), nil)
}

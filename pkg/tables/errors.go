package tables

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by *Error.
var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrCycle         = errors.New("calculated columns form a cycle")
	ErrEvaluation    = errors.New("calculated column evaluation failed")
	ErrInvalid       = errors.New("invalid request")
)

// Error is a failure scoped to one table. Table is always set; Column is
// set when a single column is at fault.
type Error struct {
	Table  string
	Column string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("tables: %s %s[%s]: %v", e.Op, e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("tables: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func tableError(op, table, column string, err error) *Error {
	return &Error{Table: table, Column: column, Op: op, Err: err}
}

// ParseError reports malformed formula text at a byte offset.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

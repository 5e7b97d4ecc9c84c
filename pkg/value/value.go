// Package value defines the tagged value union shared by the bytecode VM,
// the tree-walking evaluator, the criteria engine and the workbook.
package value

import (
	"strings"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindBlank Kind = iota
	KindNumber
	KindText
	KindBool
	KindError
	KindArray
	KindReference
	KindLambda
	KindSpill
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	case KindError:
		return "error"
	case KindArray:
		return "array"
	case KindReference:
		return "reference"
	case KindLambda:
		return "lambda"
	case KindSpill:
		return "spill"
	default:
		return "unknown"
	}
}

// Value is an immutable spreadsheet value. The zero Value is Blank.
type Value struct {
	kind   Kind
	num    float64
	str    string
	err    ErrorKind
	arr    *Array
	ref    *Reference
	lam    *Lambda
	origin CellRef
}

// Blank returns the empty value.
func Blank() Value { return Value{} }

// Number wraps a float64.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Text wraps a string.
func Text(s string) Value { return Value{kind: KindText, str: s} }

// Bool wraps a boolean.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

// Error wraps an error code.
func Error(k ErrorKind) Value {
	if k == NoError {
		k = ErrValue
	}
	return Value{kind: KindError, err: k}
}

// FromArray wraps an array. A nil array becomes #CALC!.
func FromArray(a *Array) Value {
	if a == nil {
		return Error(ErrCalc)
	}
	return Value{kind: KindArray, arr: a}
}

// FromReference wraps a reference.
func FromReference(r *Reference) Value {
	if r == nil || len(r.Areas) == 0 {
		return Error(ErrRef)
	}
	return Value{kind: KindReference, ref: r}
}

// FromLambda wraps a lambda closure.
func FromLambda(l *Lambda) Value {
	return Value{kind: KindLambda, lam: l}
}

// SpillPlaceholder marks a cell covered by origin's dynamic array.
func SpillPlaceholder(origin CellRef) Value {
	return Value{kind: KindSpill, origin: origin}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// Num returns the number payload.
func (v Value) Num() float64 { return v.num }

// Str returns the text payload.
func (v Value) Str() string { return v.str }

// Truth returns the boolean payload.
func (v Value) Truth() bool { return v.num != 0 }

// Err returns the error payload, NoError for non-error values.
func (v Value) Err() ErrorKind { return v.err }

// Array returns the array payload.
func (v Value) Array() *Array { return v.arr }

// Ref returns the reference payload.
func (v Value) Ref() *Reference { return v.ref }

// Lambda returns the lambda payload.
func (v Value) Lambda() *Lambda { return v.lam }

// SpillOrigin returns the origin of a spill placeholder.
func (v Value) SpillOrigin() CellRef { return v.origin }

// IsError reports whether v is an Error value.
func (v Value) IsError() bool { return v.kind == KindError }

// IsBlank reports whether v is Blank.
func (v Value) IsBlank() bool { return v.kind == KindBlank }

// IsEmpty reports whether v is Blank or the empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindBlank || (v.kind == KindText && v.str == "")
}

// Identical reports structural equality, used by tests and by the
// recalculation pass to detect unchanged results.
func Identical(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBlank:
		return true
	case KindNumber:
		return a.num == b.num
	case KindText:
		return a.str == b.str
	case KindBool:
		return a.Truth() == b.Truth()
	case KindError:
		return a.err == b.err
	case KindArray:
		if a.arr.Rows != b.arr.Rows || a.arr.Cols != b.arr.Cols {
			return false
		}
		for i := range a.arr.Data {
			if !Identical(a.arr.Data[i], b.arr.Data[i]) {
				return false
			}
		}
		return true
	case KindReference:
		return a.ref.Equal(b.ref)
	case KindLambda:
		return a.lam == b.lam
	case KindSpill:
		return a.origin == b.origin
	}
	return false
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindBlank:
		return ""
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	case KindBool:
		if v.Truth() {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.err.String()
	case KindArray:
		var sb strings.Builder
		sb.WriteByte('{')
		for r := 0; r < v.arr.Rows; r++ {
			if r > 0 {
				sb.WriteByte(';')
			}
			for c := 0; c < v.arr.Cols; c++ {
				if c > 0 {
					sb.WriteByte(',')
				}
				el := v.arr.At(r, c)
				if el.kind == KindText {
					sb.WriteString(`"` + strings.ReplaceAll(el.str, `"`, `""`) + `"`)
				} else {
					sb.WriteString(el.String())
				}
			}
		}
		sb.WriteByte('}')
		return sb.String()
	case KindReference:
		return v.ref.String()
	case KindLambda:
		return "LAMBDA"
	case KindSpill:
		return "spill(" + v.origin.String() + ")"
	}
	return ""
}

// Sanitize prepares a value for cell storage: lambdas, stray
// references and spill placeholders become #CALC!, including inside
// arrays.
func Sanitize(v Value) Value {
	switch v.kind {
	case KindLambda, KindReference, KindSpill:
		return Error(ErrCalc)
	case KindArray:
		var out *Array
		for i, el := range v.arr.Data {
			clean := Sanitize(el)
			if clean.kind == el.kind {
				if out != nil {
					out.Data[i] = el
				}
				continue
			}
			if out == nil {
				out = v.arr.Clone()
			}
			out.Data[i] = clean
		}
		if out == nil {
			return v
		}
		return FromArray(out)
	case KindBlank, KindNumber, KindText, KindBool, KindError:
		return v
	}
	return Error(ErrCalc)
}

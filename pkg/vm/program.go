// Package vm compiles straight-line formulas to bytecode and runs them on
// a small stack machine. Formulas that need lexical scope or lambdas are
// refused and left to the tree walker in package eval.
package vm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/formula"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// ErrNotCompilable is returned by Emit for expressions only the tree
// walker can run.
var ErrNotCompilable = errors.New("expression needs the tree-walking evaluator")

// Opcode identifies an instruction.
type Opcode uint8

const (
	OpConst Opcode = iota + 1
	OpLoadRef
	OpLoadName
	OpLoadTable
	OpUnary
	OpBinary
	OpCall
	OpMakeArray
	OpUnion
	OpRange
	OpSpillRef
	OpReturn
)

var opcodeNames = map[Opcode]string{
	OpConst:     "const",
	OpLoadRef:   "load-ref",
	OpLoadName:  "load-name",
	OpLoadTable: "load-table",
	OpUnary:     "unary",
	OpBinary:    "binary",
	OpCall:      "call",
	OpMakeArray: "make-array",
	OpUnion:     "union",
	OpRange:     "range",
	OpSpillRef:  "spill-ref",
	OpReturn:    "return",
}

func (o Opcode) String() string {
	if s, ok := opcodeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Instr is one instruction. A indexes the operand pool of the opcode or
// holds the operator; B is the argument count for calls and unions, or
// the column count for make-array.
type Instr struct {
	Op Opcode
	A  int
	B  int
}

// Program is emitted bytecode with its operand pools.
type Program struct {
	Code   []Instr
	Consts []value.Value
	Refs   []compiler.Ref
	Names  []compiler.Name
	Tables []formula.TableSpec
	Funcs  []*functions.Builtin
	// MaxStack is the deepest the operand stack gets.
	MaxStack int
}

// String disassembles the program, one instruction per line.
func (p *Program) String() string {
	var sb strings.Builder
	for i, in := range p.Code {
		fmt.Fprintf(&sb, "%04d %-10s", i, in.Op)
		switch in.Op {
		case OpConst:
			fmt.Fprintf(&sb, " %s", p.Consts[in.A])
		case OpLoadRef:
			fmt.Fprintf(&sb, " #%d", in.A)
		case OpLoadName:
			fmt.Fprintf(&sb, " %s", p.Names[in.A].Name)
		case OpLoadTable:
			fmt.Fprintf(&sb, " %s", p.Tables[in.A].Table)
		case OpUnary, OpBinary:
			fmt.Fprintf(&sb, " %s", functions.Op(in.A))
		case OpCall:
			fmt.Fprintf(&sb, " %s/%d", p.Funcs[in.A].Name, in.B)
		case OpMakeArray:
			fmt.Fprintf(&sb, " %dx%d", in.A, in.B)
		case OpUnion:
			fmt.Fprintf(&sb, " %d", in.B)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

package vm

import (
	"fmt"

	"github.com/gridcalc/gridcalc/pkg/compiler"
)

type emitter struct {
	p     *Program
	depth int
}

// Emit compiles expr to bytecode. It returns ErrNotCompilable when the
// expression uses LET, LAMBDA or calls through names and locals.
func Emit(expr compiler.Expr) (*Program, error) {
	if compiler.Analyze(expr).NeedsTreeWalker() {
		return nil, ErrNotCompilable
	}
	e := &emitter{p: &Program{}}
	if err := e.emit(expr); err != nil {
		return nil, err
	}
	e.op(OpReturn, 0, 0, 0)
	return e.p, nil
}

// op appends an instruction that pops pop values and pushes one.
func (e *emitter) op(code Opcode, a, b, pop int) {
	e.p.Code = append(e.p.Code, Instr{Op: code, A: a, B: b})
	if code == OpReturn {
		return
	}
	e.depth += 1 - pop
	if e.depth > e.p.MaxStack {
		e.p.MaxStack = e.depth
	}
}

func (e *emitter) emitAll(exprs []compiler.Expr) error {
	for _, x := range exprs {
		if err := e.emit(x); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) emit(expr compiler.Expr) error {
	switch n := expr.(type) {
	case *compiler.Literal:
		e.p.Consts = append(e.p.Consts, n.Value)
		e.op(OpConst, len(e.p.Consts)-1, 0, 0)
	case *compiler.RefExpr:
		e.p.Refs = append(e.p.Refs, n.Ref)
		e.op(OpLoadRef, len(e.p.Refs)-1, 0, 0)
	case *compiler.Name:
		e.p.Names = append(e.p.Names, *n)
		e.op(OpLoadName, len(e.p.Names)-1, 0, 0)
	case *compiler.TableRef:
		e.p.Tables = append(e.p.Tables, n.Spec)
		e.op(OpLoadTable, len(e.p.Tables)-1, 0, 0)
	case *compiler.Unary:
		if err := e.emit(n.X); err != nil {
			return err
		}
		e.op(OpUnary, int(n.Op), 0, 1)
	case *compiler.Binary:
		if err := e.emit(n.L); err != nil {
			return err
		}
		if err := e.emit(n.R); err != nil {
			return err
		}
		e.op(OpBinary, int(n.Op), 0, 2)
	case *compiler.Call:
		if err := e.emitAll(n.Args); err != nil {
			return err
		}
		e.p.Funcs = append(e.p.Funcs, n.Fn)
		e.op(OpCall, len(e.p.Funcs)-1, len(n.Args), len(n.Args))
	case *compiler.ArrayLit:
		if err := e.emitAll(n.Elems); err != nil {
			return err
		}
		e.op(OpMakeArray, n.Rows, n.Cols, len(n.Elems))
	case *compiler.Union:
		if err := e.emitAll(n.Items); err != nil {
			return err
		}
		e.op(OpUnion, 0, len(n.Items), len(n.Items))
	case *compiler.RangeOp:
		if err := e.emit(n.L); err != nil {
			return err
		}
		if err := e.emit(n.R); err != nil {
			return err
		}
		e.op(OpRange, 0, 0, 2)
	case *compiler.SpillRef:
		if err := e.emit(n.X); err != nil {
			return err
		}
		e.op(OpSpillRef, 0, 0, 1)
	case *compiler.Local, *compiler.Lambda, *compiler.Let, *compiler.CallName,
		*compiler.CallLocal, *compiler.Invoke:
		return ErrNotCompilable
	default:
		return fmt.Errorf("emit: unsupported expression %T", expr)
	}
	return nil
}

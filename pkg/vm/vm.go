package vm

import (
	"github.com/gridcalc/gridcalc/pkg/eval"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// Run executes p in frame f and returns the raw result, which may be a
// Reference. Call f.Result on it before storing it in a cell.
func (p *Program) Run(f *eval.Frame) value.Value {
	stack := make([]value.Value, 0, p.MaxStack)
	pop := func() value.Value {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	popN := func(n int) []value.Value {
		args := make([]value.Value, n)
		copy(args, stack[len(stack)-n:])
		stack = stack[:len(stack)-n]
		return args
	}

	for _, in := range p.Code {
		switch in.Op {
		case OpConst:
			stack = append(stack, f.Limit(p.Consts[in.A]))
		case OpLoadRef:
			stack = append(stack, f.Ref(p.Refs[in.A]))
		case OpLoadName:
			stack = append(stack, f.Name(p.Names[in.A]))
		case OpLoadTable:
			stack = append(stack, f.Table(p.Tables[in.A]))
		case OpUnary:
			x := f.Deref(pop())
			stack = append(stack, f.Limit(functions.Unary(functions.Op(in.A), x)))
		case OpBinary:
			r := f.Deref(pop())
			l := f.Deref(pop())
			stack = append(stack, f.Limit(functions.Binary(functions.Op(in.A), l, r)))
		case OpCall:
			args := popN(in.B)
			stack = append(stack, f.Limit(functions.Call(f, p.Funcs[in.A], args)))
		case OpMakeArray:
			stack = append(stack, makeArray(f, in.A, in.B, popN(in.A*in.B)))
		case OpUnion:
			stack = append(stack, f.Union(popN(in.B)))
		case OpRange:
			r := pop()
			l := pop()
			stack = append(stack, f.Range(l, r))
		case OpSpillRef:
			stack = append(stack, f.Spill(pop()))
		case OpReturn:
			return pop()
		}
	}
	return value.Error(value.ErrCalc)
}

func makeArray(f *eval.Frame, rows, cols int, elems []value.Value) value.Value {
	out, ek := value.NewArray(rows, cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	for i, v := range elems {
		v = f.Deref(v)
		if v.Kind() == value.KindArray {
			if !v.Array().IsScalar() {
				return value.Error(value.ErrValue)
			}
			v = v.Array().At(0, 0)
		}
		out.Data[i] = v
	}
	return f.Limit(value.FromArray(out))
}

// Package eval is the tree-walking evaluator for compiled formulas. It
// runs everything the bytecode VM refuses: LET, LAMBDA, calls through
// names and locals, and lazy branches whose untaken side must not run.
package eval

import (
	"github.com/gridcalc/gridcalc/pkg/compiler"
	"github.com/gridcalc/gridcalc/pkg/functions"
	"github.com/gridcalc/gridcalc/pkg/value"
)

// DefaultMaxDepth bounds nested lambda calls. Deeper recursion yields
// #CALC!.
const DefaultMaxDepth = 512

// Options bounds the evaluations an Evaluator runs.
type Options struct {
	// MaxDepth bounds nested name and lambda calls. Non-positive selects
	// DefaultMaxDepth.
	MaxDepth int

	// MaxArrayCells bounds every array a formula produces; larger arrays
	// become #NUM!. Non-positive values and values above the process
	// ceiling value.MaxArrayCells select that ceiling.
	MaxArrayCells int
}

// Evaluator walks IR trees. It holds no per-evaluation state and is safe
// for concurrent use.
type Evaluator struct {
	host Host
	opts Options
}

// New creates an evaluator over host.
func New(host Host, opts Options) *Evaluator {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if ceiling := value.MaxArrayCells(); opts.MaxArrayCells <= 0 || opts.MaxArrayCells > ceiling {
		opts.MaxArrayCells = ceiling
	}
	return &Evaluator{host: host, opts: opts}
}

// Options returns the limits in effect.
func (e *Evaluator) Options() Options { return e.opts }

// Result is the outcome of evaluating one formula.
type Result struct {
	Value    value.Value
	Observed []*value.Reference
}

// Evaluate runs expr for the formula in caller.
func (e *Evaluator) Evaluate(expr compiler.Expr, caller value.CellRef) Result {
	f := e.Frame(caller)
	v := f.Result(f.Eval(expr, nil))
	return Result{Value: v, Observed: f.Observed()}
}

// EvaluateRaw runs expr without reading a top-level reference. Defined
// names use it so that a name can stand for a range.
func (e *Evaluator) EvaluateRaw(expr compiler.Expr, caller value.CellRef) Result {
	f := e.Frame(caller)
	v := f.Eval(expr, nil)
	return Result{Value: v, Observed: f.Observed()}
}

// Frame starts an evaluation for callers that drive it themselves.
func (e *Evaluator) Frame(caller value.CellRef) *Frame {
	return &Frame{
		host:     e.host,
		caller:   caller,
		maxDepth: e.opts.MaxDepth,
		maxCells: e.opts.MaxArrayCells,
	}
}

// Eval evaluates expr in scope sc. The result may be a Reference.
func (f *Frame) Eval(expr compiler.Expr, sc *value.Scope) value.Value {
	return f.eval(expr, sc)
}

func (f *Frame) eval(expr compiler.Expr, sc *value.Scope) value.Value {
	switch n := expr.(type) {
	case *compiler.Literal:
		return f.Limit(n.Value)
	case *compiler.RefExpr:
		return f.Ref(n.Ref)
	case *compiler.Name:
		return f.Name(*n)
	case *compiler.Local:
		v, ok := sc.Lookup(n.Name)
		if !ok {
			return value.Error(value.ErrName)
		}
		return v
	case *compiler.TableRef:
		return f.Table(n.Spec)
	case *compiler.Unary:
		return f.Limit(functions.Unary(n.Op, f.Deref(f.eval(n.X, sc))))
	case *compiler.Binary:
		l := f.Deref(f.eval(n.L, sc))
		r := f.Deref(f.eval(n.R, sc))
		return f.Limit(functions.Binary(n.Op, l, r))
	case *compiler.Call:
		if n.Fn.Has(functions.Lazy) {
			return f.Limit(f.lazy(n, sc))
		}
		return f.Limit(functions.Call(f, n.Fn, f.evalAll(n.Args, sc)))
	case *compiler.CallName:
		return f.Apply(f.Deref(f.Name(n.Name)), f.evalAll(n.Args, sc))
	case *compiler.CallLocal:
		fn, ok := sc.Lookup(n.Name)
		if !ok {
			return value.Error(value.ErrName)
		}
		return f.Apply(fn, f.evalAll(n.Args, sc))
	case *compiler.Invoke:
		fn := f.Deref(f.eval(n.Callee, sc))
		return f.Apply(fn, f.evalAll(n.Args, sc))
	case *compiler.Lambda:
		return value.FromLambda(&value.Lambda{Params: n.Params, Body: n.Body, Env: sc})
	case *compiler.Let:
		for i, name := range n.Names {
			sc = sc.Bind(name, f.eval(n.Values[i], sc))
		}
		return f.eval(n.Body, sc)
	case *compiler.ArrayLit:
		return f.arrayLit(n, sc)
	case *compiler.Union:
		return f.Union(f.evalAll(n.Items, sc))
	case *compiler.RangeOp:
		return f.Range(f.eval(n.L, sc), f.eval(n.R, sc))
	case *compiler.SpillRef:
		return f.Spill(f.eval(n.X, sc))
	}
	return value.Error(value.ErrCalc)
}

func (f *Frame) evalAll(args []compiler.Expr, sc *value.Scope) []value.Value {
	out := make([]value.Value, len(args))
	for i, a := range args {
		out[i] = f.eval(a, sc)
	}
	return out
}

func (f *Frame) arrayLit(n *compiler.ArrayLit, sc *value.Scope) value.Value {
	if !f.fits(n.Rows, n.Cols) {
		return value.Error(value.ErrNum)
	}
	out, ek := value.NewArray(n.Rows, n.Cols)
	if ek != value.NoError {
		return value.Error(ek)
	}
	for i, el := range n.Elems {
		v := f.Deref(f.eval(el, sc))
		switch v.Kind() {
		case value.KindArray:
			if !v.Array().IsScalar() {
				return value.Error(value.ErrValue)
			}
			v = v.Array().At(0, 0)
		case value.KindLambda:
			v = value.Error(value.ErrCalc)
		}
		out.Data[i] = v
	}
	return value.FromArray(out)
}

// lazy evaluates the branching builtins. A scalar selector decides which
// argument runs; an array selector needs every branch, so the builtin
// runs on fully evaluated arguments.
func (f *Frame) lazy(n *compiler.Call, sc *value.Scope) value.Value {
	eager := func() value.Value {
		return functions.Call(f, n.Fn, f.evalAll(n.Args, sc))
	}
	switch n.Name {
	case "IF":
		cond := f.Deref(f.eval(n.Args[0], sc))
		if cond.Kind() == value.KindArray {
			return eager()
		}
		b, errv, ok := functions.Select(cond)
		switch {
		case !ok:
			return errv
		case b:
			return f.eval(n.Args[1], sc)
		case len(n.Args) > 2:
			return f.eval(n.Args[2], sc)
		}
		return value.Bool(false)

	case "IFS":
		if len(n.Args)%2 != 0 {
			return value.Error(value.ErrValue)
		}
		for i := 0; i < len(n.Args); i += 2 {
			b, errv, ok := functions.Select(value.Scalar(f.Deref(f.eval(n.Args[i], sc))))
			if !ok {
				return errv
			}
			if b {
				return f.eval(n.Args[i+1], sc)
			}
		}
		return value.Error(value.ErrNA)

	case "IFERROR", "IFNA":
		raw := f.eval(n.Args[0], sc)
		v := f.Deref(raw)
		if v.Kind() == value.KindArray {
			return functions.Call(f, n.Fn, []value.Value{raw, f.eval(n.Args[1], sc)})
		}
		if v.IsError() && (n.Name == "IFERROR" || v.Err() == value.ErrNA) {
			return f.eval(n.Args[1], sc)
		}
		return raw

	case "CHOOSE":
		idx := f.Deref(f.eval(n.Args[0], sc))
		if idx.Kind() == value.KindArray {
			return eager()
		}
		i, errv, ok := functions.ChooseIndex(idx, len(n.Args)-1)
		if !ok {
			return errv
		}
		return f.eval(n.Args[i+1], sc)

	case "SWITCH":
		subject := value.Scalar(f.Deref(f.eval(n.Args[0], sc)))
		if subject.IsError() {
			return subject
		}
		rest := n.Args[1:]
		for i := 0; i+1 < len(rest); i += 2 {
			candidate := value.Scalar(f.Deref(f.eval(rest[i], sc)))
			if candidate.IsError() {
				return candidate
			}
			if functions.SwitchMatches(subject, candidate) {
				return f.eval(rest[i+1], sc)
			}
		}
		if len(rest)%2 == 1 {
			return f.eval(rest[len(rest)-1], sc)
		}
		return value.Error(value.ErrNA)
	}
	return eager()
}

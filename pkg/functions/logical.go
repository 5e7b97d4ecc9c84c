package functions

import (
	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("IF", 2, 3, Lazy, fnIf)
	register("IFS", 2, -1, Lazy, fnIfs)
	register("IFERROR", 2, 2, Lazy, fnIfError(func(k value.ErrorKind) bool { return true }))
	register("IFNA", 2, 2, Lazy, fnIfError(func(k value.ErrorKind) bool { return k == value.ErrNA }))
	register("SWITCH", 3, -1, Lazy, fnSwitch)
	register("AND", 1, -1, 0, logicalFold(func(acc, b bool) bool { return acc && b }, true))
	register("OR", 1, -1, 0, logicalFold(func(acc, b bool) bool { return acc || b }, false))
	register("XOR", 1, -1, 0, logicalFold(func(acc, b bool) bool { return acc != b }, false))
	register("NOT", 1, 1, 0, lifted(func(args []value.Value) value.Value {
		b, errv, ok := boolArg(args[0])
		if !ok {
			return errv
		}
		return value.Bool(!b)
	}))
	register("TRUE", 0, 0, 0, func(Context, []value.Value) value.Value { return value.Bool(true) })
	register("FALSE", 0, 0, 0, func(Context, []value.Value) value.Value { return value.Bool(false) })
}

// Select picks the branch of a scalar IF condition. It is shared with the
// tree evaluator so lazy and eager IF agree.
func Select(cond value.Value) (bool, value.Value, bool) {
	return boolArg(cond)
}

func fnIf(ctx Context, args []value.Value) value.Value {
	cond := ctx.Deref(args[0])
	otherwise := optArg(args, 2, value.Bool(false))
	if cond.Kind() != value.KindArray {
		b, errv, ok := Select(cond)
		if !ok {
			return errv
		}
		if b {
			return args[1]
		}
		return otherwise
	}
	return BroadcastN([]value.Value{cond, ctx.Deref(args[1]), ctx.Deref(otherwise)}, func(xs []value.Value) value.Value {
		b, errv, ok := Select(xs[0])
		if !ok {
			return errv
		}
		if b {
			return xs[1]
		}
		return xs[2]
	})
}

func fnIfs(ctx Context, args []value.Value) value.Value {
	if len(args)%2 != 0 {
		return value.Error(value.ErrValue)
	}
	for i := 0; i < len(args); i += 2 {
		b, errv, ok := Select(value.Scalar(ctx.Deref(args[i])))
		if !ok {
			return errv
		}
		if b {
			return args[i+1]
		}
	}
	return value.Error(value.ErrNA)
}

func fnIfError(catches func(value.ErrorKind) bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		v := ctx.Deref(args[0])
		if v.Kind() != value.KindArray {
			if v.IsError() && catches(v.Err()) {
				return args[1]
			}
			return args[0]
		}
		alt := ctx.Deref(args[1])
		return Broadcast2(v, alt, func(x, y value.Value) value.Value {
			if x.IsError() && catches(x.Err()) {
				return y
			}
			return x
		})
	}
}

func fnSwitch(ctx Context, args []value.Value) value.Value {
	subject := value.Scalar(ctx.Deref(args[0]))
	if subject.IsError() {
		return subject
	}
	rest := args[1:]
	for i := 0; i+1 < len(rest); i += 2 {
		candidate := value.Scalar(ctx.Deref(rest[i]))
		if candidate.IsError() {
			return candidate
		}
		if SwitchMatches(subject, candidate) {
			return rest[i+1]
		}
	}
	if len(rest)%2 == 1 {
		return rest[len(rest)-1]
	}
	return value.Error(value.ErrNA)
}

// SwitchMatches compares a SWITCH subject with a case value.
func SwitchMatches(subject, candidate value.Value) bool {
	eq := scalarBinary(OpEq, subject, candidate)
	return eq.Kind() == value.KindBool && eq.Truth()
}

func logicalFold(step func(acc, b bool) bool, start bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		acc, seen := start, false
		for _, a := range args {
			if isRange(a) {
				for _, el := range elements(ctx, a) {
					switch el.Kind() {
					case value.KindBool, value.KindNumber:
						acc, seen = step(acc, el.Truth()), true
					case value.KindError:
						return el
					}
				}
				continue
			}
			b, errv, ok := boolArg(ctx.Deref(a))
			if !ok {
				return errv
			}
			acc, seen = step(acc, b), true
		}
		if !seen {
			return value.Error(value.ErrValue)
		}
		return value.Bool(acc)
	}
}

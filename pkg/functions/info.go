package functions

import (
	"github.com/gridcalc/gridcalc/pkg/value"
)

func init() {
	register("ISBLANK", 1, 1, 0, predicate(func(v value.Value) bool { return v.IsBlank() }))
	register("ISERROR", 1, 1, 0, predicate(func(v value.Value) bool { return v.IsError() }))
	register("ISERR", 1, 1, 0, predicate(func(v value.Value) bool { return v.IsError() && v.Err() != value.ErrNA }))
	register("ISNA", 1, 1, 0, predicate(func(v value.Value) bool { return v.IsError() && v.Err() == value.ErrNA }))
	register("ISNUMBER", 1, 1, 0, predicate(func(v value.Value) bool { return v.Kind() == value.KindNumber }))
	register("ISTEXT", 1, 1, 0, predicate(func(v value.Value) bool { return v.Kind() == value.KindText }))
	register("ISLOGICAL", 1, 1, 0, predicate(func(v value.Value) bool { return v.Kind() == value.KindBool }))
	register("ISREF", 1, 1, 0, func(_ Context, args []value.Value) value.Value {
		return value.Bool(args[0].Kind() == value.KindReference)
	})
	register("NA", 0, 0, 0, func(Context, []value.Value) value.Value { return value.Error(value.ErrNA) })
	register("ERROR.TYPE", 1, 1, 0, func(ctx Context, args []value.Value) value.Value {
		return Map(ctx.Deref(args[0]), func(v value.Value) value.Value {
			if !v.IsError() {
				return value.Error(value.ErrNA)
			}
			return value.Number(float64(v.Err().TypeNumber()))
		})
	})
}

func predicate(test func(value.Value) bool) Func {
	return func(ctx Context, args []value.Value) value.Value {
		return Map(ctx.Deref(args[0]), func(v value.Value) value.Value {
			return value.Bool(test(v))
		})
	}
}

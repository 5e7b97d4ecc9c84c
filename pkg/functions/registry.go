package functions

import (
	"sort"
	"strings"
	"time"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Context is what a builtin function sees of the evaluation in progress.
type Context interface {
	// Caller returns the cell whose formula is being evaluated.
	Caller() value.CellRef

	// Deref turns a Reference into its values: a scalar for one cell, an
	// array otherwise. Other values are returned unchanged.
	Deref(v value.Value) value.Value

	// Observe records a precedent discovered at run time.
	Observe(ref *value.Reference)

	// SheetID resolves a sheet name.
	SheetID(name string) (value.SheetID, bool)

	// SheetDimensions returns the grid size of a sheet.
	SheetDimensions(id value.SheetID) (rows, cols uint32)

	// Apply calls a Lambda value with arguments.
	Apply(fn value.Value, args []value.Value) value.Value

	// DateSystem returns the workbook date system.
	DateSystem() DateSystem

	// Now returns the clock reading for volatile date functions.
	Now() time.Time
}

// Func implements a builtin. Arguments arrive evaluated but not
// dereferenced, so a function can tell a range argument from a value.
type Func func(ctx Context, args []value.Value) value.Value

// Flag describes properties the compiler and the scheduler care about.
type Flag uint8

const (
	// Volatile functions recompute on every recalculation triggered by a
	// change anywhere in the workbook.
	Volatile Flag = 1 << iota

	// Dynamic functions produce references at run time, so their
	// precedents are only known after evaluation.
	Dynamic

	// Lazy functions may skip evaluating some arguments.
	Lazy

	// Higher-order functions take Lambda arguments.
	HigherOrder
)

// Builtin describes one function of the library.
type Builtin struct {
	Name    string
	MinArgs int
	// MaxArgs is negative for variadic functions.
	MaxArgs int
	Flags   Flag
	Fn      Func
}

// Has reports whether all bits of f are set.
func (b *Builtin) Has(f Flag) bool { return b.Flags&f == f }

// AcceptsArgs reports whether n arguments satisfy the arity.
func (b *Builtin) AcceptsArgs(n int) bool {
	return n >= b.MinArgs && (b.MaxArgs < 0 || n <= b.MaxArgs)
}

var registry = map[string]*Builtin{}

func register(name string, minArgs, maxArgs int, flags Flag, fn Func) {
	registry[name] = &Builtin{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Flags: flags, Fn: fn}
}

// Lookup finds a builtin by canonical name.
func Lookup(name string) (*Builtin, bool) {
	b, ok := registry[strings.ToUpper(name)]
	return b, ok
}

// Names lists every registered function in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Call invokes a builtin after checking arity.
func Call(ctx Context, b *Builtin, args []value.Value) value.Value {
	if !b.AcceptsArgs(len(args)) {
		return value.Error(value.ErrValue)
	}
	return b.Fn(ctx, args)
}

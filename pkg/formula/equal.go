package formula

import "strings"

// Equal reports whether two ASTs are the same formula. Source positions,
// raw number spellings and original function-name spellings are ignored;
// identifiers and sheet names compare case-insensitively.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Number:
		y, ok := b.(*Number)
		return ok && x.Value == y.Value
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *Bool:
		y, ok := b.(*Bool)
		return ok && x.Value == y.Value
	case *ErrorLit:
		y, ok := b.(*ErrorLit)
		return ok && x.Kind == y.Kind
	case *Ident:
		y, ok := b.(*Ident)
		return ok && strings.EqualFold(x.Name, y.Name)
	case *SheetRef:
		y, ok := b.(*SheetRef)
		return ok && strings.EqualFold(x.Sheet, y.Sheet) && Equal(x.Target, y.Target)
	case *Range:
		y, ok := b.(*Range)
		return ok && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Union:
		y, ok := b.(*Union)
		return ok && equalList(x.Items, y.Items)
	case *Paren:
		y, ok := b.(*Paren)
		return ok && Equal(x.Inner, y.Inner)
	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Postfix:
		y, ok := b.(*Postfix)
		return ok && x.Op == y.Op && Equal(x.Operand, y.Operand)
	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Op == y.Op && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)
	case *Call:
		y, ok := b.(*Call)
		return ok && x.Name == y.Name && equalList(x.Args, y.Args)
	case *Invoke:
		y, ok := b.(*Invoke)
		return ok && Equal(x.Callee, y.Callee) && equalList(x.Args, y.Args)
	case *Array:
		y, ok := b.(*Array)
		if !ok || len(x.Rows) != len(y.Rows) {
			return false
		}
		for i := range x.Rows {
			if !equalList(x.Rows[i], y.Rows[i]) {
				return false
			}
		}
		return true
	case *Missing:
		_, ok := b.(*Missing)
		return ok
	case *StructRef:
		y, ok := b.(*StructRef)
		return ok && strings.EqualFold(x.Spec.Table, y.Spec.Table) &&
			x.Spec.Section == y.Spec.Section &&
			strings.EqualFold(x.Spec.ColumnStart, y.Spec.ColumnStart) &&
			strings.EqualFold(x.Spec.ColumnEnd, y.Spec.ColumnEnd)
	}
	return false
}

func equalList(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

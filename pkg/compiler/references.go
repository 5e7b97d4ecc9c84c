package compiler

import (
	"sort"

	"github.com/gridcalc/gridcalc/pkg/value"
)

// Precedents is what an expression is known to read before it runs.
// References produced at run time by INDIRECT, OFFSET or dynamic ranges
// are not included.
type Precedents struct {
	Refs   []*value.Reference
	Names  []Name
	Tables []string
	// Spills lists origin cells read through the # operator.
	Spills []value.CellRef
}

// References collects the static precedents of e placed at base. Lambda
// bodies are included whether or not they are ever called.
func References(e Expr, base value.CellRef) Precedents {
	var p Precedents
	names := map[Name]bool{}
	tables := map[string]bool{}
	Walk(e, func(x Expr) bool {
		switch n := x.(type) {
		case *RefExpr:
			if ref, ok := n.Ref.Resolve(base); ok {
				p.Refs = append(p.Refs, ref)
			}
		case *Name:
			names[*n] = true
		case *CallName:
			names[n.Name] = true
		case *TableRef:
			tables[n.Spec.Table] = true
		case *SpillRef:
			if r, ok := n.X.(*RefExpr); ok {
				if ref, ok := r.Ref.Resolve(base); ok {
					p.Spills = append(p.Spills, ref.TopLeft())
				}
			}
		}
		return true
	})
	for n := range names {
		p.Names = append(p.Names, n)
	}
	sort.Slice(p.Names, func(i, j int) bool {
		a, b := p.Names[i], p.Names[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Sheet != b.Sheet {
			return a.Sheet < b.Sheet
		}
		return !a.Qualified && b.Qualified
	})
	for t := range tables {
		p.Tables = append(p.Tables, t)
	}
	sort.Strings(p.Tables)
	return p
}

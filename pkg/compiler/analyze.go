package compiler

import "github.com/gridcalc/gridcalc/pkg/functions"

// Features summarizes what an expression uses.
type Features struct {
	Lambdas     bool
	Let         bool
	Invoke      bool
	NameCalls   bool
	LocalCalls  bool
	HigherOrder bool
	Names       bool
	// Dynamic is set for INDIRECT, OFFSET and other functions whose
	// precedents are only known after evaluation.
	Dynamic       bool
	DynamicRanges bool
	Volatile      bool
	TableRefs     bool
	SpillRefs     bool
}

// NeedsTreeWalker reports whether the bytecode VM cannot run the
// expression.
func (f Features) NeedsTreeWalker() bool {
	return f.Lambdas || f.Let || f.Invoke || f.NameCalls || f.LocalCalls || f.HigherOrder
}

// HasDynamicDeps reports whether evaluation may read cells that the
// static precedents do not cover.
func (f Features) HasDynamicDeps() bool {
	return f.Dynamic || f.DynamicRanges || f.SpillRefs
}

// Analyze walks e once and reports its features.
func Analyze(e Expr) Features {
	var f Features
	Walk(e, func(x Expr) bool {
		switch n := x.(type) {
		case *Lambda:
			f.Lambdas = true
		case *Let:
			f.Let = true
		case *Invoke:
			f.Invoke = true
		case *CallName:
			f.NameCalls = true
		case *CallLocal:
			f.LocalCalls = true
		case *Name:
			f.Names = true
		case *RangeOp:
			f.DynamicRanges = true
		case *TableRef:
			f.TableRefs = true
		case *SpillRef:
			f.SpillRefs = true
		case *Call:
			if n.Fn.Has(functions.Dynamic) {
				f.Dynamic = true
			}
			if n.Fn.Has(functions.Volatile) {
				f.Volatile = true
			}
			if n.Fn.Has(functions.HigherOrder) {
				f.HigherOrder = true
			}
		}
		return true
	})
	return f
}
